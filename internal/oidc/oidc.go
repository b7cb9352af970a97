package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Token is a verified token that can expose its claims.
// It is satisfied by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// Verifier checks a raw ID token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// IdentityClaims are the ID token claims the desk relies on.
type IdentityClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// ProviderVerifier wraps the discovered OIDC provider and its token verifier.
type ProviderVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and builds a verifier for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*ProviderVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &ProviderVerifier{provider: provider, verifier: verifier}, nil
}

func (v *ProviderVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// VerifyIdentity verifies raw with v and extracts the identity claims.
func VerifyIdentity(ctx context.Context, v Verifier, raw string) (*IdentityClaims, error) {
	tok, err := v.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var c IdentityClaims
	if err := tok.Claims(&c); err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("id token has no subject")
	}
	return &c, nil
}
