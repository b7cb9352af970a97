package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type unverifiedToken struct {
	claims jwt.MapClaims
}

func (t *unverifiedToken) Claims(v interface{}) error {
	raw, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// InsecureVerifier reads ID token claims without checking the signature.
// It is only enabled by ALLOW_INSECURE_TOKEN=true for local realms.
type InsecureVerifier struct{}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{} }

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("unreadable id token: %w", err)
	}
	return &unverifiedToken{claims: claims}, nil
}
