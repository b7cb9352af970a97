package oidc

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func rawToken(payload string) string {
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return hdr + "." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + "."
}

func TestVerifyIdentity_Insecure(t *testing.T) {
	v := NewInsecureVerifier()
	c, err := VerifyIdentity(context.Background(), v, rawToken(`{"sub":"user-1","email":"ana@example.com","name":"Ana"}`))
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "ana@example.com", c.Email)
}

func TestVerifyIdentity_MissingSubject(t *testing.T) {
	_, err := VerifyIdentity(context.Background(), NewInsecureVerifier(), rawToken(`{"email":"x@y"}`))
	require.Error(t, err)
}

func TestInsecureVerifier_Malformed(t *testing.T) {
	v := NewInsecureVerifier()
	_, err := v.Verify(context.Background(), "no-dots")
	require.Error(t, err)
	_, err = v.Verify(context.Background(), rawToken("not json"))
	require.Error(t, err)
}
