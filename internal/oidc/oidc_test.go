package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	accept string
	claims map[string]interface{}
}

func (s staticVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if raw != s.accept {
		return nil, errors.New("rejected by " + s.accept)
	}
	return &insecureToken{claims: s.claims}, nil
}

func fakeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(claims)
	require.NoError(t, err)
	return "hdr." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

func TestInsecureVerifier(t *testing.T) {
	tok, err := NewInsecureVerifier().Verify(context.Background(), fakeJWT(t, map[string]interface{}{"sub": "kc-1", "email": "a@b.c"}))
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "kc-1", claims["sub"])

	_, err = NewInsecureVerifier().Verify(context.Background(), "garbage")
	require.Error(t, err)
	_, err = NewInsecureVerifier().Verify(context.Background(), fakeJWT(t, map[string]interface{}{"email": "a@b.c"}))
	require.Error(t, err)
}

func TestChain(t *testing.T) {
	c := Chain{
		staticVerifier{accept: "local", claims: map[string]interface{}{"sub": "L"}},
		nil,
		staticVerifier{accept: "remote", claims: map[string]interface{}{"sub": "R"}},
	}
	for raw, want := range map[string]string{"local": "L", "remote": "R"} {
		tok, err := c.Verify(context.Background(), raw)
		require.NoError(t, err)
		var claims map[string]interface{}
		require.NoError(t, tok.Claims(&claims))
		require.Equal(t, want, claims["sub"])
	}

	_, err := c.Verify(context.Background(), "other")
	require.ErrorContains(t, err, "rejected by local")
	require.ErrorContains(t, err, "rejected by remote")

	_, err = Chain{}.Verify(context.Background(), "x")
	require.Error(t, err)
}

func TestKeycloakIssuer(t *testing.T) {
	require.Equal(t, "http://kc:8080/realms/docflow", KeycloakIssuer("http://kc:8080/", "docflow"))
	require.Equal(t, "http://kc:8080/realms/x", KeycloakIssuer("http://kc:8080/realms/x", ""))
}
