package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/asheth-dev/backend-daan/internal/auth"
	"github.com/asheth-dev/backend-daan/internal/common"
)

var testKey = []byte("unit-test-signing-key")

func signToken(t *testing.T, mutate func(b *jwt.Builder) *jwt.Builder) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Subject("user-1").
		Issuer("daan").
		Audience([]string{"storefront"}).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		builder = mutate(builder)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, testKey))
	require.NoError(t, err)
	return string(signed)
}

func newVerifier() auth.Verifier {
	return auth.Verifier{Secret: testKey, Issuer: "daan", Audience: "storefront"}
}

func TestParseAccessToken(t *testing.T) {
	subject, err := newVerifier().ParseAccessToken(signToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, "user-1", subject)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token := signToken(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Expiration(time.Now().Add(-time.Hour))
	})
	_, err := newVerifier().ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	token := signToken(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer("someone-else")
	})
	_, err := newVerifier().ParseAccessToken(token)
	require.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	mw := auth.Middleware{Verifier: newVerifier()}
	var gotUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-1", gotUser)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
