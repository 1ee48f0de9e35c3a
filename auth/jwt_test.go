package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSigningKey = "0123456789abcdef0123"

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := New(Options{
		Logger:        zap.NewNop(),
		JWTSigningKey: testSigningKey,
	})
	require.NoError(t, err)
	return a
}

func echoClaims(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.UserID() + "|" + claims.Email))
	})
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{JWTSigningKey: testSigningKey})
	assert.EqualError(t, err, "nil Logger is invalid")

	_, err = New(Options{Logger: zap.NewNop(), JWTSigningKey: "short"})
	assert.Error(t, err)
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	a := newTestAuth(t)
	token, err := a.CreateTokenFromClaims(Claims{ID: "user_1", Email: "a@x.com"}, time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	a.Middleware()(echoClaims(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_1|a@x.com", w.Body.String())
}

func TestMiddlewareFallsBackToSubject(t *testing.T) {
	a := newTestAuth(t)
	token, err := a.CreateTokenFromClaims(Claims{
		StandardClaims: jwt.StandardClaims{Subject: "user_sub"},
		Email:          "b@x.com",
	}, time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	a.Middleware()(echoClaims(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_sub|b@x.com", w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	a := newTestAuth(t)

	expired, err := a.CreateTokenFromClaims(Claims{ID: "user_1"}, -time.Minute)
	require.NoError(t, err)

	other, err := New(Options{Logger: zap.NewNop(), JWTSigningKey: "another-signing-key-000"})
	require.NoError(t, err)
	foreign, err := other.CreateTokenFromClaims(Claims{ID: "user_1"}, time.Minute)
	require.NoError(t, err)

	anonymous, err := a.CreateTokenFromClaims(Claims{Email: "a@x.com"}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + foreign},
		{"no user", "Bearer " + anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			called := false
			a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})).ServeHTTP(w, r)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"No valid Bearer token found in header"}`, w.Body.String())
		})
	}
}

func TestClaimsFromContextMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ClaimsFromContext(r.Context())
	assert.False(t, ok)
}
