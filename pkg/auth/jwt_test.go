package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/config"
)

func newValidator() *JWTValidator {
	return NewJWTValidator(config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "switchly-settlement"})
}

func TestValidateToken(t *testing.T) {
	v := newValidator()

	token, err := v.IssueToken("operator", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
}

func TestValidateToken_Rejects(t *testing.T) {
	v := newValidator()

	expired, err := v.IssueToken("operator", -time.Hour)
	require.NoError(t, err)

	other := NewJWTValidator(config.AuthConfig{JWTSecret: "other-secret", JWTIssuer: "switchly-settlement"})
	wrongKey, err := other.IssueToken("operator", time.Minute)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTValidator(config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "someone-else"}).IssueToken("operator", time.Minute)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "switchly-settlement"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    "switchly-settlement",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"wrong alg":    hs512,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func TestValidateToken_NotConfigured(t *testing.T) {
	v := NewJWTValidator(config.AuthConfig{})
	assert.False(t, v.IsConfigured())

	_, err := v.ValidateToken("x")
	assert.Error(t, err)
	_, err = v.IssueToken("operator", time.Minute)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := newValidator()
	var subject string
	handler := v.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := v.IssueToken("operator", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lower-case scheme", "bearer " + token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "operator", subject)
			} else {
				assert.Contains(t, rec.Body.String(), `"code":401`)
			}
		})
	}
}
