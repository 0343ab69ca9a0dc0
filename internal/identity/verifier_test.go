package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-identity-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user_123",
		"email": "owner@example.com",
		"iss":   "https://idp.example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifier_HS256_ValidToken(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret, Issuer: "https://idp.example.com"})
	require.NoError(t, err)

	id, err := v.Verify(signHS256(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.UserID)
	assert.Equal(t, "owner@example.com", id.Email)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret})
	require.NoError(t, err)

	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()

	_, err = v.Verify(signHS256(t, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsMissingExpiry(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret})
	require.NoError(t, err)

	claims := validClaims()
	delete(claims, "exp")

	_, err = v.Verify(signHS256(t, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsWrongIssuer(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret, Issuer: "https://other.example.com"})
	require.NoError(t, err)

	_, err = v.Verify(signHS256(t, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: "another-secret"})
	require.NoError(t, err)

	_, err = v.Verify(signHS256(t, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsMissingSubject(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret})
	require.NoError(t, err)

	claims := validClaims()
	delete(claims, "sub")

	_, err = v.Verify(signHS256(t, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsEmptyToken(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Key: testSecret})
	require.NoError(t, err)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(VerifierConfig{Algorithm: "RS256", Key: string(pubPEM)})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(priv)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.UserID)

	// HS256で署名されたトークンはアルゴリズム不一致で拒否する
	_, err = v.Verify(signHS256(t, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifier_InvalidConfig(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{Algorithm: "HS256"})
	assert.Error(t, err)

	_, err = NewVerifier(VerifierConfig{Algorithm: "RS256", Key: "not a pem"})
	assert.Error(t, err)

	_, err = NewVerifier(VerifierConfig{Algorithm: "none", Key: "x"})
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r, "__session"))

	r.AddCookie(&http.Cookie{Name: "__session", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(r, "__session"))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r, "__session"))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "cookie-token", TokenFromRequest(r, "__session"))
}

func TestFromContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, FromContext(r.Context()))

	ctx := WithIdentity(r.Context(), &Identity{UserID: "u1"})
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "u1", FromContext(ctx).UserID)

	assert.Nil(t, FromContext(WithIdentity(r.Context(), &Identity{})))
}
