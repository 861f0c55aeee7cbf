package authutils

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"narrative-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-length"

func signHS256(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(sub string) *models.Claims {
	return &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerifyTokenHS256(t *testing.T) {
	v, err := NewJWTVerifier(VerifierConfig{Secret: testSecret, Audience: "authenticated"}, nil)
	require.NoError(t, err)
	userID := uuid.New()

	t.Run("valid", func(t *testing.T) {
		got, claims, err := v.VerifyToken(context.Background(), signHS256(t, validClaims(userID.String())))
		require.NoError(t, err)
		assert.Equal(t, userID, got)
		assert.Equal(t, userID.String(), claims.Subject)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims(userID.String())
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, _, err := v.VerifyToken(context.Background(), signHS256(t, c))
		assert.ErrorIs(t, err, models.ErrTokenExpired)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims(userID.String())
		c.Audience = jwt.ClaimStrings{"anon"}
		_, _, err := v.VerifyToken(context.Background(), signHS256(t, c))
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		_, _, err := v.VerifyToken(context.Background(), signHS256(t, validClaims("42")))
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := v.VerifyToken(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})
}

func TestVerifyTokenES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	v, err := NewJWTVerifier(VerifierConfig{PublicKeyPEM: pemKey, Audience: "authenticated", Issuer: "https://id.example/auth/v1"}, nil)
	require.NoError(t, err)

	userID := uuid.New()
	c := validClaims(userID.String())
	c.Issuer = "https://id.example/auth/v1"
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, c).SignedString(key)
	require.NoError(t, err)

	got, _, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	t.Run("hmac token rejected without secret", func(t *testing.T) {
		_, _, err := v.VerifyToken(context.Background(), signHS256(t, c))
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})
}

func TestNewJWTVerifierRequiresKey(t *testing.T) {
	_, err := NewJWTVerifier(VerifierConfig{}, nil)
	assert.Error(t, err)
}
