package authutils

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"narrative-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VerifierConfig - параметры проверки токенов внешнего провайдера.
// Нужен хотя бы один из ключей: HMAC секрет (HS256) или публичный ключ ES256 в PEM.
type VerifierConfig struct {
	Secret       string
	PublicKeyPEM string
	Audience     string
	Issuer       string
}

// JWTVerifier проверяет JWT токены.
type JWTVerifier struct {
	secret    []byte
	publicKey *ecdsa.PublicKey
	parser    *jwt.Parser
	logger    *zap.Logger
}

// NewJWTVerifier создает новый экземпляр JWTVerifier.
func NewJWTVerifier(cfg VerifierConfig, logger *zap.Logger) (*JWTVerifier, error) {
	if cfg.Secret == "" && cfg.PublicKeyPEM == "" {
		return nil, errors.New("JWT secret or public key must be provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &JWTVerifier{logger: logger.Named("JWTVerifier")}
	var methods []string
	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора публичного ключа JWT: %w", err)
		}
		v.publicKey = key
		methods = append(methods, jwt.SigningMethodES256.Alg())
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret != nil {
			return v.secret, nil
		}
	case *jwt.SigningMethodECDSA:
		if v.publicKey != nil {
			return v.publicKey, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// VerifyToken проверяет подпись, срок и аудиторию токена.
// Возвращает ID пользователя из claim "sub".
func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (uuid.UUID, *models.Claims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &models.Claims{}

	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return uuid.Nil, nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return uuid.Nil, nil, models.ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return uuid.Nil, nil, models.ErrTokenInvalid
		}
		return uuid.Nil, nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return uuid.Nil, nil, models.ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		log.Warn("Token subject is not a UUID", zap.String("sub", claims.Subject))
		return uuid.Nil, nil, fmt.Errorf("%w: sub is not a valid user id", models.ErrTokenInvalid)
	}

	log.Debug("Token verified successfully", zap.String("userID", userID.String()))
	return userID, claims, nil
}

// tokenSnippet возвращает безопасную для логгирования часть токена.
func tokenSnippet(tokenString string) string {
	limit := 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
