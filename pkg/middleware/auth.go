package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"narrative-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier проверяет строку токена и возвращает пользователя и claims.
// Ошибки: models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed.
type TokenVerifier func(ctx context.Context, tokenString string) (uuid.UUID, *models.Claims, error)

const userIDGinKey = "userID"

// ExtractBearerToken достает токен из заголовка "Authorization: Bearer <token>".
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware проверяет JWT и кладет userID в gin.Context и в context запроса.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			abortJSON(c, http.StatusUnauthorized, "Unauthorized: Missing token")
			return
		}
		tokenString, ok := ExtractBearerToken(authHeader)
		if !ok {
			log.Warn("Malformed Authorization header")
			abortJSON(c, http.StatusUnauthorized, "Unauthorized: Malformed token header")
			return
		}

		userID, _, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status, msg := tokenErrorResponse(err)
			if status == http.StatusInternalServerError {
				log.Error("Unexpected token verification error", zap.Error(err))
			} else {
				log.Warn("Token verification failed", zap.Error(err))
			}
			abortJSON(c, status, msg)
			return
		}

		SetUserID(c, userID)
		log.Debug("User authorized", zap.String("userID", userID.String()))
		c.Next()
	}
}

// tokenErrorResponse переводит ошибку верификации в HTTP статус и сообщение.
func tokenErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrTokenExpired):
		return http.StatusUnauthorized, "Unauthorized: Token expired"
	case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized: Invalid token"
	default:
		return http.StatusInternalServerError, "Internal server error during token verification"
	}
}

// SetUserID сохраняет пользователя в gin.Context и в context.Context запроса.
func SetUserID(c *gin.Context, userID uuid.UUID) {
	c.Set(userIDGinKey, userID)
	c.Request = c.Request.WithContext(models.WithUserID(c.Request.Context(), userID))
}

// UserIDFromGin возвращает пользователя, установленного AuthMiddleware.
func UserIDFromGin(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(userIDGinKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
