package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"narrative-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(verifier TokenVerifier) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(verifier, zap.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		userID, ok := UserIDFromGin(c)
		ctxUserID, ctxOK := models.GetUserIDFromContext(c.Request.Context())
		if !ok || !ctxOK || userID != ctxUserID {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, userID.String())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	verifier := func(_ context.Context, token string) (uuid.UUID, *models.Claims, error) {
		switch token {
		case "good":
			return userID, &models.Claims{}, nil
		case "expired":
			return uuid.Nil, nil, models.ErrTokenExpired
		case "bad":
			return uuid.Nil, nil, models.ErrTokenInvalid
		default:
			return uuid.Nil, nil, errors.New("key store offline")
		}
	}
	router := newAuthRouter(verifier)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer good", http.StatusOK, userID.String()},
		{"lowercase scheme", "bearer good", http.StatusOK, userID.String()},
		{"missing header", "", http.StatusUnauthorized, "Missing token"},
		{"malformed header", "Token good", http.StatusUnauthorized, "Malformed token header"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer bad", http.StatusUnauthorized, "Invalid token"},
		{"verifier failure", "Bearer other", http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestGinZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(GinZapLogger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})

	t.Run("health is not logged", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Zero(t, logs.Len())
	})

	t.Run("client error is a warning with request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/missing?x=1", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		r.ServeHTTP(w, req)

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "/missing?x=1", fields["path"])
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})

	t.Run("gin errors are logged as errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.ErrorLevel, entries[0].Level)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})
}

func TestRateLimiterPerUser(t *testing.T) {
	store := NewRateLimitStore(RateLimitConfig{Limit: 1, Rate: time.Minute})
	alice, bob := uuid.New(), uuid.New()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-User")); err == nil {
			SetUserID(c, id)
		}
		c.Next()
	})
	r.Use(RateLimiter(store, zap.NewNop()))
	r.POST("/narrations", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(user uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/narrations", nil)
		req.Header.Set("X-User", user.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusCreated, send(bob), "limit is tracked per user")
}

func TestExtractBearerToken(t *testing.T) {
	token, ok := ExtractBearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = ExtractBearerToken("Bearer")
	assert.False(t, ok)
}
