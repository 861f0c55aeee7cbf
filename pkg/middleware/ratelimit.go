package middleware

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig - лимит запросов на пользователя.
type RateLimitConfig struct {
	Limit uint
	Rate  time.Duration
	// Redis опционален. nil = хранилище в памяти процесса.
	Redis *redis.Client
}

// NewRateLimitStore выбирает хранилище счетчиков.
func NewRateLimitStore(cfg RateLimitConfig) ratelimit.Store {
	if cfg.Redis != nil {
		return ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: cfg.Redis,
			Rate:        cfg.Rate,
			Limit:       cfg.Limit,
		})
	}
	return ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  cfg.Rate,
		Limit: cfg.Limit,
	})
}

// RateLimiter ограничивает запросы по пользователю (или по IP до аутентификации).
func RateLimiter(store ratelimit.Store, logger *zap.Logger) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			logger.Warn("Rate limit exceeded",
				zap.String("key", rateLimitKey(c)),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: rateLimitKey,
	})
}

func rateLimitKey(c *gin.Context) string {
	if userID, ok := UserIDFromGin(c); ok {
		return "user:" + userID.String()
	}
	return "ip:" + c.ClientIP()
}
