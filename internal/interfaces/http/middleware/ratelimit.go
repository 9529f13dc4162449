package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"match-intel-api/internal/infrastructure/persistence/redis"
	"match-intel-api/internal/interfaces/http/dto"
	"match-intel-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	// Burst 窗口内允许的突发量，小于 RequestsPerSecond 时忽略
	Burst int
}

// RateLimiter 限流器（redis.RateLimiter）
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// RateLimit 按组织与用户的滑动窗口限流，需位于 Auth 之后
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limit := cfg.RequestsPerSecond
	if limit <= 0 {
		limit = 20
	}
	if cfg.Burst > limit {
		limit = cfg.Burst
	}

	return func(c *gin.Context) {
		actor := ActorFromGin(c)
		if actor.OrgID == "" {
			c.Next()
			return
		}

		key := redis.BuildRateLimitKey(actor.OrgID, actor.UserID)
		allowed, remaining, err := limiter.Allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			dto.AbortWithError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
