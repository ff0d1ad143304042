package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/camp-station-backend/internal/common/cache"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/response"
)

// WindowCounter 固定窗口计数器，未配置存储时返回 0
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Counter WindowCounter
	Limit   int                       // 窗口内允许的请求数
	Window  time.Duration             // 时间窗口
	KeyFunc func(*gin.Context) string // 自定义键生成函数
}

// RateLimit 限流中间件，计数失败时放行
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = clientKey
	}
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if config.Limit <= 0 {
			c.Next()
			return
		}

		count, err := config.Counter.IncrWindow(c.Request.Context(), keyFunc(c), window)
		if err != nil {
			logger.Warn("限流计数失败", logger.Path(c.Request.URL.Path), logger.Err(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		if int(count) > config.Limit {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(config.Limit-int(count)))

		c.Next()
	}
}

// UserRateLimit 按用户限流，未登录时按 IP
func UserRateLimit(counter WindowCounter, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Counter: counter,
		Limit:   limit,
		Window:  window,
		KeyFunc: clientKey,
	})
}

func clientKey(c *gin.Context) string {
	if userID := GetUserID(c); userID > 0 {
		return cache.BuildKey(cache.KeyPrefixRateLimit, "user", strconv.FormatInt(userID, 10))
	}
	return cache.BuildKey(cache.KeyPrefixRateLimit, "ip", c.ClientIP())
}
