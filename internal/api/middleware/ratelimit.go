package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/ratelimit"
	"github.com/qs3c/sage_server/internal/pkg/response"
)

// RateLimit 按身份（无身份时按 IP）限流，redis 不可用时放行
func RateLimit(limiter *ratelimit.Limiter, scope string, rule config.RateLimitRule, log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	window := time.Duration(rule.WindowSeconds) * time.Second

	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if ident, ok := GetIdentity(c); ok {
			subject = "id:" + ident.ID
		}

		result, err := limiter.Allow(c.Request.Context(), scope+":"+subject, rule.Requests, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if !result.Allowed {
			seconds := int(result.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.RateLimitError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
