package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/ratelimit"
	"github.com/qs3c/sage_server/internal/pkg/response"
)

func rateLimitedRouter(rdb *redis.Client, rule config.RateLimitRule) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Identity"); id != "" {
			c.Set(IdentityKey, &identity.Identity{ID: id})
		}
		c.Next()
	})
	router.Use(RateLimit(ratelimit.NewLimiter(rdb), "redeem", rule, nil))
	router.POST("/redeem", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	return router
}

func redeemAs(router *gin.Engine, identityID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/redeem", nil)
	if identityID != "" {
		req.Header.Set("X-Test-Identity", identityID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_PerIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	router := rateLimitedRouter(rdb, config.RateLimitRule{Requests: 2, WindowSeconds: 60})

	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)
	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)

	w := redeemAs(router, "alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.CodeRateLimited, parseResponse(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, redeemAs(router, "bob").Code)
	assert.Equal(t, http.StatusOK, redeemAs(router, "").Code)
}

func TestRateLimit_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	router := rateLimitedRouter(rdb, config.RateLimitRule{Requests: 1, WindowSeconds: 10})

	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, redeemAs(router, "alice").Code)

	mr.FastForward(11 * time.Second)
	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	router := rateLimitedRouter(rdb, config.RateLimitRule{Requests: 1, WindowSeconds: 60})

	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)
	assert.Equal(t, http.StatusOK, redeemAs(router, "alice").Code)
}
