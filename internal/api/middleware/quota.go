package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

// QuotaCheck 确保账本行存在并检查当日配额
func QuotaCheck(users *service.UserService, quota *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := GetIdentity(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		user, err := users.EnsureProfile(c.Request.Context(), ident)
		if err != nil {
			_ = c.Error(err)
			response.ServerError(c, "获取用户失败")
			c.Abort()
			return
		}
		c.Set(UserIDKey, user.ID)

		hasQuota, err := quota.CheckQuota(user.ID)
		if err != nil {
			_ = c.Error(err)
			response.ServerError(c, "配额检查失败")
			c.Abort()
			return
		}

		if !hasQuota {
			response.QuotaError(c, "今日配额已用完")
			c.Abort()
			return
		}

		c.Next()
	}
}
