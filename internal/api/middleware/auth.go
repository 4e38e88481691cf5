package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/response"
)

const (
	IdentityKey = "identity"
	UserIDKey   = "userID"
)

// Auth 校验 bearer 令牌并把身份放入上下文
func Auth(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		token, ok := identity.BearerToken(authHeader)
		if !ok {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		ident, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				response.AuthError(c, "认证失败或已过期")
			} else {
				_ = c.Error(err)
				response.ServerError(c, "身份校验失败")
			}
			c.Abort()
			return
		}

		c.Set(IdentityKey, ident)
		c.Next()
	}
}

// GetIdentity 从上下文获取已校验的身份
func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	ident, ok := value.(*identity.Identity)
	return ident, ok && ident != nil
}

// GetUserID 从上下文获取账本用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
