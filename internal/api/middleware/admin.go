package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

const AdminKey = "admin"

// AdminOnly 每个请求都重新执行管理员校验
func AdminOnly(gate *service.AdminGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, err := gate.Authorize(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnauthenticated):
				response.AuthError(c, err.Error())
			case errors.Is(err, service.ErrForbidden):
				response.PermissionError(c, err.Error())
			default:
				_ = c.Error(err)
				response.ServerError(c, "")
			}
			c.Abort()
			return
		}

		c.Set(AdminKey, admin)
		c.Set(IdentityKey, &admin.Identity)
		c.Set(UserIDKey, admin.User.ID)
		c.Next()
	}
}

// GetAdmin 从上下文获取已通过校验的管理员
func GetAdmin(c *gin.Context) (*service.AuthorizedAdmin, bool) {
	value, exists := c.Get(AdminKey)
	if !exists {
		return nil, false
	}
	admin, ok := value.(*service.AuthorizedAdmin)
	return admin, ok && admin != nil
}
