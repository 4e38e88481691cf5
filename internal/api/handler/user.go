package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

// UserHandler 当前调用者的账本资料
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GetProfile 首次访问时按已验证身份创建账本行
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), ident)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}
	response.Success(c, profile)
}

// UpdateProfile 目前只允许修改昵称
// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	profile, err := h.users.UpdateProfile(c.Request.Context(), ident, &req)
	switch {
	case err == nil:
		response.SuccessWithMessage(c, "更新成功", profile)
	case errors.Is(err, service.ErrDisplayNameEmpty):
		response.ParamError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
