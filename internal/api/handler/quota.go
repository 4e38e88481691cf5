package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

type QuotaHandler struct {
	userService  *service.UserService
	quotaService *service.QuotaService
}

func NewQuotaHandler(userService *service.UserService, quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{
		userService:  userService,
		quotaService: quotaService,
	}
}

// GetQuota 获取当前用户配额信息
// GET /api/v1/user/quota
func (h *QuotaHandler) GetQuota(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	user, err := h.userService.EnsureProfile(c.Request.Context(), ident)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(user.ID)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// Use 消耗一次当日配额，需经过 QuotaCheck
// POST /api/v1/usage
func (h *QuotaHandler) Use(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.quotaService.UseQuota(userID); err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(userID)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}
