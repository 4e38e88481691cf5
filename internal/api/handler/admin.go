package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

type AdminHandler struct {
	adminService *service.AdminService
	grantService *service.GrantService
}

func NewAdminHandler(adminService *service.AdminService, grantService *service.GrantService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		grantService: grantService,
	}
}

// ListUsers 分页查看账本
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := pagination(c)

	items, total, err := h.adminService.ListUsers(page, pageSize, c.Query("tier"))
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// GetUser 查看单个账本行
// GET /api/v1/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	user, err := h.adminService.GetUser(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, user)
}

// SetTier 设置用户等级
// PUT /api/v1/admin/users/:id/tier
func (h *AdminHandler) SetTier(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req dto.SetTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	actor, _ := middleware.GetAdmin(c)
	user, err := h.adminService.SetTier(c.Request.Context(), actor, id, req.Tier)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "等级已更新", user)
}

// ListPlans 套餐列表
// GET /api/v1/admin/plans
func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.adminService.ListPlans()
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, plans)
}

// CreatePlan 新增套餐
// POST /api/v1/admin/plans
func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.adminService.CreatePlan(&req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "套餐已创建", plan)
}

// ListPromoCodes 兑换码列表
// GET /api/v1/admin/promo-codes
func (h *AdminHandler) ListPromoCodes(c *gin.Context) {
	page, pageSize := pagination(c)

	items, total, err := h.adminService.ListPromoCodes(page, pageSize)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// CreatePromoCode 创建兑换码
// POST /api/v1/admin/promo-codes
func (h *AdminHandler) CreatePromoCode(c *gin.Context) {
	var req dto.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	promo, err := h.adminService.CreatePromoCode(&req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "兑换码已创建", promo)
}

// UpdatePromoCode 更新兑换码
// PUT /api/v1/admin/promo-codes/:id
func (h *AdminHandler) UpdatePromoCode(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req dto.UpdatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	promo, err := h.adminService.UpdatePromoCode(id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "兑换码已更新", promo)
}

// DeactivatePromoCode 停用兑换码，兑换码不会被删除
// DELETE /api/v1/admin/promo-codes/:id
func (h *AdminHandler) DeactivatePromoCode(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.adminService.DeactivatePromoCode(id); err != nil {
		h.fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "兑换码已停用", nil)
}

// ListWebhookEvents 查看计费事件记录
// GET /api/v1/admin/webhook-events
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	page, pageSize := pagination(c)

	items, total, err := h.adminService.ListWebhookEvents(c.Query("status"), page, pageSize)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Sweep 立即执行过期授予清理
// POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	demoted, err := h.grantService.ExpireGrants(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, dto.SweepResult{Demoted: demoted})
}

// NotFound 管理端未知路由，列出可用路由
func (h *AdminHandler) NotFound(routes []dto.RouteInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.ErrorWithData(c, response.CodeResourceNotFound, "", gin.H{"routes": routes})
	}
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrPromoNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPlanExists), errors.Is(err, service.ErrPromoCodeExists):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrInvalidTier),
		errors.Is(err, service.ErrInvalidTime),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrInvalidPromoType):
		response.ParamError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}

// pagination 解析分页参数
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的 ID")
		return 0, false
	}
	return id, true
}
