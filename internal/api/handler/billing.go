package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
	}
}

// Checkout 创建订阅结账页面
// POST /api/v1/billing/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	url, err := h.billingService.Checkout(c.Request.Context(), ident, req.Plan)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, dto.SessionResponse{URL: url})
}

// Portal 打开计费自助门户
// POST /api/v1/billing/portal
func (h *BillingHandler) Portal(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	url, err := h.billingService.Portal(c.Request.Context(), ident)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, dto.SessionResponse{URL: url})
}

func (h *BillingHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanUnavailable):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrBillingNotLinked):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, billing.ErrNotConfigured):
		response.UnavailableError(c, "")
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
