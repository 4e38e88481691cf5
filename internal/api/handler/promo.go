package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

type PromoHandler struct {
	promoService *service.PromoService
}

func NewPromoHandler(promoService *service.PromoService) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
	}
}

// Redeem 兑换码兑换
// POST /api/v1/promo/redeem
func (h *PromoHandler) Redeem(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.promoService.Redeem(c.Request.Context(), ident, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			response.Error(c, response.CodePromoInvalid, err.Error())
		case errors.Is(err, service.ErrCodeNotYetActive):
			response.Error(c, response.CodePromoNotYetActive, err.Error())
		case errors.Is(err, service.ErrCodeExpired):
			response.Error(c, response.CodePromoExpired, err.Error())
		case errors.Is(err, service.ErrCodeLimitReached):
			response.Error(c, response.CodePromoLimitReached, err.Error())
		case errors.Is(err, service.ErrUnknownPromoType):
			response.Error(c, response.CodePromoUnknownType, err.Error())
		case errors.Is(err, service.ErrPlanMisconfigured):
			response.ServerError(c, err.Error())
		default:
			_ = c.Error(err)
			response.ServerError(c, "")
		}
		return
	}

	resp := dto.RedeemResponse{
		Tier:         result.Tier,
		PremiumUntil: result.PremiumUntil.UTC().Format(time.RFC3339),
	}
	if result.Plan != nil {
		resp.Plan = result.Plan.Name
	}
	response.SuccessWithMessage(c, "兑换成功", resp)
}
