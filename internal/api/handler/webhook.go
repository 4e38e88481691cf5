package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/service"
)

// maxWebhookBodyBytes 计费方事件体上限
const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	verifier    *billing.Verifier
	syncService *service.BillingSyncService
	log         *zap.Logger
}

func NewWebhookHandler(verifier *billing.Verifier, syncService *service.BillingSyncService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:    verifier,
		syncService: syncService,
		log:         logger.OrNop(log),
	}
}

// Billing 接收计费方事件，验签通过后始终应答 200
// POST /api/v1/billing/webhook
func (h *WebhookHandler) Billing(c *gin.Context) {
	if !h.verifier.Configured() {
		h.log.Error("billing webhook secret is not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := h.verifier.Parse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrMissingSecret):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		case errors.Is(err, billing.ErrInvalidSignature):
			h.log.Warn("billing webhook signature rejected", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		default:
			h.log.Warn("billing webhook payload rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		}
		return
	}

	// 失败事件已记录，等待计费方重投
	_, _ = h.syncService.Handle(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
