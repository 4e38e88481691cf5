package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
	"github.com/qs3c/sage_server/internal/testutil"
	"github.com/qs3c/sage_server/internal/testutil/fakes"
)

const webhookSecret = "whsec_handler_test"

func setupWebhookRouter(t *testing.T, secret string) (*gin.Engine, *gorm.DB, *fakes.IdentityProvider, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	provider := fakes.NewIdentityProvider()
	sync := service.NewBillingSyncService(
		repository.NewUserRepository(db),
		repository.NewPlanRepository(db),
		repository.NewWebhookEventRepository(db),
		provider, fakes.NewCustomerDirectory(), testConfig(), nil)
	handler := NewWebhookHandler(billing.NewVerifier(secret), sync, nil)

	router := gin.New()
	router.POST("/billing/webhook", handler.Billing)

	return router, db, provider, func() { testutil.CleanupTestDB(t, db) }
}

func signedWebhook(t *testing.T, id, eventType string, object interface{}) ([]byte, string) {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	require.NoError(t, err)

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   raw,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_CheckoutActivatesPremium(t *testing.T) {
	router, db, provider, cleanup := setupWebhookRouter(t, webhookSecret)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithIdentityID("identity-1"))

	payload, signature := signedWebhook(t, "evt_1", billing.TypeCheckoutCompleted, map[string]interface{}{
		"id":                  "cs_1",
		"client_reference_id": "identity-1",
		"customer":            "cus_1",
		"subscription":        "sub_1",
	})

	w := postWebhook(router, payload, signature)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, model.TierPremium, reloaded.Tier)
	assert.Equal(t, model.TierPremium, provider.Tier("identity-1"))

	// 重投同一事件仍应答 200
	w = postWebhook(router, payload, signature)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_UnmatchedStillAcknowledged(t *testing.T) {
	router, db, _, cleanup := setupWebhookRouter(t, webhookSecret)
	defer cleanup()

	payload, signature := signedWebhook(t, "evt_orphan", billing.TypeSubscriptionDeleted, map[string]interface{}{
		"id":       "sub_x",
		"customer": "cus_unknown",
	})

	w := postWebhook(router, payload, signature)
	assert.Equal(t, http.StatusOK, w.Code)

	var stored model.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_orphan").First(&stored).Error)
	assert.Equal(t, model.EventStatusUnmatched, stored.Status)
}

func TestWebhookHandler_Rejections(t *testing.T) {
	router, db, _, cleanup := setupWebhookRouter(t, webhookSecret)
	defer cleanup()

	payload, signature := signedWebhook(t, "evt_2", billing.TypeCheckoutCompleted, map[string]interface{}{
		"id": "cs_2", "client_reference_id": "identity-2", "customer": "cus_2",
	})

	tests := []struct {
		name      string
		payload   []byte
		signature string
	}{
		{name: "missing signature", payload: payload, signature: ""},
		{name: "garbage signature", payload: payload, signature: "t=1,v1=deadbeef"},
		{name: "tampered body", payload: bytes.Replace(payload, []byte("identity-2"), []byte("identity-9"), 1), signature: signature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, tt.payload, tt.signature)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}

	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	router, _, _, cleanup := setupWebhookRouter(t, webhookSecret)
	defer cleanup()

	huge := []byte(`{"pad":"` + strings.Repeat("a", maxWebhookBodyBytes+1) + `"}`)
	w := postWebhook(router, huge, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_SecretMissing(t *testing.T) {
	router, _, _, cleanup := setupWebhookRouter(t, "  ")
	defer cleanup()

	payload, signature := signedWebhook(t, "evt_3", billing.TypeCheckoutCompleted, map[string]interface{}{"id": "cs_3"})
	w := postWebhook(router, payload, signature)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
