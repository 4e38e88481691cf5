package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
	"github.com/qs3c/sage_server/internal/testutil"
	"github.com/qs3c/sage_server/internal/testutil/fakes"
)

type fakeSessions struct {
	checkouts []billing.CheckoutInput
	portals   []string
}

func (f *fakeSessions) CreateCheckoutSession(_ context.Context, in billing.CheckoutInput) (string, error) {
	f.checkouts = append(f.checkouts, in)
	return "https://checkout.example.com/" + in.IdentityID, nil
}

func (f *fakeSessions) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	f.portals = append(f.portals, customerID)
	return "https://portal.example.com/" + customerID, nil
}

func (f *fakeSessions) DefaultPriceID() string {
	return "price_default"
}

func setupBillingRouter(t *testing.T) (*gin.Engine, *gorm.DB, *fakeSessions, *fakes.IdentityProvider, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testConfig()
	sessions := &fakeSessions{}
	provider := fakes.NewIdentityProvider()
	billingService := service.NewBillingService(
		service.NewUserService(repository.NewUserRepository(db), cfg),
		repository.NewPlanRepository(db), sessions, nil)
	handler := NewBillingHandler(billingService)

	router := gin.New()
	authed := router.Group("")
	authed.Use(middleware.Auth(provider))
	authed.POST("/billing/checkout", handler.Checkout)
	authed.POST("/billing/portal", handler.Portal)

	return router, db, sessions, provider, func() { testutil.CleanupTestDB(t, db) }
}

func TestBillingHandler_Checkout(t *testing.T) {
	router, db, sessions, provider, cleanup := setupBillingRouter(t)
	defer cleanup()
	provider.AddToken("token-1", "identity-1", "buyer@example.com")
	testutil.TestPlan(t, db, "Team", testutil.WithPrice("price_team", ""))

	w := performAuthedRequest(router, "POST", "/billing/checkout", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var session dto.SessionResponse
	decodeData(t, parseResponse(t, w), &session)
	assert.Equal(t, "https://checkout.example.com/identity-1", session.URL)

	w = performAuthedRequest(router, "POST", "/billing/checkout", "token-1", dto.CheckoutRequest{Plan: "Team"})
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, sessions.checkouts, 2)
	assert.Equal(t, "price_default", sessions.checkouts[0].PriceID)
	assert.Equal(t, "price_team", sessions.checkouts[1].PriceID)
	assert.Equal(t, "identity-1", sessions.checkouts[1].IdentityID)

	w = performAuthedRequest(router, "POST", "/billing/checkout", "token-1", dto.CheckoutRequest{Plan: "Nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandler_Portal(t *testing.T) {
	router, db, sessions, provider, cleanup := setupBillingRouter(t)
	defer cleanup()
	provider.AddToken("token-1", "identity-1", "buyer@example.com")
	provider.AddToken("token-2", "identity-2", "browser@example.com")
	testutil.TestUser(t, db, testutil.WithIdentityID("identity-1"), testutil.WithBillingCustomer("cus_1", "active"))

	w := performAuthedRequest(router, "POST", "/billing/portal", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cus_1"}, sessions.portals)

	w = performAuthedRequest(router, "POST", "/billing/portal", "token-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}
