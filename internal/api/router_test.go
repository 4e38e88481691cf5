package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/api/handler"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/oauth"
	"github.com/qs3c/sage_server/internal/pkg/ratelimit"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/pkg/tokenstore"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
	"github.com/qs3c/sage_server/internal/testutil"
	"github.com/qs3c/sage_server/internal/testutil/fakes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopMailer struct{}

func (nopMailer) SendPasswordReset(string, string) error { return nil }

type routerFixture struct {
	engine   *gin.Engine
	db       *gorm.DB
	provider *fakes.IdentityProvider
}

func setupRouter(t *testing.T, withLocalAuth bool) (*routerFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		JWT:       config.JWTConfig{Secret: "router-test-secret", ExpireHours: 1},
		Admin:     config.AdminConfig{Emails: "root@example.com"},
		Promo:     config.PromoConfig{DefaultPlanName: "Premium", DefaultDurationDays: 30},
		RateLimit: config.RateLimitConfig{Redeem: config.RateLimitRule{Requests: 2, WindowSeconds: 60}},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	provider := fakes.NewIdentityProvider()

	users := service.NewUserService(userRepo, cfg)
	quota := service.NewQuotaService(userRepo, cfg)
	gate := service.NewAdminGate(provider, userRepo, cfg.AdminAllowList(), nil)
	syncService := service.NewBillingSyncService(userRepo, planRepo, eventRepo, provider, fakes.NewCustomerDirectory(), cfg, nil)
	promoService := service.NewPromoService(db, promoRepo, userRepo, planRepo, users, provider, cfg, nil)
	grantService := service.NewGrantService(userRepo, provider, cfg, nil)
	adminService := service.NewAdminService(userRepo, planRepo, promoRepo, eventRepo, provider, cfg, nil)
	billingService := service.NewBillingService(users, planRepo, billing.NewClient(cfg.Billing), nil)

	handlers := Handlers{
		User:    handler.NewUserHandler(users),
		Quota:   handler.NewQuotaHandler(users, quota),
		Billing: handler.NewBillingHandler(billingService),
		Webhook: handler.NewWebhookHandler(billing.NewVerifier("whsec_router"), syncService, nil),
		Promo:   handler.NewPromoHandler(promoService),
		Admin:   handler.NewAdminHandler(adminService, grantService),
	}
	if withLocalAuth {
		local := identity.NewLocalProvider(repository.NewIdentityRepository(db), cfg.JWT)
		handlers.Auth = handler.NewAuthHandler(service.NewAuthService(local, users,
			tokenstore.New(rdb, "reset:", time.Minute),
			tokenstore.New(rdb, "oauth_state:", time.Minute),
			oauth.NewGithubOAuth("", "", ""), nopMailer{}, cfg, nil))
	}

	router := NewRouter(handlers, provider, gate, users, quota, ratelimit.NewLimiter(rdb), cfg, nil)

	f := &routerFixture{engine: router.Setup(), db: db, provider: provider}
	cleanup := func() {
		rdb.Close()
		testutil.CleanupTestDB(t, db)
	}
	return f, cleanup
}

func (f *routerFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) seedAdmin(t *testing.T) *model.User {
	t.Helper()
	f.provider.AddToken("admin-token", "identity-admin", "root@example.com")
	return testutil.TestUser(t, f.db,
		testutil.WithIdentityID("identity-admin"),
		testutil.WithEmail("root@example.com"),
		testutil.WithTier(model.TierAdmin))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_AdminUnknownRouteRunsGateFirst(t *testing.T) {
	f, cleanup := setupRouter(t, true)
	defer cleanup()
	f.seedAdmin(t)
	f.provider.AddToken("member-token", "identity-member", "member@example.com")

	w := f.do("GET", "/api/v1/admin/does-not-exist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "routes")

	w = f.do("GET", "/api/v1/admin/does-not-exist", "member-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "routes")

	w = f.do("GET", "/api/v1/admin/does-not-exist", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Data struct {
			Routes []struct {
				Method string `json:"method"`
				Path   string `json:"path"`
			} `json:"routes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Routes)
	for _, route := range body.Data.Routes {
		assert.Contains(t, route.Path, adminPrefix)
	}

	w = f.do("GET", "/api/v1/elsewhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	f, cleanup := setupRouter(t, true)
	defer cleanup()
	f.seedAdmin(t)
	member := testutil.TestUser(t, f.db, testutil.WithIdentityID("identity-member"))

	w := f.do("GET", "/api/v1/admin/users?page=1&page_size=10", "admin-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do("PUT", "/api/v1/admin/users/"+itoa(member.ID)+"/tier", "admin-token", map[string]string{"tier": "premium"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.TierPremium, f.provider.Tier("identity-member"))

	w = f.do("PUT", "/api/v1/admin/users/"+itoa(member.ID)+"/tier", "admin-token", map[string]string{"tier": "royalty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/api/v1/admin/promo-codes", "admin-token", map[string]interface{}{"code": "LAUNCH", "max_uses": 3})
	require.Equal(t, http.StatusOK, w.Code)
	var promo model.PromoCode
	raw, _ := json.Marshal(decode(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &promo))

	w = f.do("POST", "/api/v1/admin/promo-codes", "admin-token", map[string]interface{}{"code": "LAUNCH"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do("DELETE", "/api/v1/admin/promo-codes/"+itoa(promo.ID), "admin-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do("POST", "/api/v1/admin/sweep", "admin-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do("GET", "/api/v1/admin/webhook-events?status=failed", "admin-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RedeemIsRateLimited(t *testing.T) {
	f, cleanup := setupRouter(t, true)
	defer cleanup()
	f.provider.AddToken("token-1", "identity-1", "member@example.com")

	for i := 0; i < 2; i++ {
		w := f.do("POST", "/api/v1/promo/redeem", "token-1", map[string]string{"code": "NOPE"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := f.do("POST", "/api/v1/promo/redeem", "token-1", map[string]string{"code": "NOPE"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.CodeRateLimited, decode(t, w).Code)
}

func TestRouter_LocalAuthRoutesOnlyWhenEnabled(t *testing.T) {
	withAuth, cleanup := setupRouter(t, true)
	defer cleanup()
	w := withAuth.do("POST", "/api/v1/auth/login", "", map[string]string{"email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	withoutAuth, cleanup2 := setupRouter(t, false)
	defer cleanup2()
	w = withoutAuth.do("POST", "/api/v1/auth/login", "", map[string]string{"email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	f, cleanup := setupRouter(t, false)
	defer cleanup()

	w := f.do("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_WebhookNeedsNoBearer(t *testing.T) {
	f, cleanup := setupRouter(t, false)
	defer cleanup()

	w := f.do("POST", "/api/v1/billing/webhook", "", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
