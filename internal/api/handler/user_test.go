package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
	"github.com/qs3c/sage_server/internal/testutil"
	"github.com/qs3c/sage_server/internal/testutil/fakes"
)

func setupUserRouter(t *testing.T) (*gin.Engine, *fakes.IdentityProvider, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo, cfg)
	quota := service.NewQuotaService(userRepo, cfg)
	provider := fakes.NewIdentityProvider()

	userHandler := NewUserHandler(users)
	quotaHandler := NewQuotaHandler(users, quota)

	router := gin.New()
	authed := router.Group("")
	authed.Use(middleware.Auth(provider))
	authed.GET("/user/profile", userHandler.GetProfile)
	authed.PUT("/user/profile", userHandler.UpdateProfile)
	authed.GET("/user/quota", quotaHandler.GetQuota)
	authed.POST("/usage", middleware.QuotaCheck(users, quota), quotaHandler.Use)

	return router, provider, db, func() { testutil.CleanupTestDB(t, db) }
}

func TestUserHandler_GetProfile_CreatesLedgerRow(t *testing.T) {
	router, provider, db, cleanup := setupUserRouter(t)
	defer cleanup()
	provider.AddToken("token-1", "identity-1", "newcomer@example.com")

	w := performAuthedRequest(router, "GET", "/user/profile", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.UserInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.Equal(t, "identity-1", info.IdentityID)
	assert.Equal(t, model.TierBasic, info.Tier)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Where("identity_id = ?", "identity-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	w = performAuthedRequest(router, "GET", "/user/profile", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.Model(&model.User{}).Where("identity_id = ?", "identity-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserHandler_Unauthorized(t *testing.T) {
	router, _, _, cleanup := setupUserRouter(t)
	defer cleanup()

	w := performRequest(router, "GET", "/user/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)

	w = performAuthedRequest(router, "PUT", "/user/profile", "forged", map[string]string{"display_name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	router, provider, _, cleanup := setupUserRouter(t)
	defer cleanup()
	provider.AddToken("token-1", "identity-1", "member@example.com")

	w := performAuthedRequest(router, "PUT", "/user/profile", "token-1", map[string]string{"display_name": "Renamed"})
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.UserInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.Equal(t, "Renamed", info.DisplayName)

	w = performAuthedRequest(router, "PUT", "/user/profile", "token-1", map[string]string{"display_name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestQuotaHandler_UsageUntilExhausted(t *testing.T) {
	router, provider, _, cleanup := setupUserRouter(t)
	defer cleanup()
	provider.AddToken("token-1", "identity-1", "member@example.com")

	for i := 0; i < 5; i++ {
		w := performAuthedRequest(router, "POST", "/usage", "token-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := performAuthedRequest(router, "POST", "/usage", "token-1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.CodeQuotaExceeded, parseResponse(t, w).Code)

	w = performAuthedRequest(router, "GET", "/user/quota", "token-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.QuotaInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.Equal(t, 5, info.DailyLimit)
	assert.Equal(t, 5, info.DailyUsed)
	assert.Equal(t, 0, info.DailyRemain)
}
