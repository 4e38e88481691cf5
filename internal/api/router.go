package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/api/handler"
	"github.com/qs3c/sage_server/internal/api/middleware"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/ratelimit"
	"github.com/qs3c/sage_server/internal/pkg/response"
	"github.com/qs3c/sage_server/internal/service"
)

const adminPrefix = "/api/v1/admin"

// Handlers 路由依赖的处理器，Auth 为空时不挂载本地认证路由
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Quota   *handler.QuotaHandler
	Billing *handler.BillingHandler
	Webhook *handler.WebhookHandler
	Promo   *handler.PromoHandler
	Admin   *handler.AdminHandler
}

type Router struct {
	handlers Handlers
	provider identity.Provider
	gate     *service.AdminGate
	users    *service.UserService
	quota    *service.QuotaService
	limiter  *ratelimit.Limiter
	cfg      *config.Config
	log      *zap.Logger
}

func NewRouter(
	handlers Handlers,
	provider identity.Provider,
	gate *service.AdminGate,
	users *service.UserService,
	quota *service.QuotaService,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
	log *zap.Logger,
) *Router {
	return &Router{
		handlers: handlers,
		provider: provider,
		gate:     gate,
		users:    users,
		quota:    quota,
		limiter:  limiter,
		cfg:      cfg,
		log:      logger.OrNop(log),
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.log))
	engine.Use(middleware.CORS(r.cfg.CORS))

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := engine.Group("/api/v1")
	{
		// 计费方回调，只验签不认证
		api.POST("/billing/webhook", r.handlers.Webhook.Billing)

		// 公开接口 - 认证（仅本地身份提供方）
		if r.handlers.Auth != nil {
			auth := api.Group("/auth")
			{
				auth.POST("/register", r.handlers.Auth.Register)
				auth.POST("/login", r.handlers.Auth.Login)
				auth.POST("/password/forgot", r.handlers.Auth.ForgotPassword)
				auth.POST("/password/reset", r.handlers.Auth.ResetPassword)
				auth.GET("/github", r.handlers.Auth.GithubAuth)
				auth.GET("/github/callback", r.handlers.Auth.GithubCallback)
			}
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.provider))
		{
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.handlers.User.GetProfile)
				user.PUT("/profile", r.handlers.User.UpdateProfile)
				user.GET("/quota", r.handlers.Quota.GetQuota)
			}

			authenticated.POST("/usage", middleware.QuotaCheck(r.users, r.quota), r.handlers.Quota.Use)

			authenticated.POST("/billing/checkout", r.handlers.Billing.Checkout)
			authenticated.POST("/billing/portal", r.handlers.Billing.Portal)

			authenticated.POST("/promo/redeem",
				middleware.RateLimit(r.limiter, "redeem", r.cfg.RateLimit.Redeem, r.log),
				r.handlers.Promo.Redeem)
		}

		// 管理端，每个请求都经过权限校验
		admin := api.Group("/admin")
		admin.Use(middleware.AdminOnly(r.gate))
		{
			admin.GET("/users", r.handlers.Admin.ListUsers)
			admin.GET("/users/:id", r.handlers.Admin.GetUser)
			admin.PUT("/users/:id/tier", r.handlers.Admin.SetTier)
			admin.GET("/plans", r.handlers.Admin.ListPlans)
			admin.POST("/plans", r.handlers.Admin.CreatePlan)
			admin.GET("/promo-codes", r.handlers.Admin.ListPromoCodes)
			admin.POST("/promo-codes", r.handlers.Admin.CreatePromoCode)
			admin.PUT("/promo-codes/:id", r.handlers.Admin.UpdatePromoCode)
			admin.DELETE("/promo-codes/:id", r.handlers.Admin.DeactivatePromoCode)
			admin.GET("/webhook-events", r.handlers.Admin.ListWebhookEvents)
			admin.POST("/sweep", r.handlers.Admin.Sweep)
		}
	}

	// 管理端未知路由同样先经过权限校验
	engine.NoRoute(func(c *gin.Context) {
		if !isAdminPath(c.Request.URL.Path) {
			response.NotFoundError(c, "")
			c.Abort()
			return
		}
		c.Next()
	}, middleware.AdminOnly(r.gate), r.handlers.Admin.NotFound(adminRoutes(engine.Routes())))

	return engine
}

func isAdminPath(path string) bool {
	return path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/")
}

func adminRoutes(routes gin.RoutesInfo) []dto.RouteInfo {
	list := make([]dto.RouteInfo, 0, len(routes))
	for _, route := range routes {
		if isAdminPath(route.Path) {
			list = append(list, dto.RouteInfo{Method: route.Method, Path: route.Path})
		}
	}
	return list
}
