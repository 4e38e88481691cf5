package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/api"
	"github.com/qs3c/sage_server/internal/api/handler"
	"github.com/qs3c/sage_server/internal/database"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/email"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/oauth"
	"github.com/qs3c/sage_server/internal/pkg/ratelimit"
	"github.com/qs3c/sage_server/internal/pkg/tokenstore"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
)

const (
	resetTokenTTL = 30 * time.Minute
	oauthStateTTL = 10 * time.Minute
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, cfg.Database.Driver); err != nil {
			zlog.Fatal("failed to migrate database", zap.Error(err))
		}
	}
	zlog.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	identityRepo := repository.NewIdentityRepository(db)

	provider, local, err := identity.FromConfig(ctx, cfg, identityRepo)
	if err != nil {
		zlog.Fatal("failed to init identity provider", zap.Error(err))
	}
	zlog.Info("identity provider ready", zap.String("provider", cfg.IdentityProvider()))

	billingClient := billing.NewClient(cfg.Billing)

	// 初始化 Service
	userService := service.NewUserService(userRepo, cfg)
	quotaService := service.NewQuotaService(userRepo, cfg)
	gate := service.NewAdminGate(provider, userRepo, cfg.AdminAllowList(), zlog)
	syncService := service.NewBillingSyncService(userRepo, planRepo, eventRepo, provider, billingClient, cfg, zlog)
	promoService := service.NewPromoService(db, promoRepo, userRepo, planRepo, userService, provider, cfg, zlog)
	grantService := service.NewGrantService(userRepo, provider, cfg, zlog)
	adminService := service.NewAdminService(userRepo, planRepo, promoRepo, eventRepo, provider, cfg, zlog)
	billingService := service.NewBillingService(userService, planRepo, billingClient, zlog)

	// 初始化 Handler
	handlers := api.Handlers{
		User:    handler.NewUserHandler(userService),
		Quota:   handler.NewQuotaHandler(userService, quotaService),
		Billing: handler.NewBillingHandler(billingService),
		Webhook: handler.NewWebhookHandler(billing.NewVerifier(cfg.Billing.WebhookSecret), syncService, zlog),
		Promo:   handler.NewPromoHandler(promoService),
		Admin:   handler.NewAdminHandler(adminService, grantService),
	}
	if local != nil {
		github := oauth.NewGithubOAuth(cfg.OAuth.Github.ClientID, cfg.OAuth.Github.ClientSecret, cfg.OAuth.Github.RedirectURI)
		authService := service.NewAuthService(local, userService,
			tokenstore.New(rdb, "password_reset:", resetTokenTTL),
			tokenstore.New(rdb, "oauth_state:", oauthStateTTL),
			github, email.NewService(&cfg.Email), cfg, zlog)
		handlers.Auth = handler.NewAuthHandler(authService)
	}

	// 初始化 Router
	router := api.NewRouter(handlers, provider, gate, userService, quotaService, ratelimit.NewLimiter(rdb), cfg, zlog)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
}
