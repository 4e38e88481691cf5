package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/database"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/cron"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
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

	userRepo := repository.NewUserRepository(db)
	provider, _, err := identity.FromConfig(ctx, cfg, repository.NewIdentityRepository(db))
	if err != nil {
		zlog.Fatal("failed to init identity provider", zap.Error(err))
	}

	quotaService := service.NewQuotaService(userRepo, cfg)
	grantService := service.NewGrantService(userRepo, provider, cfg, zlog)

	if err := quotaService.SyncTierQuotas(); err != nil {
		zlog.Warn("failed to sync tier quotas", zap.Error(err))
	}

	cronService := cron.NewService(quotaService, grantService, cron.DefaultSweepInterval, zlog)
	cronService.Start()

	// 启动时先清理一次
	if _, err := cronService.SweepNow(ctx); err != nil {
		zlog.Error("initial grant sweep failed", zap.Error(err))
	}

	<-ctx.Done()
	zlog.Info("received shutdown signal")
	cronService.Stop()
	zlog.Info("worker shutdown complete")
}
