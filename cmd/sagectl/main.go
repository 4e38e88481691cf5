package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/database"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/repository"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sagectl",
	Short:         "Sage 运维命令行",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "配置文件路径")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(promoCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env 子命令共享的依赖
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) provider(ctx context.Context) (identity.Provider, error) {
	provider, _, err := identity.FromConfig(ctx, e.cfg, repository.NewIdentityRepository(e.db))
	return provider, err
}

func (e *env) close() {
	_ = e.log.Sync()
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
