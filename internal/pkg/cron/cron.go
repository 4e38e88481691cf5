package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/service"
)

// DefaultSweepInterval 过期授予清理间隔
const DefaultSweepInterval = time.Hour

type Service struct {
	quotaService  *service.QuotaService
	grantService  *service.GrantService
	sweepInterval time.Duration
	log           *zap.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func NewService(
	quotaService *service.QuotaService,
	grantService *service.GrantService,
	sweepInterval time.Duration,
	log *zap.Logger,
) *Service {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Service{
		quotaService:  quotaService,
		grantService:  grantService,
		sweepInterval: sweepInterval,
		log:           logger.OrNop(log),
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(2)
	go s.runDailyQuotaReset()
	go s.runGrantSweep()
	s.log.Info("cron service started", zap.Duration("sweep_interval", s.sweepInterval))
}

// Stop 停止定时任务并等待正在执行的任务结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.log.Info("cron service stopped")
}

// runDailyQuotaReset 每日 UTC 零点重置配额
func (s *Service) runDailyQuotaReset() {
	defer s.wg.Done()

	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunNow(); err != nil {
				s.log.Error("daily quota reset failed", zap.Error(err))
			}
			timer.Reset(24 * time.Hour)
		}
	}
}

// runGrantSweep 周期性降级已过期的兑换授予
func (s *Service) runGrantSweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.sweepInterval)
			if _, err := s.SweepNow(ctx); err != nil {
				s.log.Error("grant sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunNow 立即执行配额重置
func (s *Service) RunNow() error {
	s.log.Info("resetting daily quotas")
	if err := s.quotaService.ResetAllQuotas(); err != nil {
		return err
	}
	s.log.Info("daily quota reset completed")
	return nil
}

// SweepNow 立即执行一次过期授予清理
func (s *Service) SweepNow(ctx context.Context) (int, error) {
	demoted, err := s.grantService.ExpireGrants(ctx)
	if err != nil {
		return demoted, err
	}
	s.log.Info("grant sweep completed", zap.Int("demoted", demoted))
	return demoted, nil
}
