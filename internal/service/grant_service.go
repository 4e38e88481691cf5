package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/metrics"
	"github.com/qs3c/sage_server/internal/repository"
)

const grantBatchSize = 100

// ReconcileResult 镜像对账结果
type ReconcileResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// GrantService 兑换授予到期清理与等级镜像对账
type GrantService struct {
	userRepo *repository.UserRepository
	provider identity.Provider
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

func NewGrantService(userRepo *repository.UserRepository, provider identity.Provider, cfg *config.Config, log *zap.Logger) *GrantService {
	return &GrantService{
		userRepo: userRepo,
		provider: provider,
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ExpireGrants 将授予已过期且没有有效订阅的 premium 用户降为 basic
func (s *GrantService) ExpireGrants(ctx context.Context) (int, error) {
	now := s.now()
	demoted := 0
	var cursor int64

	for {
		if err := ctx.Err(); err != nil {
			return demoted, err
		}

		users, err := s.userRepo.ListExpiredGrants(now, cursor, grantBatchSize)
		if err != nil {
			return demoted, err
		}
		if len(users) == 0 {
			break
		}

		for _, user := range users {
			cursor = user.ID
			if user.HasLiveSubscription(now) {
				continue
			}

			ok, err := s.userRepo.ExpireGrant(user.ID, now, map[string]interface{}{
				"tier":        model.TierBasic,
				"status":      model.StatusInactive,
				"plan_id":     nil,
				"daily_quota": dailyQuota(s.cfg, model.TierBasic),
			})
			if err != nil {
				return demoted, err
			}
			if !ok {
				continue
			}

			demoted++
			metrics.GrantExpirationsTotal.Inc()
			s.log.Info("promo grant expired",
				zap.Int64("user_id", user.ID),
				zap.String("identity_id", user.IdentityID),
				zap.Time("premium_until", *user.PremiumUntil))
			_ = syncMirror(ctx, s.provider, s.log, mirrorSourceSweep, user.IdentityID, model.TierBasic)
		}

		if len(users) < grantBatchSize {
			break
		}
	}

	return demoted, nil
}

// ReconcileMirror 将每个账本行的等级推送到身份提供方
func (s *GrantService) ReconcileMirror(ctx context.Context) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	var cursor int64

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		users, err := s.userRepo.ListAfter(cursor, grantBatchSize)
		if err != nil {
			return result, err
		}
		if len(users) == 0 {
			break
		}

		for _, user := range users {
			cursor = user.ID
			if err := syncMirror(ctx, s.provider, s.log, mirrorSourceReconcile, user.IdentityID, user.Tier); err != nil {
				result.Failed++
				continue
			}
			result.Synced++
		}

		if len(users) < grantBatchSize {
			break
		}
	}

	s.log.Info("tier mirror reconciled", zap.Int("synced", result.Synced), zap.Int("failed", result.Failed))
	return result, nil
}
