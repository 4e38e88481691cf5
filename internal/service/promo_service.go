package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/metrics"
	"github.com/qs3c/sage_server/internal/repository"
)

var (
	ErrInvalidCode       = errors.New("兑换码无效")
	ErrCodeNotYetActive  = errors.New("兑换码尚未生效")
	ErrCodeExpired       = errors.New("兑换码已过期")
	ErrCodeLimitReached  = errors.New("兑换码已达使用上限")
	ErrUnknownPromoType  = errors.New("不支持的兑换码类型")
	ErrPlanMisconfigured = errors.New("兑换套餐未配置")
)

// RedeemResult 兑换成功后的账本状态
type RedeemResult struct {
	Tier         string
	Plan         *model.Plan
	PremiumUntil time.Time
}

type PromoService struct {
	db        *gorm.DB
	promoRepo *repository.PromoRepository
	userRepo  *repository.UserRepository
	planRepo  *repository.PlanRepository
	users     *UserService
	provider  identity.Provider
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewPromoService(
	db *gorm.DB,
	promoRepo *repository.PromoRepository,
	userRepo *repository.UserRepository,
	planRepo *repository.PlanRepository,
	users *UserService,
	provider identity.Provider,
	cfg *config.Config,
	log *zap.Logger,
) *PromoService {
	return &PromoService{
		db:        db,
		promoRepo: promoRepo,
		userRepo:  userRepo,
		planRepo:  planRepo,
		users:     users,
		provider:  provider,
		cfg:       cfg,
		log:       logger.OrNop(log),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Redeem 校验兑换码并为调用者授予 premium
func (s *PromoService) Redeem(ctx context.Context, id *identity.Identity, code string) (*RedeemResult, error) {
	result, err := s.redeem(ctx, id, strings.TrimSpace(code))

	outcome := redeemOutcome(err)
	metrics.PromoRedemptionsTotal.WithLabelValues(outcome).Inc()
	fields := []zap.Field{
		zap.String("identity_id", id.ID),
		zap.String("code", strings.TrimSpace(code)),
		zap.String("outcome", outcome),
	}
	switch {
	case err == nil:
		s.log.Info("promo code redeemed", append(fields, zap.Time("premium_until", result.PremiumUntil))...)
	case outcome == "error", outcome == "misconfigured":
		s.log.Error("promo redemption failed", append(fields, zap.Error(err))...)
	default:
		s.log.Info("promo redemption rejected", fields...)
	}
	return result, err
}

func (s *PromoService) redeem(ctx context.Context, id *identity.Identity, code string) (*RedeemResult, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	promo, err := s.promoRepo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	now := s.now()
	if err := checkPromo(promo, now); err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByName(s.cfg.PromoPlanName())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrPlanMisconfigured, s.cfg.PromoPlanName())
		}
		return nil, err
	}

	user, err := s.users.EnsureProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	days := s.cfg.PromoDurationDays()
	if promo.DurationDays != nil && *promo.DurationDays > 0 {
		days = *promo.DurationDays
	}
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	tier := model.TierPremium
	if user.IsAdmin() {
		tier = model.TierAdmin
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.promoRepo.WithTx(tx).ClaimUse(promo.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrCodeLimitReached
		}
		return s.userRepo.WithTx(tx).UpdateFields(user.ID, map[string]interface{}{
			"tier":             tier,
			"status":           model.StatusActive,
			"plan_id":          plan.ID,
			"premium_until":    until,
			"daily_quota":      dailyQuota(s.cfg, tier),
			"quota_used_today": 0,
		})
	})
	if err != nil {
		return nil, err
	}

	_ = syncMirror(ctx, s.provider, s.log, mirrorSourcePromo, user.IdentityID, tier)

	return &RedeemResult{Tier: tier, Plan: plan, PremiumUntil: until}, nil
}

// checkPromo 过期优先判断，与是否启用无关
func checkPromo(promo *model.PromoCode, now time.Time) error {
	if promo.ExpiresAt != nil && !promo.ExpiresAt.After(now) {
		return ErrCodeExpired
	}
	if !promo.IsActive {
		return ErrInvalidCode
	}
	if promo.StartsAt != nil && promo.StartsAt.After(now) {
		return ErrCodeNotYetActive
	}
	if promo.Exhausted() {
		return ErrCodeLimitReached
	}
	if promo.Type != "" && promo.Type != model.PromoTypePremiumUnlock {
		return ErrUnknownPromoType
	}
	return nil
}

func redeemOutcome(err error) string {
	switch {
	case err == nil:
		return "redeemed"
	case errors.Is(err, ErrInvalidCode):
		return "invalid"
	case errors.Is(err, ErrCodeNotYetActive):
		return "not_yet_active"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeLimitReached):
		return "limit_reached"
	case errors.Is(err, ErrUnknownPromoType):
		return "unknown_type"
	case errors.Is(err, ErrPlanMisconfigured):
		return "misconfigured"
	default:
		return "error"
	}
}
