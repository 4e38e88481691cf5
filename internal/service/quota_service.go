package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/repository"
)

var ErrQuotaExceeded = errors.New("今日配额已用完")

// 未配置时各等级的每日配额
var defaultDailyQuota = map[string]int{
	model.TierBasic:   5,
	model.TierPremium: 100,
	model.TierAdmin:   1000,
}

type QuotaService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewQuotaService(userRepo *repository.UserRepository, cfg *config.Config) *QuotaService {
	return &QuotaService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// CheckQuota 检查配额
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.refreshed(userID)
	if err != nil {
		return false, err
	}
	return user.QuotaUsedToday < user.DailyQuota, nil
}

// UseQuota 使用配额
func (s *QuotaService) UseQuota(userID int64) error {
	return s.userRepo.IncrementQuotaUsed(userID)
}

// ResetAllQuotas 重置所有用户配额
func (s *QuotaService) ResetAllQuotas() error {
	return s.userRepo.ResetAllQuotas(nextQuotaReset(time.Now()))
}

// SyncTierQuotas 将配置中的每日配额写回各等级用户
func (s *QuotaService) SyncTierQuotas() error {
	for _, tier := range []string{model.TierBasic, model.TierPremium, model.TierAdmin} {
		if err := s.userRepo.SetDailyQuota(tier, dailyQuota(s.cfg, tier)); err != nil {
			return err
		}
	}
	return nil
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.refreshed(userID)
	if err != nil {
		return nil, err
	}
	return quotaInfo(user), nil
}

// refreshed 读取用户，到达重置时间时先重置
func (s *QuotaService) refreshed(userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := time.Now()
	if user.QuotaResetAt != nil && now.After(*user.QuotaResetAt) {
		next := nextQuotaReset(now)
		if err := s.userRepo.ResetQuota(userID, next); err != nil {
			return nil, err
		}
		user.QuotaUsedToday = 0
		user.QuotaResetAt = &next
	}
	return user, nil
}

func quotaInfo(user *model.User) *dto.QuotaInfo {
	remain := user.DailyQuota - user.QuotaUsedToday
	if remain < 0 {
		remain = 0
	}

	info := &dto.QuotaInfo{
		Tier:        user.Tier,
		DailyLimit:  user.DailyQuota,
		DailyUsed:   user.QuotaUsedToday,
		DailyRemain: remain,
	}
	if user.QuotaResetAt != nil {
		info.ResetAt = user.QuotaResetAt.UTC().Format(time.RFC3339)
	}
	return info
}

// dailyQuota 等级对应的每日配额
func dailyQuota(cfg *config.Config, tier string) int {
	if cfg != nil {
		if level, ok := cfg.Subscription.Levels[tier]; ok && level.DailyQuota > 0 {
			return level.DailyQuota
		}
	}
	if quota, ok := defaultDailyQuota[tier]; ok {
		return quota
	}
	return defaultDailyQuota[model.TierBasic]
}

func nextQuotaReset(now time.Time) time.Time {
	return now.UTC().Add(24 * time.Hour).Truncate(24 * time.Hour)
}
