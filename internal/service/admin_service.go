package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/repository"
)

var (
	ErrInvalidTier      = errors.New("无效的等级")
	ErrPlanExists       = errors.New("套餐已存在")
	ErrPromoCodeExists  = errors.New("兑换码已存在")
	ErrPromoNotFound    = errors.New("兑换码不存在")
	ErrInvalidTime      = errors.New("时间格式错误，需为 RFC3339")
	ErrInvalidWindow    = errors.New("生效时间必须早于过期时间")
	ErrInvalidPromoType = errors.New("不支持的兑换码类型")
)

// AdminService 管理端账本操作
type AdminService struct {
	userRepo  *repository.UserRepository
	planRepo  *repository.PlanRepository
	promoRepo *repository.PromoRepository
	eventRepo *repository.WebhookEventRepository
	provider  identity.Provider
	cfg       *config.Config
	log       *zap.Logger
}

func NewAdminService(
	userRepo *repository.UserRepository,
	planRepo *repository.PlanRepository,
	promoRepo *repository.PromoRepository,
	eventRepo *repository.WebhookEventRepository,
	provider identity.Provider,
	cfg *config.Config,
	log *zap.Logger,
) *AdminService {
	return &AdminService{
		userRepo:  userRepo,
		planRepo:  planRepo,
		promoRepo: promoRepo,
		eventRepo: eventRepo,
		provider:  provider,
		cfg:       cfg,
		log:       logger.OrNop(log),
	}
}

func (s *AdminService) ListUsers(page, pageSize int, tier string) ([]*dto.UserInfo, int64, error) {
	users, total, err := s.userRepo.List(page, pageSize, tier)
	if err != nil {
		return nil, 0, err
	}
	list := make([]*dto.UserInfo, 0, len(users))
	for _, u := range users {
		list = append(list, buildUserInfo(u))
	}
	return list, total, nil
}

func (s *AdminService) GetUser(id int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return buildUserInfo(user), nil
}

// SetTier 设置用户等级并同步镜像
func (s *AdminService) SetTier(ctx context.Context, actor *AuthorizedAdmin, id int64, tier string) (*dto.UserInfo, error) {
	if !model.IsValidTier(tier) {
		return nil, ErrInvalidTier
	}

	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	fields := map[string]interface{}{
		"tier":        tier,
		"daily_quota": dailyQuota(s.cfg, tier),
	}
	if tier == model.TierBasic {
		fields["plan_id"] = nil
		user.PlanID = nil
	}
	if err := s.userRepo.UpdateFields(id, fields); err != nil {
		return nil, err
	}
	previous := user.Tier
	user.Tier = tier
	user.DailyQuota = dailyQuota(s.cfg, tier)

	s.log.Info("tier set by admin",
		zap.String("admin_identity_id", actor.Identity.ID),
		zap.Int64("user_id", id),
		zap.String("previous_tier", previous),
		zap.String("tier", tier))
	_ = syncMirror(ctx, s.provider, s.log, mirrorSourceAdmin, user.IdentityID, tier)

	return buildUserInfo(user), nil
}

func (s *AdminService) ListPlans() ([]*model.Plan, error) {
	return s.planRepo.List()
}

func (s *AdminService) CreatePlan(req *dto.CreatePlanRequest) (*model.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if _, err := s.planRepo.GetByName(name); err == nil {
		return nil, ErrPlanExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	plan := &model.Plan{
		Name:        name,
		DisplayName: strings.TrimSpace(req.DisplayName),
		IsActive:    true,
	}
	if plan.DisplayName == "" {
		plan.DisplayName = name
	}
	if v := strings.TrimSpace(req.BillingPriceID); v != "" {
		plan.BillingPriceID = &v
	}
	if v := strings.TrimSpace(req.BillingProductID); v != "" {
		plan.BillingProductID = &v
	}

	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *AdminService) ListPromoCodes(page, pageSize int) ([]*model.PromoCode, int64, error) {
	return s.promoRepo.List(page, pageSize)
}

func (s *AdminService) CreatePromoCode(req *dto.CreatePromoRequest) (*model.PromoCode, error) {
	code := strings.TrimSpace(req.Code)
	if _, err := s.promoRepo.GetByCode(code); err == nil {
		return nil, ErrPromoCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	promoType := strings.TrimSpace(req.Type)
	if promoType == "" {
		promoType = model.PromoTypePremiumUnlock
	}
	if promoType != model.PromoTypePremiumUnlock {
		return nil, ErrInvalidPromoType
	}

	startsAt, err := parseOptionalTime(req.StartsAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if startsAt != nil && expiresAt != nil && !startsAt.Before(*expiresAt) {
		return nil, ErrInvalidWindow
	}

	promo := &model.PromoCode{
		Code:         code,
		Type:         promoType,
		Description:  strings.TrimSpace(req.Description),
		IsActive:     true,
		MaxUses:      req.MaxUses,
		DurationDays: req.DurationDays,
		StartsAt:     startsAt,
		ExpiresAt:    expiresAt,
	}
	if err := s.promoRepo.Create(promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// UpdatePromoCode 只更新请求中出现的字段
func (s *AdminService) UpdatePromoCode(id int64, req *dto.UpdatePromoRequest) (*model.PromoCode, error) {
	promo, err := s.getPromo(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
		promo.IsActive = *req.IsActive
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
		promo.Description = strings.TrimSpace(*req.Description)
	}
	if req.MaxUses != nil {
		if *req.MaxUses == 0 {
			fields["max_uses"] = nil
			promo.MaxUses = nil
		} else {
			fields["max_uses"] = *req.MaxUses
			promo.MaxUses = req.MaxUses
		}
	}
	if req.DurationDays != nil {
		fields["duration_days"] = *req.DurationDays
		promo.DurationDays = req.DurationDays
	}
	if req.StartsAt != nil {
		startsAt, err := parseOptionalTime(req.StartsAt)
		if err != nil {
			return nil, err
		}
		fields["starts_at"] = startsAt
		promo.StartsAt = startsAt
	}
	if req.ExpiresAt != nil {
		expiresAt, err := parseOptionalTime(req.ExpiresAt)
		if err != nil {
			return nil, err
		}
		fields["expires_at"] = expiresAt
		promo.ExpiresAt = expiresAt
	}
	if promo.StartsAt != nil && promo.ExpiresAt != nil && !promo.StartsAt.Before(*promo.ExpiresAt) {
		return nil, ErrInvalidWindow
	}

	if len(fields) == 0 {
		return promo, nil
	}
	if err := s.promoRepo.UpdateFields(id, fields); err != nil {
		return nil, err
	}
	return s.getPromo(id)
}

// DeactivatePromoCode 停用兑换码，记录保留
func (s *AdminService) DeactivatePromoCode(id int64) error {
	if _, err := s.getPromo(id); err != nil {
		return err
	}
	return s.promoRepo.UpdateFields(id, map[string]interface{}{"is_active": false})
}

func (s *AdminService) ListWebhookEvents(status string, page, pageSize int) ([]*model.WebhookEvent, int64, error) {
	return s.eventRepo.List(status, page, pageSize)
}

func (s *AdminService) getPromo(id int64) (*model.PromoCode, error) {
	promo, err := s.promoRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}
	return promo, nil
}

// parseOptionalTime 空字符串表示清空
func parseOptionalTime(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*v))
	if err != nil {
		return nil, ErrInvalidTime
	}
	t = t.UTC()
	return &t, nil
}
