package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/repository"
)

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrDisplayNameEmpty = errors.New("昵称不能为空")
)

type UserService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewUserService(userRepo *repository.UserRepository, cfg *config.Config) *UserService {
	return &UserService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// EnsureProfile 返回身份对应的账本行，不存在时创建
func (s *UserService) EnsureProfile(_ context.Context, id *identity.Identity) (*model.User, error) {
	user, err := s.userRepo.GetByIdentityID(id.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	resetAt := nextQuotaReset(time.Now())
	user = &model.User{
		IdentityID:   id.ID,
		Email:        id.Email,
		DisplayName:  defaultDisplayName(id.Email),
		Tier:         model.TierBasic,
		Status:       model.StatusInactive,
		DailyQuota:   dailyQuota(s.cfg, model.TierBasic),
		QuotaResetAt: &resetAt,
	}
	if err := s.userRepo.Create(user); err != nil {
		// 并发请求可能已创建
		if existing, getErr := s.userRepo.GetByIdentityID(id.ID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return user, nil
}

// GetProfile 获取用户详情
func (s *UserService) GetProfile(ctx context.Context, id *identity.Identity) (*dto.UserInfo, error) {
	user, err := s.EnsureProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildUserInfo(user), nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(ctx context.Context, id *identity.Identity, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	var name string
	if req.DisplayName != nil {
		name = strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, ErrDisplayNameEmpty
		}
	}

	user, err := s.EnsureProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{"display_name": name}); err != nil {
			return nil, err
		}
		user.DisplayName = name
	}

	return buildUserInfo(user), nil
}

// GetByIdentity 按身份查找账本行
func (s *UserService) GetByIdentity(identityID string) (*model.User, error) {
	user, err := s.userRepo.GetByIdentityID(identityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:                user.ID,
		IdentityID:        user.IdentityID,
		Email:             user.Email,
		DisplayName:       user.DisplayName,
		Tier:              user.Tier,
		Status:            user.Status,
		PlanID:            user.PlanID,
		CancelAtPeriodEnd: user.CancelAtPeriodEnd,
		QuotaInfo:         quotaInfo(user),
		CreatedAt:         user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.CurrentPeriodEnd != nil {
		info.CurrentPeriodEnd = user.CurrentPeriodEnd.UTC().Format(time.RFC3339)
	}
	if user.PremiumUntil != nil {
		info.PremiumUntil = user.PremiumUntil.UTC().Format(time.RFC3339)
	}
	return info
}

func defaultDisplayName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
