package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/repository"
)

var (
	ErrBillingNotLinked = errors.New("尚未开通订阅")
	ErrPlanUnavailable  = errors.New("套餐不可购买")
)

// SessionProvider 计费方托管页面
type SessionProvider interface {
	CreateCheckoutSession(ctx context.Context, in billing.CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	DefaultPriceID() string
}

// BillingService 订阅结账与自助门户
type BillingService struct {
	users    *UserService
	planRepo *repository.PlanRepository
	sessions SessionProvider
	log      *zap.Logger
}

func NewBillingService(users *UserService, planRepo *repository.PlanRepository, sessions SessionProvider, log *zap.Logger) *BillingService {
	return &BillingService{
		users:    users,
		planRepo: planRepo,
		sessions: sessions,
		log:      logger.OrNop(log),
	}
}

// Checkout 创建结账页面，client_reference_id 为身份 ID
func (s *BillingService) Checkout(ctx context.Context, id *identity.Identity, planName string) (string, error) {
	user, err := s.users.EnsureProfile(ctx, id)
	if err != nil {
		return "", err
	}

	priceID, err := s.priceFor(strings.TrimSpace(planName))
	if err != nil {
		return "", err
	}

	in := billing.CheckoutInput{
		IdentityID: user.IdentityID,
		Email:      user.Email,
		PriceID:    priceID,
	}
	if user.BillingCustomerID != nil {
		in.CustomerID = *user.BillingCustomerID
	}

	url, err := s.sessions.CreateCheckoutSession(ctx, in)
	if err != nil {
		s.log.Error("create checkout session failed", zap.String("identity_id", id.ID), zap.Error(err))
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return url, nil
}

// Portal 打开客户门户
func (s *BillingService) Portal(ctx context.Context, id *identity.Identity) (string, error) {
	user, err := s.users.GetByIdentity(id.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrBillingNotLinked
		}
		return "", err
	}
	if user.BillingCustomerID == nil || *user.BillingCustomerID == "" {
		return "", ErrBillingNotLinked
	}

	url, err := s.sessions.CreatePortalSession(ctx, *user.BillingCustomerID)
	if err != nil {
		s.log.Error("create portal session failed", zap.String("identity_id", id.ID), zap.Error(err))
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}

func (s *BillingService) priceFor(planName string) (string, error) {
	if planName == "" {
		if price := s.sessions.DefaultPriceID(); price != "" {
			return price, nil
		}
		return "", ErrPlanUnavailable
	}

	plan, err := s.planRepo.GetByName(planName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPlanUnavailable
		}
		return "", err
	}
	if !plan.IsActive || plan.BillingPriceID == nil || *plan.BillingPriceID == "" {
		return "", ErrPlanUnavailable
	}
	return *plan.BillingPriceID, nil
}
