package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/model"
	"github.com/qs3c/sage_server/internal/pkg/billing"
	"github.com/qs3c/sage_server/internal/pkg/logger"
	"github.com/qs3c/sage_server/internal/pkg/metrics"
	"github.com/qs3c/sage_server/internal/repository"
)

// SyncOutcome 单个计费事件的处理结果
type SyncOutcome string

const (
	OutcomeApplied   SyncOutcome = "applied"
	OutcomeDuplicate SyncOutcome = "duplicate"
	OutcomeIgnored   SyncOutcome = "ignored"
	OutcomeUnmatched SyncOutcome = "unmatched"
	OutcomeFailed    SyncOutcome = "failed"
)

var ErrCustomerLinkedElsewhere = errors.New("billing customer already linked to another user")

// CustomerDirectory 按计费客户 ID 查询邮箱
type CustomerDirectory interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// BillingSyncService 将计费事件同步到账本与等级镜像
type BillingSyncService struct {
	userRepo  *repository.UserRepository
	planRepo  *repository.PlanRepository
	eventRepo *repository.WebhookEventRepository
	provider  identity.Provider
	customers CustomerDirectory
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewBillingSyncService(
	userRepo *repository.UserRepository,
	planRepo *repository.PlanRepository,
	eventRepo *repository.WebhookEventRepository,
	provider identity.Provider,
	customers CustomerDirectory,
	cfg *config.Config,
	log *zap.Logger,
) *BillingSyncService {
	return &BillingSyncService{
		userRepo:  userRepo,
		planRepo:  planRepo,
		eventRepo: eventRepo,
		provider:  provider,
		customers: customers,
		cfg:       cfg,
		log:       logger.OrNop(log),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle 处理一个已验签事件，只有 OutcomeFailed 返回错误
func (s *BillingSyncService) Handle(ctx context.Context, ev billing.Event) (SyncOutcome, error) {
	meta := ev.Meta()
	start := time.Now()
	log := s.log.With(zap.String("event_id", meta.ID), zap.String("event_type", meta.Type))

	record, inserted, err := s.eventRepo.Record(meta.ID, meta.Type, s.now())
	if err != nil {
		s.observe(meta.Type, OutcomeFailed, start)
		log.Error("record billing event failed", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("record billing event: %w", err)
	}
	if !inserted && record.Settled() {
		s.observe(meta.Type, OutcomeDuplicate, start)
		log.Info("billing event already handled", zap.String("status", record.Status))
		return OutcomeDuplicate, nil
	}

	outcome, applyErr := s.apply(ctx, ev, log)

	status, errText := eventStatus(outcome, applyErr)
	if err := s.eventRepo.Finish(meta.ID, status, errText, s.now()); err != nil {
		log.Error("store billing event result failed", zap.Error(err))
	}

	s.observe(meta.Type, outcome, start)
	switch outcome {
	case OutcomeFailed:
		log.Error("billing event failed", zap.Error(applyErr))
	case OutcomeUnmatched:
		log.Warn("billing event matched no ledger row")
	default:
		log.Info("billing event handled", zap.String("outcome", string(outcome)))
	}
	return outcome, applyErr
}

func (s *BillingSyncService) apply(ctx context.Context, ev billing.Event, log *zap.Logger) (SyncOutcome, error) {
	var (
		outcome SyncOutcome
		err     error
	)
	switch e := ev.(type) {
	case billing.CheckoutCompleted:
		outcome, err = s.applyCheckout(ctx, e, log)
	case billing.SubscriptionChanged:
		outcome, err = s.applySubscriptionChanged(ctx, e, log)
	case billing.SubscriptionDeleted:
		outcome, err = s.applySubscriptionDeleted(ctx, e, log)
	case billing.Ignored:
		return OutcomeIgnored, nil
	default:
		return OutcomeFailed, fmt.Errorf("%w: %T", billing.ErrUnhandledEvent, ev)
	}
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, nil
}

// applyCheckout 以 correlation id 关联账本行并写入计费客户
func (s *BillingSyncService) applyCheckout(ctx context.Context, e billing.CheckoutCompleted, log *zap.Logger) (SyncOutcome, error) {
	user, err := s.userByCorrelation(e)
	if err != nil {
		return OutcomeFailed, err
	}
	if user == nil {
		log.Warn("checkout without matching ledger row",
			zap.String("correlation_id", e.CorrelationID),
			zap.String("customer_id", e.CustomerID))
		return OutcomeUnmatched, nil
	}

	if e.CustomerID != "" {
		owner, err := s.userRepo.GetByBillingCustomerID(e.CustomerID)
		switch {
		case err == nil && owner.ID != user.ID:
			return OutcomeFailed, fmt.Errorf("%w: customer %s user %d", ErrCustomerLinkedElsewhere, e.CustomerID, owner.ID)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return OutcomeFailed, err
		}
	}

	tier := keepAdmin(user, model.TierPremium)
	fields := map[string]interface{}{
		"tier":        tier,
		"status":      model.StatusActive,
		"daily_quota": dailyQuota(s.cfg, tier),
	}
	if e.CustomerID != "" {
		fields["billing_customer_id"] = e.CustomerID
	}
	if err := s.userRepo.UpdateFields(user.ID, fields); err != nil {
		return OutcomeFailed, fmt.Errorf("apply checkout: %w", err)
	}

	_ = syncMirror(ctx, s.provider, log, mirrorSourceBilling, user.IdentityID, tier)
	return OutcomeApplied, nil
}

// userByCorrelation 优先按 correlation id 查找，缺失时用结账邮箱
func (s *BillingSyncService) userByCorrelation(e billing.CheckoutCompleted) (*model.User, error) {
	if e.CorrelationID != "" {
		user, err := s.userRepo.GetByIdentityID(e.CorrelationID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if e.Email == "" {
		return nil, nil
	}
	user, err := s.userRepo.GetByEmail(e.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return user, err
}

func (s *BillingSyncService) applySubscriptionChanged(ctx context.Context, e billing.SubscriptionChanged, log *zap.Logger) (SyncOutcome, error) {
	user, err := s.userByCustomer(ctx, e.CustomerID, log)
	if err != nil {
		return OutcomeFailed, err
	}
	if user == nil {
		return OutcomeUnmatched, nil
	}

	var planID *int64
	plan, err := s.planRepo.ResolveBillingRef(e.PriceID, e.ProductID)
	switch {
	case err == nil:
		planID = &plan.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Info("billing price not mapped to a plan",
			zap.String("price_id", e.PriceID),
			zap.String("product_id", e.ProductID))
	default:
		return OutcomeFailed, fmt.Errorf("resolve plan: %w", err)
	}

	target := model.TierBasic
	if model.IsEntitledStatus(e.Status) {
		target = model.TierPremium
	} else {
		planID = nil
	}
	tier := keepAdmin(user, target)

	fields := map[string]interface{}{
		"tier":                 tier,
		"status":               e.Status,
		"plan_id":              planID,
		"cancel_at_period_end": e.CancelAtPeriodEnd,
		"current_period_end":   e.CurrentPeriodEnd,
		"daily_quota":          dailyQuota(s.cfg, tier),
	}
	if err := s.userRepo.UpdateFields(user.ID, fields); err != nil {
		return OutcomeFailed, fmt.Errorf("apply subscription change: %w", err)
	}

	_ = syncMirror(ctx, s.provider, log, mirrorSourceBilling, user.IdentityID, tier)
	return OutcomeApplied, nil
}

func (s *BillingSyncService) applySubscriptionDeleted(ctx context.Context, e billing.SubscriptionDeleted, log *zap.Logger) (SyncOutcome, error) {
	user, err := s.userByCustomer(ctx, e.CustomerID, log)
	if err != nil {
		return OutcomeFailed, err
	}
	if user == nil {
		return OutcomeUnmatched, nil
	}

	tier := keepAdmin(user, model.TierBasic)
	fields := map[string]interface{}{
		"tier":                 tier,
		"status":               model.StatusCanceled,
		"plan_id":              nil,
		"cancel_at_period_end": false,
		"current_period_end":   nil,
		"daily_quota":          dailyQuota(s.cfg, tier),
	}
	if err := s.userRepo.UpdateFields(user.ID, fields); err != nil {
		return OutcomeFailed, fmt.Errorf("apply subscription deletion: %w", err)
	}

	_ = syncMirror(ctx, s.provider, log, mirrorSourceBilling, user.IdentityID, tier)
	return OutcomeApplied, nil
}

// userByCustomer 按计费客户 ID 查找，未命中时向计费方查询邮箱并回写客户 ID
func (s *BillingSyncService) userByCustomer(ctx context.Context, customerID string, log *zap.Logger) (*model.User, error) {
	if customerID == "" {
		log.Warn("billing event without customer id")
		return nil, nil
	}

	user, err := s.userRepo.GetByBillingCustomerID(customerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email, err := s.customers.CustomerEmail(ctx, customerID)
	if err != nil {
		metrics.FallbackLookupsTotal.WithLabelValues("error").Inc()
		log.Warn("billing customer lookup failed", zap.String("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("fallback customer lookup: %w", err)
	}
	if email == "" {
		metrics.FallbackLookupsTotal.WithLabelValues("miss").Inc()
		log.Warn("billing customer has no email", zap.String("customer_id", customerID))
		return nil, nil
	}

	user, err = s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.FallbackLookupsTotal.WithLabelValues("miss").Inc()
			log.Warn("no ledger row for billing customer email",
				zap.String("customer_id", customerID),
				zap.String("email", email))
			return nil, nil
		}
		return nil, err
	}

	if user.BillingCustomerID != nil && *user.BillingCustomerID != customerID {
		log.Warn("relinking user to a new billing customer",
			zap.Int64("user_id", user.ID),
			zap.String("previous_customer_id", *user.BillingCustomerID),
			zap.String("customer_id", customerID))
	}
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{"billing_customer_id": customerID}); err != nil {
		return nil, fmt.Errorf("link billing customer: %w", err)
	}
	user.BillingCustomerID = &customerID

	metrics.FallbackLookupsTotal.WithLabelValues("hit").Inc()
	log.Info("billing customer linked by email", zap.Int64("user_id", user.ID), zap.String("customer_id", customerID))
	return user, nil
}

func (s *BillingSyncService) observe(eventType string, outcome SyncOutcome, start time.Time) {
	metrics.WebhookEventsTotal.WithLabelValues(eventType, string(outcome)).Inc()
	metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

func eventStatus(outcome SyncOutcome, err error) (string, string) {
	switch outcome {
	case OutcomeApplied:
		return model.EventStatusProcessed, ""
	case OutcomeIgnored:
		return model.EventStatusIgnored, ""
	case OutcomeUnmatched:
		return model.EventStatusUnmatched, ""
	default:
		msg := "unknown failure"
		if err != nil {
			msg = err.Error()
		}
		return model.EventStatusFailed, msg
	}
}

// keepAdmin 计费事件不会降级管理员
func keepAdmin(user *model.User, tier string) string {
	if user.IsAdmin() {
		return model.TierAdmin
	}
	return tier
}
