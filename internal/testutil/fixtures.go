package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	user := &model.User{
		IdentityID:     fmt.Sprintf("identity-%d", n),
		Email:          fmt.Sprintf("test_%d@example.com", n),
		DisplayName:    fmt.Sprintf("testuser_%d", n),
		Tier:           model.TierBasic,
		Status:         model.StatusInactive,
		DailyQuota:     5,
		QuotaUsedToday: 0,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithIdentityID 设置身份 ID
func WithIdentityID(id string) func(*model.User) {
	return func(u *model.User) {
		u.IdentityID = id
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithTier 设置等级
func WithTier(tier string) func(*model.User) {
	return func(u *model.User) {
		u.Tier = tier
	}
}

// WithSubscription 设置等级与每日配额
func WithSubscription(tier string, quota int) func(*model.User) {
	return func(u *model.User) {
		u.Tier = tier
		u.DailyQuota = quota
	}
}

// WithBillingCustomer 设置计费客户与订阅状态
func WithBillingCustomer(customerID, status string) func(*model.User) {
	return func(u *model.User) {
		u.BillingCustomerID = &customerID
		u.Status = status
	}
}

// WithPlan 设置套餐
func WithPlan(planID int64) func(*model.User) {
	return func(u *model.User) {
		u.PlanID = &planID
	}
}

// WithPremiumUntil 设置兑换授予的到期时间
func WithPremiumUntil(until time.Time) func(*model.User) {
	return func(u *model.User) {
		u.PremiumUntil = &until
	}
}

// WithCurrentPeriodEnd 设置订阅周期结束时间
func WithCurrentPeriodEnd(end time.Time) func(*model.User) {
	return func(u *model.User) {
		u.CurrentPeriodEnd = &end
	}
}

// WithQuotaUsed 设置已使用配额
func WithQuotaUsed(used int) func(*model.User) {
	return func(u *model.User) {
		u.QuotaUsedToday = used
	}
}

// TestPlan 创建测试套餐
func TestPlan(t *testing.T, db *gorm.DB, name string, opts ...func(*model.Plan)) *model.Plan {
	t.Helper()

	plan := &model.Plan{
		Name:        name,
		DisplayName: name,
		IsActive:    true,
	}

	for _, opt := range opts {
		opt(plan)
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// WithPrice 设置计费价格与产品
func WithPrice(priceID, productID string) func(*model.Plan) {
	return func(p *model.Plan) {
		if priceID != "" {
			p.BillingPriceID = &priceID
		}
		if productID != "" {
			p.BillingProductID = &productID
		}
	}
}

// TestPromoCode 创建测试兑换码
func TestPromoCode(t *testing.T, db *gorm.DB, code string, opts ...func(*model.PromoCode)) *model.PromoCode {
	t.Helper()

	promo := &model.PromoCode{
		Code:     code,
		Type:     model.PromoTypePremiumUnlock,
		IsActive: true,
	}

	for _, opt := range opts {
		opt(promo)
	}
	// Create 会把零值 bool 回填为列默认值 true，需在写入前记下
	inactive := !promo.IsActive

	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("Failed to create test promo code: %v", err)
	}

	if inactive {
		if err := db.Model(promo).Update("is_active", false).Error; err != nil {
			t.Fatalf("Failed to deactivate test promo code: %v", err)
		}
		promo.IsActive = false
	}

	return promo
}

// WithMaxUses 设置最大使用次数
func WithMaxUses(max int) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.MaxUses = &max
	}
}

// WithTimesUsed 设置已使用次数
func WithTimesUsed(used int) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.TimesUsed = used
	}
}

// WithDurationDays 设置授予天数
func WithDurationDays(days int) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.DurationDays = &days
	}
}

// WithWindow 设置有效期窗口，nil 表示不限
func WithWindow(startsAt, expiresAt *time.Time) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.StartsAt = startsAt
		p.ExpiresAt = expiresAt
	}
}

// WithPromoType 设置兑换码类型
func WithPromoType(promoType string) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.Type = promoType
	}
}

// WithInactive 停用兑换码
func WithInactive() func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.IsActive = false
	}
}

// TestIdentity 创建本地身份
func TestIdentity(t *testing.T, db *gorm.DB, email string, passwordHash *string) *model.Identity {
	t.Helper()

	identity := &model.Identity{
		ID:           fmt.Sprintf("00000000-0000-4000-8000-%012d", nextSeq()),
		Email:        email,
		PasswordHash: passwordHash,
		Tier:         model.TierBasic,
	}

	if err := db.Create(identity).Error; err != nil {
		t.Fatalf("Failed to create test identity: %v", err)
	}

	return identity
}
