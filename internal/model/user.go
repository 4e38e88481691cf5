package model

import (
	"time"
)

// 用户等级
const (
	TierBasic   = "basic"
	TierPremium = "premium"
	TierAdmin   = "admin"
)

// 订阅状态，其余取值由计费方定义并原样保存
const (
	StatusActive            = "active"
	StatusTrialing          = "trialing"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusPastDue           = "past_due"
	StatusUnpaid            = "unpaid"
	StatusCanceled          = "canceled"
	StatusInactive          = "inactive"
)

// User 账本中的用户行，IdentityID 关联身份提供方的用户
type User struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	IdentityID        string     `gorm:"size:128;uniqueIndex;not null" json:"identity_id"`
	Email             string     `gorm:"size:255;index" json:"email"`
	DisplayName       string     `gorm:"size:100" json:"display_name"`
	Tier              string     `gorm:"size:20;default:basic;index" json:"tier"`
	Status            string     `gorm:"size:32;default:inactive" json:"status"`
	PlanID            *int64     `json:"plan_id"`
	BillingCustomerID *string    `gorm:"size:100;uniqueIndex" json:"billing_customer_id,omitempty"`
	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	PremiumUntil      *time.Time `json:"premium_until,omitempty"`
	DailyQuota        int        `gorm:"default:5" json:"daily_quota"`
	QuotaUsedToday    int        `gorm:"default:0" json:"quota_used_today"`
	QuotaResetAt      *time.Time `json:"quota_reset_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否为管理员等级
func (u *User) IsAdmin() bool {
	return u.Tier == TierAdmin
}

// HasLiveSubscription 是否存在仍在计费周期内的订阅
func (u *User) HasLiveSubscription(now time.Time) bool {
	if u.BillingCustomerID == nil || *u.BillingCustomerID == "" {
		return false
	}
	if !IsEntitledStatus(u.Status) || u.Status == StatusIncomplete {
		return false
	}
	return u.CurrentPeriodEnd == nil || u.CurrentPeriodEnd.After(now)
}

// IsEntitledStatus 订阅状态是否授予 premium
func IsEntitledStatus(status string) bool {
	switch status {
	case StatusActive, StatusTrialing, StatusIncomplete:
		return true
	default:
		return false
	}
}

// IsValidTier 校验等级取值
func IsValidTier(tier string) bool {
	switch tier {
	case TierBasic, TierPremium, TierAdmin:
		return true
	default:
		return false
	}
}
