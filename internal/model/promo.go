package model

import (
	"time"
)

const PromoTypePremiumUnlock = "premium_unlock"

// PromoCode 兑换码
type PromoCode struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Code         string     `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Type         string     `gorm:"size:32;default:premium_unlock" json:"type"`
	Description  string     `gorm:"size:255" json:"description"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	MaxUses      *int       `json:"max_uses"`
	TimesUsed    int        `gorm:"default:0" json:"times_used"`
	DurationDays *int       `json:"duration_days"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// Exhausted 使用次数是否已达上限
func (p *PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.TimesUsed >= *p.MaxUses
}
