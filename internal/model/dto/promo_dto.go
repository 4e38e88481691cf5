package dto

// RedeemRequest 兑换请求
type RedeemRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// RedeemResponse 兑换结果
type RedeemResponse struct {
	Tier         string `json:"tier"`
	Plan         string `json:"plan"`
	PremiumUntil string `json:"premium_until"`
}

// CreatePromoRequest 创建兑换码
type CreatePromoRequest struct {
	Code         string  `json:"code" binding:"required,min=3,max=64"`
	Type         string  `json:"type" binding:"omitempty,max=32"`
	Description  string  `json:"description" binding:"omitempty,max=255"`
	MaxUses      *int    `json:"max_uses" binding:"omitempty,min=1"`
	DurationDays *int    `json:"duration_days" binding:"omitempty,min=1,max=3650"`
	StartsAt     *string `json:"starts_at"`  // RFC3339
	ExpiresAt    *string `json:"expires_at"` // RFC3339
}

// UpdatePromoRequest 更新兑换码，未出现的字段保持不变
type UpdatePromoRequest struct {
	IsActive     *bool   `json:"is_active"`
	Description  *string `json:"description" binding:"omitempty,max=255"`
	MaxUses      *int    `json:"max_uses" binding:"omitempty,min=0"` // 0 表示不限次数
	DurationDays *int    `json:"duration_days" binding:"omitempty,min=1,max=3650"`
	StartsAt     *string `json:"starts_at"`
	ExpiresAt    *string `json:"expires_at"`
}
