package dto

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID                int64      `json:"id"`
	IdentityID        string     `json:"identity_id"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"display_name"`
	Tier              string     `json:"tier"`
	Status            string     `json:"status"`
	PlanID            *int64     `json:"plan_id"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CurrentPeriodEnd  string     `json:"current_period_end,omitempty"`
	PremiumUntil      string     `json:"premium_until,omitempty"`
	QuotaInfo         *QuotaInfo `json:"quota_info,omitempty"`
	CreatedAt         string     `json:"created_at,omitempty"`
}

// QuotaInfo 配额信息
type QuotaInfo struct {
	Tier        string `json:"tier"`
	DailyLimit  int    `json:"daily_limit"`
	DailyUsed   int    `json:"daily_used"`
	DailyRemain int    `json:"daily_remain"`
	ResetAt     string `json:"reset_at,omitempty"`
}

// UpdateProfileRequest 更新用户信息请求
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" binding:"omitempty,max=100"`
}
