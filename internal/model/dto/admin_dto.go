package dto

// SetTierRequest 管理员设置用户等级
type SetTierRequest struct {
	Tier string `json:"tier" binding:"required,oneof=basic premium admin"`
}

// CreatePlanRequest 新增套餐映射
type CreatePlanRequest struct {
	Name             string `json:"name" binding:"required,max=100"`
	DisplayName      string `json:"display_name" binding:"omitempty,max=200"`
	BillingPriceID   string `json:"billing_price_id" binding:"omitempty,max=100"`
	BillingProductID string `json:"billing_product_id" binding:"omitempty,max=100"`
}

// RouteInfo 管理端可用路由
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// SweepResult 过期授予清理结果
type SweepResult struct {
	Demoted int `json:"demoted"`
}
