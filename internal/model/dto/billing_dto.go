package dto

// CheckoutRequest 发起订阅结账
type CheckoutRequest struct {
	Plan string `json:"plan" binding:"omitempty,max=100"`
}

// SessionResponse 计费方托管页面地址
type SessionResponse struct {
	URL string `json:"url"`
}
