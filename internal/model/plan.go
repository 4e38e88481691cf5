package model

import (
	"time"
)

// Plan 计费方价格/产品与本地套餐的映射
type Plan struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	DisplayName      string    `gorm:"size:200" json:"display_name"`
	BillingPriceID   *string   `gorm:"size:100;uniqueIndex" json:"billing_price_id,omitempty"`
	BillingProductID *string   `gorm:"size:100;index" json:"billing_product_id,omitempty"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}
