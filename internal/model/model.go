package model

// All 返回所有需要迁移的模型
func All() []interface{} {
	return []interface{}{
		&Identity{},
		&Plan{},
		&User{},
		&PromoCode{},
		&WebhookEvent{},
	}
}
