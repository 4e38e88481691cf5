package service

import (
	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:      "test-secret-key-for-testing",
			ExpireHours: 24,
		},
		Admin: config.AdminConfig{Emails: "root@example.com"},
		Promo: config.PromoConfig{
			DefaultPlanName:     config.DefaultPromoPlanName,
			DefaultDurationDays: config.DefaultPromoDurationDays,
		},
		Email: config.EmailConfig{ResetURL: "https://app.example.com/reset"},
		Subscription: config.SubscriptionConfig{
			Levels: map[string]config.SubscriptionLevel{
				model.TierBasic:   {DailyQuota: 5},
				model.TierPremium: {DailyQuota: 50},
				model.TierAdmin:   {DailyQuota: 500},
			},
		},
	}
}
