package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/sage_server/internal/model/dto"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
)

var promoCmd = &cobra.Command{
	Use:   "promo",
	Short: "兑换码管理",
}

var (
	promoDescription string
	promoMaxUses     int
	promoDuration    int
	promoStartsAt    string
	promoExpiresAt   string
)

var promoCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "创建 premium_unlock 兑换码",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &dto.CreatePromoRequest{
			Code:        args[0],
			Description: promoDescription,
		}
		if promoMaxUses > 0 {
			req.MaxUses = &promoMaxUses
		}
		if promoDuration > 0 {
			req.DurationDays = &promoDuration
		}
		if promoStartsAt != "" {
			req.StartsAt = &promoStartsAt
		}
		if promoExpiresAt != "" {
			req.ExpiresAt = &promoExpiresAt
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.close()

		provider, err := e.provider(cmd.Context())
		if err != nil {
			return err
		}
		admin := service.NewAdminService(
			repository.NewUserRepository(e.db),
			repository.NewPlanRepository(e.db),
			repository.NewPromoRepository(e.db),
			repository.NewWebhookEventRepository(e.db),
			provider, e.cfg, e.log,
		)
		promo, err := admin.CreatePromoCode(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created promo code %s (id=%d)\n", promo.Code, promo.ID)
		return nil
	},
}

func init() {
	f := promoCreateCmd.Flags()
	f.StringVar(&promoDescription, "description", "", "描述")
	f.IntVar(&promoMaxUses, "max-uses", 0, "最大使用次数，0 表示不限")
	f.IntVar(&promoDuration, "duration-days", 0, "授予天数，0 使用默认值")
	f.StringVar(&promoStartsAt, "starts-at", "", "生效时间 RFC3339")
	f.StringVar(&promoExpiresAt, "expires-at", "", "失效时间 RFC3339")

	promoCmd.AddCommand(promoCreateCmd)
}
