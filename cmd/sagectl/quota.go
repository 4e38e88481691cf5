package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "每日配额维护",
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "重置所有用户的今日用量",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := newQuotaService(e).ResetAllQuotas(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "quotas reset")
		return nil
	},
}

var quotaSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "按配置写回各等级的每日配额",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := newQuotaService(e).SyncTierQuotas(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tier quotas synced")
		return nil
	},
}

func newQuotaService(e *env) *service.QuotaService {
	return service.NewQuotaService(repository.NewUserRepository(e.db), e.cfg)
}

func init() {
	quotaCmd.AddCommand(quotaResetCmd, quotaSyncCmd)
}
