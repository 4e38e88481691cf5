package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/service"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "到期清理",
}

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "身份提供方等级镜像维护",
}

var sweepGrantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "将兑换授予已过期的用户降为 basic",
	RunE: func(cmd *cobra.Command, args []string) error {
		grants, e, err := grantService(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		n, err := grants.ExpireGrants(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d grant(s)\n", n)
		return nil
	},
}

var mirrorReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "将账本等级重新写入身份提供方镜像",
	RunE: func(cmd *cobra.Command, args []string) error {
		grants, e, err := grantService(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		result, err := grants.ReconcileMirror(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced=%d failed=%d\n", result.Synced, result.Failed)
		if result.Failed > 0 {
			return fmt.Errorf("%d mirror write(s) failed", result.Failed)
		}
		return nil
	},
}

func grantService(cmd *cobra.Command) (*service.GrantService, *env, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, nil, err
	}
	provider, err := e.provider(cmd.Context())
	if err != nil {
		e.close()
		return nil, nil, err
	}
	return service.NewGrantService(repository.NewUserRepository(e.db), provider, e.cfg, e.log), e, nil
}

func init() {
	sweepCmd.AddCommand(sweepGrantsCmd)
	mirrorCmd.AddCommand(mirrorReconcileCmd)
}
