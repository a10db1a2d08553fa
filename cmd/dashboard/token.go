package main

import (
	"fmt"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/services"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var operator, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			authService, err := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
			if err != nil {
				return err
			}
			token, err := authService.GenerateToken(operator, domain.OperatorRole(role))
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator name stored in the token")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "role granted by the token (viewer or operator)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
