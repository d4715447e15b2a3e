package main

import (
	"fmt"

	"github.com/medlinkx/medlinkx/internal/auth/jwt"

	"github.com/spf13/cobra"
)

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a user, signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			svc, err := jwt.NewService(jwt.Config{
				SecretKey: cfg.APIServer.JWT.SecretKey,
				Duration:  cfg.APIServer.JWT.Duration,
				Issuer:    cfg.APIServer.JWT.Issuer,
			})
			if err != nil {
				return err
			}
			tok, err := svc.GenerateToken(email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user id the token is issued to")
	cmd.Flags().StringVar(&role, "role", "", "informational role claim")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
