package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "proptoken/internal/jwt_token"
	"proptoken/internal/platform/config"
)

// NewTokenCommand issues a bearer token for local use against the mutating
// submission routes.
func NewTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		wallet  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a submitter access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
			token, err := svc.GenerateAccessToken(subject, wallet, ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "submitter id placed in the sub claim")
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet address claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
