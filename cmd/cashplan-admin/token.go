package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cashplan/internal/auth"
)

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateAuth(); err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = a.cfg.AuthTokenTTL
			}
			token, exp, err := auth.NewService(a.cfg.AuthJWTSecret, ttl).IssueToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			a.logger.Info("Token issued", "user_id", args[0], "expires_at", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: $AUTH_TOKEN_TTL)")
	return cmd
}
