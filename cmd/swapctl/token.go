package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainsafe/switchly-settlement/pkg/auth"
	"github.com/chainsafe/switchly-settlement/pkg/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the monitor's mutating routes",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		token, err := issueToken(cfg.Auth, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"token": token})
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cfg config.AuthConfig, subject string, ttl time.Duration) (string, error) {
	v := auth.NewJWTValidator(cfg)
	if !v.IsConfigured() {
		return "", fmt.Errorf("auth.jwt_secret is not set")
	}
	return v.IssueToken(subject, ttl)
}
