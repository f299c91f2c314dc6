package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pathways-backend/internal/middleware"
)

func init() {
	var (
		secret string
		ttl    time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Mint an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET required")
			}
			return runToken(middleware.NewJWTAuth(secret), userID, ttl, os.Stdout)
		},
	}
	tokenCmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(auth *middleware.JWTAuth, userID uuid.UUID, ttl time.Duration, w io.Writer) error {
	token, err := auth.GenerateAccessToken(userID, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
