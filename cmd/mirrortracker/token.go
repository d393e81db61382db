// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/mirrortracker/internal/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token",
		Long: `Mint an HS256 token signed with auth.jwt_secret. Use it as auth.token in jwt
mode, or as the Authorization bearer for the control surface.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			user, _ := cmd.Flags().GetString("user")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if user == "" {
				user = cfg.Auth.UserID
			}
			if user == "" {
				return errors.New("--user is required when auth.user_id is not set")
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.Auth.TokenTTL
			}

			m, err := auth.NewJWTManager(cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := m.GenerateToken(user)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id for the sub claim (default: auth.user_id)")
	cmd.Flags().Duration("ttl", 0, "token lifetime, 0 for no expiry (default: auth.token_ttl)")
	return cmd
}
