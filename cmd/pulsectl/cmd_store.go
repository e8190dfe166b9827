package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/devpulse/internal/identity"
	"github.com/ashureev/devpulse/internal/ingest"
	"github.com/ashureev/devpulse/internal/retention"
)

func init() {
	rootCmd.AddCommand(migrateCmd, ingestCmd, processCmd, cleanupCmd, tokenCmd)

	tokenCmd.Flags().String("user", "", "user ID to issue the token for")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := openStore(cfg)
		if err != nil {
			return err
		}
		closeStore(repo)
		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s).\n", cfg.DBDriver)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json>",
	Short: `Store a batch file of the form {"activities": [...]}`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read batch file: %w", err)
		}
		raws, err := ingest.DecodeBatch(payload)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(repo)

		res, err := newDispatcher(cfg, repo).StoreBatch(cmd.Context(), raws)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var processCmd = &cobra.Command{
	Use:   "process <activity-id>",
	Short: "Run a stored activity through the single-event path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(repo)

		ctx := cmd.Context()
		a, err := repo.GetActivity(ctx, args[0])
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("activity %s not found", args[0])
		}
		if a.Processed {
			fmt.Fprintf(cmd.OutOrStdout(), "Activity %s already processed (session %s); folding again.\n", a.ID, a.SessionID)
		}
		if err := newDispatcher(cfg, repo).Process(ctx, a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %s: productive=%t session=%s\n", a.ID, *a.IsProductive, a.SessionID)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one retention sweep",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		repo, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(repo)

		rc := cfg.Retention
		w := retention.NewWorker(repo, rc.Window, rc.BatchSize, rc.Interval, cfg.RetryPolicy())
		deleted, err := w.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d activities older than %s.\n", deleted, rc.Window)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if v == nil {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		user, _ := cmd.Flags().GetString("user")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := v.Issue(user, ttl)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
