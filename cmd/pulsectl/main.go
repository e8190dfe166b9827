// pulsectl is the operator CLI for devpulse.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/devpulse/internal/aggregate"
	"github.com/ashureev/devpulse/internal/config"
	"github.com/ashureev/devpulse/internal/ingest"
	"github.com/ashureev/devpulse/internal/store"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "pulsectl",
	Short:         "Operate a devpulse deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env (if any) and the environment.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

// openStore opens the configured store, applying migrations.
func openStore(cfg *config.Config) (*store.SQLStore, error) {
	repo, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return repo, nil
}

func newDispatcher(cfg *config.Config, repo store.Repository) *ingest.Dispatcher {
	retry := cfg.RetryPolicy()
	return ingest.NewDispatcher(repo,
		aggregate.NewSessionAggregator(repo, cfg.ActivityQuantum, retry),
		aggregate.NewUserStatsAggregator(repo, cfg.ActivityQuantum, retry, cfg.Location()),
	)
}

func closeStore(repo *store.SQLStore) {
	if err := repo.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
