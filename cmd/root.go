package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/db"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospect-etl",
	Short: "Multi-source prospect data pipeline",
	Long:  "Stages scouting dumps, resolves cross-source identities, and loads deduplicated prospects with full field-level lineage.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// connect opens the canonical database pool.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.Store.DatabaseURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
