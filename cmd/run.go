package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/etl"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/quality"
	"github.com/draftscope/prospect-etl/internal/staging"
	"github.com/draftscope/prospect-etl/internal/transform"
)

var runSkipQuality bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one extraction over the staged data",
	Long: `Runs the full pipeline against the current staging generation:
extract, transform, validate, merge, load, publish. The load phase is a
single transaction; a failed run leaves canonical tables untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "run"))

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "run: migrate")
		}

		var validator *quality.Validator
		if runSkipQuality {
			log.Warn("quality gate disabled for this run")
		} else {
			validator, err = quality.NewValidator(cfg.Quality)
			if err != nil {
				return err
			}
		}

		archive, err := etl.OpenArchive(cfg.Store.ArchivePath)
		if err != nil {
			log.Warn("run archive unavailable", zap.Error(err))
			archive = nil
		} else {
			defer archive.Close()
		}

		orch := etl.NewOrchestrator(
			cfg, pool,
			staging.NewStore(pool),
			transform.NewRegistry(),
			validator,
			lineage.NewRecorder(pool),
			etl.NewRunStore(pool),
			etl.NewHistory(cfg.Pipeline.HistorySize),
			archive,
		)

		rec, err := orch.Execute(ctx)
		if rec != nil {
			fmt.Printf("Run %s: %s\n", rec.Run.ID, rec.Run.Status)
			fmt.Printf("  staged=%d transformed=%d failed=%d created=%d merged=%d lineage=%d\n",
				rec.Run.Counts.RowsStaged, rec.Run.Counts.RowsTransformed,
				rec.Run.Counts.RowsFailed, rec.Run.Counts.EntitiesCreated,
				rec.Run.Counts.EntitiesMerged, rec.Run.Counts.LineageWritten)
			if rec.Quality != nil {
				fmt.Printf("  quality=%s completeness=%.2f error_rate=%.3f\n",
					rec.Quality.Status, rec.Quality.Completeness, rec.Quality.ErrorRate)
			}
			if rec.Run.Reason != "" {
				fmt.Printf("  reason: %s\n", rec.Run.Reason)
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipQuality, "skip-quality", false, "skip the quality gate (validate phase)")
	rootCmd.AddCommand(runCmd)
}
