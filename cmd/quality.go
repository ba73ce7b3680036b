package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftscope/prospect-etl/internal/etl"
)

var qualityJSON bool

var qualityCmd = &cobra.Command{
	Use:   "quality [run-id]",
	Short: "Show a run's quality report",
	Long:  "Prints the quality report for the given run, or the latest run when omitted.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := etl.NewRunStore(pool)

		runID := ""
		if len(args) == 1 {
			runID = args[0]
		} else {
			latest, err := store.LatestRun(ctx)
			if err != nil {
				return err
			}
			if latest == nil {
				return eris.New("quality: no runs recorded")
			}
			runID = latest.ID
		}

		report, err := store.GetQualityReport(ctx, runID)
		if err != nil {
			return err
		}
		if report == nil {
			return eris.Errorf("quality: no report for run %s", runID)
		}

		if qualityJSON {
			return json.NewEncoder(os.Stdout).Encode(report)
		}

		fmt.Printf("Run %s: %s\n", report.RunID, report.Status)
		fmt.Printf("  completeness=%.2f error_rate=%.3f\n", report.Completeness, report.ErrorRate)
		for _, o := range report.Outcomes {
			if o.Passed {
				continue
			}
			marker := "warn"
			if o.Critical {
				marker = "CRITICAL"
			}
			fmt.Printf("  [%s] %s: %d violations", marker, o.Rule, o.Violations)
			if o.Detail != "" {
				fmt.Printf(" (%s)", o.Detail)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	qualityCmd.Flags().BoolVar(&qualityJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(qualityCmd)
}
