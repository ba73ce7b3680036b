package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/draftscope/prospect-etl/internal/etl"
	"github.com/draftscope/prospect-etl/internal/model"
)

var (
	runsLimit   int
	runsJSON    bool
	runsArchive bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent extraction runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runsArchive {
			archive, err := etl.OpenArchive(cfg.Store.ArchivePath)
			if err != nil {
				return err
			}
			defer archive.Close()

			records, err := archive.List(ctx, runsLimit)
			if err != nil {
				return err
			}
			runs := make([]model.ExtractionRun, 0, len(records))
			for _, rec := range records {
				runs = append(runs, rec.Run)
			}
			return printRuns(runs)
		}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		runs, err := etl.NewRunStore(pool).ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		return printRuns(runs)
	},
}

func printRuns(runs []model.ExtractionRun) error {
	if runsJSON {
		return json.NewEncoder(os.Stdout).Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTAGED\tTRANSFORMED\tFAILED\tCREATED\tMERGED\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.Status,
			r.Counts.RowsStaged, r.Counts.RowsTransformed, r.Counts.RowsFailed,
			r.Counts.EntitiesCreated, r.Counts.EntitiesMerged,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "emit JSON")
	runsCmd.Flags().BoolVar(&runsArchive, "archive", false, "read from the local archive instead of Postgres")
	rootCmd.AddCommand(runsCmd)
}
