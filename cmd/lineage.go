package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/model"
)

var (
	lineageField     string
	lineageConflicts bool
	lineageJSON      bool
)

var lineageCmd = &cobra.Command{
	Use:   "lineage <entity-type> <entity-id>",
	Short: "Show an entity's transformation history",
	Long: `Prints the append-only lineage for one entity, oldest first.

With --conflicts, the second argument is a field name and the output is
every conflicted write to that field across entities.

  prospect-etl lineage grade 8f14e45f-...
  prospect-etl lineage measurement height_in --conflicts`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityType := model.EntityType(args[0])
		switch entityType {
		case model.EntityProspect, model.EntityGrade, model.EntityMeasurement,
			model.EntityCollegeStat, model.EntityProjection:
		default:
			return eris.Errorf("lineage: unknown entity type %q", args[0])
		}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		recorder := lineage.NewRecorder(pool)

		var entries []model.LineageEntry
		if lineageConflicts {
			entries, err = recorder.QueryConflicts(ctx, entityType, args[1])
		} else {
			entries, err = recorder.QueryByEntity(ctx, entityType, args[1], lineageField)
		}
		if err != nil {
			return err
		}

		if lineageJSON {
			return json.NewEncoder(os.Stdout).Encode(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tFIELD\tVALUE\tPREV\tSOURCE\tRULE\tCONFLICT")
		for _, e := range entries {
			conflict := ""
			if e.HadConflict {
				conflict = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Field, e.NewValue, e.PrevValue, e.Source, e.Rule, conflict)
		}
		return w.Flush()
	},
}

func init() {
	lineageCmd.Flags().StringVar(&lineageField, "field", "", "restrict to one field")
	lineageCmd.Flags().BoolVar(&lineageConflicts, "conflicts", false, "query conflicted writes for a field")
	lineageCmd.Flags().BoolVar(&lineageJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(lineageCmd)
}
