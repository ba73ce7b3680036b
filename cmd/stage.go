package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/draftscope/prospect-etl/internal/fetcher"
	"github.com/draftscope/prospect-etl/internal/model"
	"github.com/draftscope/prospect-etl/internal/staging"
)

var stageInputs []string

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Stage raw source dumps",
	Long: `Fetch raw dumps and replace their staging generations under one batch.

Each --input takes source=ref, where ref is a file path, http(s) URL, or
ftp URL. Format is detected from the extension (csv, json, xlsx).

  prospect-etl stage --input grades=./dumps/grades.csv \
      --input combine=https://example.com/combine.json

Sources not named keep their previous generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "stage"))

		inputs, err := parseStageInputs(stageInputs)
		if err != nil {
			return err
		}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		fetch := fetcher.New(fetcher.HTTPOptions{
			UserAgent:  cfg.Stage.UserAgent,
			Timeout:    time.Duration(cfg.Stage.HTTPTimeoutSecs) * time.Second,
			MaxRetries: 3,
			RateLimit:  rate.Limit(cfg.Stage.RateLimitRPS),
		})

		loader := staging.NewLoader(staging.NewStore(pool), fetch)
		batchID, total, err := loader.Load(ctx, inputs)
		if err != nil {
			return eris.Wrap(err, "stage")
		}

		log.Info("staging complete",
			zap.String("batch_id", batchID),
			zap.Int64("rows", total),
		)
		fmt.Printf("Staged %d rows (batch %s)\n", total, batchID)
		return nil
	},
}

func parseStageInputs(raw []string) ([]staging.Input, error) {
	if len(raw) == 0 {
		return nil, eris.New("stage: at least one --input source=ref is required")
	}

	inputs := make([]staging.Input, 0, len(raw))
	for _, item := range raw {
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, eris.Errorf("stage: malformed input %q, want source=ref", item)
		}
		source := model.Source(parts[0])
		if !model.ValidSource(source) {
			return nil, eris.Errorf("stage: unknown source %q", parts[0])
		}
		inputs = append(inputs, staging.Input{Source: source, Ref: parts[1]})
	}
	return inputs, nil
}

func init() {
	stageCmd.Flags().StringArrayVar(&stageInputs, "input", nil, "source=ref pair; repeatable")
	rootCmd.AddCommand(stageCmd)
}
