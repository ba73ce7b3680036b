package etl

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/model"
)

// RunStore persists extraction runs, their phase executions, and quality
// reports. Run rows are insert-then-finalize; nothing is ever deleted.
type RunStore struct {
	pool db.Pool
}

// NewRunStore creates a run store backed by the given pool.
func NewRunStore(pool db.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// CreateRun inserts the run row in running state.
func (s *RunStore) CreateRun(ctx context.Context, run *model.ExtractionRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO draft_data.extraction_runs (id, batch_id, status, started_at)
		 VALUES ($1, $2, $3, $4)`,
		run.ID, nullableID(run.BatchID), run.Status, run.StartedAt)
	if err != nil {
		return eris.Wrap(err, "etl: create run")
	}
	return nil
}

// FinishRun writes the run's terminal status, reason, and counts.
func (s *RunStore) FinishRun(ctx context.Context, run *model.ExtractionRun) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE draft_data.extraction_runs
		 SET status = $2, reason = $3, batch_id = $4,
		     rows_staged = $5, rows_transformed = $6, rows_failed = $7,
		     entities_created = $8, entities_merged = $9, lineage_written = $10,
		     completed_at = $11
		 WHERE id = $1`,
		run.ID, run.Status, nullableStr(run.Reason), nullableID(run.BatchID),
		run.Counts.RowsStaged, run.Counts.RowsTransformed, run.Counts.RowsFailed,
		run.Counts.EntitiesCreated, run.Counts.EntitiesMerged, run.Counts.LineageWritten,
		run.CompletedAt)
	if err != nil {
		return eris.Wrap(err, "etl: finish run")
	}
	return nil
}

// RecordPhase upserts one phase execution row. Called on every phase
// transition so the database always reflects the live state machine.
func (s *RunStore) RecordPhase(ctx context.Context, pe *model.PhaseExecution) error {
	var detailJSON []byte
	if len(pe.Detail) > 0 {
		var err error
		detailJSON, err = json.Marshal(pe.Detail)
		if err != nil {
			return eris.Wrap(err, "etl: marshal phase detail")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO draft_data.phase_executions
		     (run_id, phase, status, detail, error, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, phase) DO UPDATE
		 SET status = EXCLUDED.status, detail = EXCLUDED.detail,
		     error = EXCLUDED.error, completed_at = EXCLUDED.completed_at`,
		pe.RunID, pe.Phase, pe.Status, detailJSON, nullableStr(pe.Error),
		pe.StartedAt, pe.CompletedAt)
	if err != nil {
		return eris.Wrapf(err, "etl: record phase %s", pe.Phase)
	}
	return nil
}

// SaveQualityReport persists the run's quality report.
func (s *RunStore) SaveQualityReport(ctx context.Context, report *model.QualityReport) error {
	resultsJSON, err := json.Marshal(report.Outcomes)
	if err != nil {
		return eris.Wrap(err, "etl: marshal quality outcomes")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO draft_data.quality_reports
		     (run_id, status, completeness, error_rate, results, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id) DO UPDATE
		 SET status = EXCLUDED.status, completeness = EXCLUDED.completeness,
		     error_rate = EXCLUDED.error_rate, results = EXCLUDED.results`,
		report.RunID, report.Status, report.Completeness, report.ErrorRate,
		resultsJSON, report.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "etl: save quality report")
	}
	return nil
}

const runColumns = `id, batch_id, status, reason, rows_staged, rows_transformed,
       rows_failed, entities_created, entities_merged, lineage_written,
       started_at, completed_at`

// GetRun fetches one run by id.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM draft_data.extraction_runs WHERE id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: get run %s", runID)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]model.ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM draft_data.extraction_runs
		 ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "etl: list runs")
	}
	defer rows.Close()

	var runs []model.ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "etl: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetPhases returns a run's phase executions in pipeline order.
func (s *RunStore) GetPhases(ctx context.Context, runID string) ([]model.PhaseExecution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, phase, status, detail, error, started_at, completed_at
		 FROM draft_data.phase_executions WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "etl: get phases")
	}
	defer rows.Close()

	var phases []model.PhaseExecution
	for rows.Next() {
		var pe model.PhaseExecution
		var detailJSON []byte
		var errMsg *string
		if err := rows.Scan(&pe.ID, &pe.RunID, &pe.Phase, &pe.Status, &detailJSON,
			&errMsg, &pe.StartedAt, &pe.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "etl: scan phase")
		}
		if errMsg != nil {
			pe.Error = *errMsg
		}
		if len(detailJSON) > 0 {
			_ = json.Unmarshal(detailJSON, &pe.Detail)
		}
		phases = append(phases, pe)
	}
	return phases, rows.Err()
}

// GetQualityReport fetches a run's quality report, or nil when none was
// produced.
func (s *RunStore) GetQualityReport(ctx context.Context, runID string) (*model.QualityReport, error) {
	var report model.QualityReport
	var resultsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, status, completeness, error_rate, results, created_at
		 FROM draft_data.quality_reports WHERE run_id = $1`, runID,
	).Scan(&report.RunID, &report.Status, &report.Completeness,
		&report.ErrorRate, &resultsJSON, &report.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "etl: get quality report")
	}
	if len(resultsJSON) > 0 {
		_ = json.Unmarshal(resultsJSON, &report.Outcomes)
	}
	return &report, nil
}

// LatestRun returns the most recently started run, or nil when the
// runs table is empty.
func (s *RunStore) LatestRun(ctx context.Context) (*model.ExtractionRun, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.ExtractionRun, error) {
	var run model.ExtractionRun
	var batchID, reason *string
	err := row.Scan(&run.ID, &batchID, &run.Status, &reason,
		&run.Counts.RowsStaged, &run.Counts.RowsTransformed, &run.Counts.RowsFailed,
		&run.Counts.EntitiesCreated, &run.Counts.EntitiesMerged, &run.Counts.LineageWritten,
		&run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if batchID != nil {
		run.BatchID = *batchID
	}
	if reason != nil {
		run.Reason = *reason
	}
	return &run, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// touchCompleted returns a completed-at pointer for the current instant.
func touchCompleted() *time.Time {
	t := time.Now().UTC()
	return &t
}
