// Package staging implements the immutable raw-row holding area: one
// table per source, written by truncate-and-replace, never updated.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Store provides insert and read access to the per-source staging tables.
// There is deliberately no update method on this type.
type Store struct {
	pool db.Pool
}

// NewStore creates a staging store backed by the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// tableFor maps a source to its staging table name.
func tableFor(source model.Source) (string, error) {
	if !model.ValidSource(source) {
		return "", eris.Errorf("staging: unknown source %q", source)
	}
	return fmt.Sprintf("staging_%s", source), nil
}

// Replace swaps the source's staging generation: truncate, then COPY the
// new rows under the given batch id, in one transaction. Returns the
// number of rows staged.
func (s *Store) Replace(ctx context.Context, source model.Source, batchID string, rows []map[string]any) (int64, error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "staging: begin replace tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE draft_data.%s", table)); err != nil {
		return 0, eris.Wrapf(err, "staging: truncate %s", table)
	}

	copyRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return 0, eris.Wrap(err, "staging: marshal row")
		}
		copyRows = append(copyRows, []any{batchID, rowJSON, model.HashRow(row)})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"draft_data", table},
		[]string{"batch_id", "row", "content_hash"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "staging: COPY into %s", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "staging: commit replace tx")
	}

	zap.L().Info("staging: generation replaced",
		zap.String("source", string(source)),
		zap.String("batch_id", batchID),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Rows returns the source's current staging generation in insertion order.
func (s *Store) Rows(ctx context.Context, source model.Source) ([]model.StagingRecord, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, batch_id, row, content_hash, staged_at
		 FROM draft_data.%s ORDER BY id`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "staging: query %s", table)
	}
	defer rows.Close()

	var records []model.StagingRecord
	for rows.Next() {
		rec := model.StagingRecord{Source: source}
		var rowJSON []byte
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rowJSON, &rec.ContentHash, &rec.StagedAt); err != nil {
			return nil, eris.Wrapf(err, "staging: scan %s row", table)
		}
		if err := json.Unmarshal(rowJSON, &rec.Row); err != nil {
			return nil, eris.Wrapf(err, "staging: unmarshal %s row %d", table, rec.ID)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the size of the source's current staging generation.
func (s *Store) Count(ctx context.Context, source model.Source) (int64, error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM draft_data.%s", table)).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "staging: count %s", table)
	}
	return n, nil
}

// CurrentBatch returns the batch id of the most recently staged row
// across all sources, or "" when staging is empty.
func (s *Store) CurrentBatch(ctx context.Context) (string, error) {
	var batchID string
	err := s.pool.QueryRow(ctx,
		`SELECT batch_id FROM (
		     SELECT batch_id, staged_at FROM draft_data.staging_grades
		     UNION ALL SELECT batch_id, staged_at FROM draft_data.staging_combine
		     UNION ALL SELECT batch_id, staged_at FROM draft_data.staging_college_stats
		     UNION ALL SELECT batch_id, staged_at FROM draft_data.staging_projections
		 ) b ORDER BY staged_at DESC LIMIT 1`,
	).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "staging: current batch")
	}
	return batchID, nil
}
