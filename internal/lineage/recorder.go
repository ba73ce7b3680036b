// Package lineage implements the append-only audit log of field
// transformations. The recorder exposes insert and query operations
// only; there is no update or delete path.
package lineage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Recorder appends and queries lineage entries.
type Recorder struct {
	pool db.Pool
}

// NewRecorder creates a recorder backed by the given pool.
func NewRecorder(pool db.Pool) *Recorder {
	return &Recorder{pool: pool}
}

const insertSQL = `
INSERT INTO draft_data.lineage_entries
    (entity_type, entity_id, field, new_value, prev_value, run_id, source,
     staging_row_id, rule, description, had_conflict, conflict_sources, actor)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`

// Record appends a single entry and returns its id. Used by manual
// overrides; pipeline runs go through RecordBatchTx.
func (r *Recorder) Record(ctx context.Context, e *model.LineageEntry) (int64, error) {
	conflictJSON, err := marshalConflicts(e.ConflictSources)
	if err != nil {
		return 0, err
	}

	actor := e.Actor
	if actor == "" {
		actor = model.ActorSystem
	}

	var id int64
	err = r.pool.QueryRow(ctx, insertSQL,
		e.EntityType, e.EntityID, e.Field, e.NewValue, nullable(e.PrevValue),
		e.RunID, e.Source, e.StagingRowID, e.Rule, nullable(e.Description),
		e.HadConflict, conflictJSON, actor,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "lineage: record entry")
	}
	return id, nil
}

// RecordBatchTx bulk-inserts entries on the caller's transaction via COPY.
// The Load phase uses this so lineage commits or rolls back with the
// canonical writes it describes.
func (r *Recorder) RecordBatchTx(ctx context.Context, tx pgx.Tx, entries []model.LineageEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		conflictJSON, err := marshalConflicts(e.ConflictSources)
		if err != nil {
			return 0, err
		}
		actor := e.Actor
		if actor == "" {
			actor = model.ActorSystem
		}
		rows = append(rows, []any{
			string(e.EntityType), e.EntityID, e.Field, e.NewValue, nullable(e.PrevValue),
			e.RunID, string(e.Source), e.StagingRowID, e.Rule, nullable(e.Description),
			e.HadConflict, conflictJSON, actor,
		})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"draft_data", "lineage_entries"},
		[]string{"entity_type", "entity_id", "field", "new_value", "prev_value",
			"run_id", "source", "staging_row_id", "rule", "description",
			"had_conflict", "conflict_sources", "actor"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, eris.Wrap(err, "lineage: bulk insert")
	}
	return n, nil
}

// QueryByEntity returns an entity's lineage in chronological order,
// optionally restricted to one field.
func (r *Recorder) QueryByEntity(ctx context.Context, entityType model.EntityType, entityID, field string) ([]model.LineageEntry, error) {
	sql := `SELECT id, entity_type, entity_id, field, new_value, prev_value, run_id,
	               source, staging_row_id, rule, description, had_conflict,
	               conflict_sources, actor, created_at
	        FROM draft_data.lineage_entries
	        WHERE entity_type = $1 AND entity_id = $2`
	args := []any{entityType, entityID}
	if field != "" {
		sql += " AND field = $3"
		args = append(args, field)
	}
	sql += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "lineage: query by entity")
	}
	defer rows.Close()

	return scanEntries(rows)
}

// QueryConflicts returns the entries where a field transformation saw
// disagreeing source values.
func (r *Recorder) QueryConflicts(ctx context.Context, entityType model.EntityType, field string) ([]model.LineageEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, entity_type, entity_id, field, new_value, prev_value, run_id,
		        source, staging_row_id, rule, description, had_conflict,
		        conflict_sources, actor, created_at
		 FROM draft_data.lineage_entries
		 WHERE entity_type = $1 AND field = $2 AND had_conflict
		 ORDER BY created_at, id`,
		entityType, field)
	if err != nil {
		return nil, eris.Wrap(err, "lineage: query conflicts")
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]model.LineageEntry, error) {
	var entries []model.LineageEntry
	for rows.Next() {
		var e model.LineageEntry
		var prev, desc *string
		var conflictJSON []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Field, &e.NewValue,
			&prev, &e.RunID, &e.Source, &e.StagingRowID, &e.Rule, &desc,
			&e.HadConflict, &conflictJSON, &e.Actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "lineage: scan entry")
		}
		if prev != nil {
			e.PrevValue = *prev
		}
		if desc != nil {
			e.Description = *desc
		}
		if len(conflictJSON) > 0 {
			_ = json.Unmarshal(conflictJSON, &e.ConflictSources)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalConflicts(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "lineage: marshal conflict sources")
	}
	return b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
