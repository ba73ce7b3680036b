package etl

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/draftscope/prospect-etl/internal/model"
)

// Archive mirrors completed execution records into a local sqlite file so
// run history survives without a Postgres connection. Best-effort: the
// orchestrator logs archive failures but never fails a run over them.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (and initializes) the archive at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open archive %s", path)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
		    run_id       TEXT PRIMARY KEY,
		    status       TEXT NOT NULL,
		    started_at   TEXT NOT NULL,
		    completed_at TEXT,
		    record       TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "etl: init archive schema")
	}

	return &Archive{db: db}, nil
}

// Save writes one execution record, replacing any earlier snapshot of
// the same run.
func (a *Archive) Save(ctx context.Context, rec *model.ExecutionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "etl: marshal execution record")
	}

	var completed any
	if rec.Run.CompletedAt != nil {
		completed = rec.Run.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, started_at, completed_at, record)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE
		 SET status = excluded.status, completed_at = excluded.completed_at,
		     record = excluded.record`,
		rec.Run.ID, string(rec.Run.Status),
		rec.Run.StartedAt.Format("2006-01-02T15:04:05Z07:00"), completed,
		string(payload))
	if err != nil {
		return eris.Wrap(err, "etl: archive run")
	}
	return nil
}

// List returns archived records, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT record FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "etl: list archived runs")
	}
	defer rows.Close()

	var records []model.ExecutionRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "etl: scan archived run")
		}
		var rec model.ExecutionRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			zap.L().Warn("etl: skipping undecodable archived run", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
