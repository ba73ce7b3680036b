package staging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testTime() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestReplace_TruncateThenCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE draft_data.staging_grades").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"draft_data", "staging_grades"},
		[]string{"batch_id", "row", "content_hash"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	store := NewStore(mock)
	n, err := store.Replace(context.Background(), model.SourceGrades, "batch1", []map[string]any{
		{"player": "Jalen Carter", "grade": "91.6"},
		{"player": "Bryan Bresee", "grade": "84.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_RollsBackOnCopyFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE draft_data.staging_combine").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"draft_data", "staging_combine"},
		[]string{"batch_id", "row", "content_hash"}).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	store := NewStore(mock)
	_, err = store.Replace(context.Background(), model.SourceCombine, "batch1", []map[string]any{
		{"player": "Jalen Carter"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_RejectsUnknownSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	_, err = store.Replace(context.Background(), model.Source("mock_drafts"), "batch1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRows_DecodesStagedJSON(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, batch_id, row, content_hash, staged_at FROM draft_data.staging_grades").
		WillReturnRows(pgxmock.NewRows([]string{"id", "batch_id", "row", "content_hash", "staged_at"}).
			AddRow(int64(1), "batch1", []byte(`{"player":"Jalen Carter","grade":"91.6"}`), "h1", testTime()).
			AddRow(int64(2), "batch1", []byte(`{"player":"Bryan Bresee"}`), "h2", testTime()))

	store := NewStore(mock)
	records, err := store.Rows(context.Background(), model.SourceGrades)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, model.SourceGrades, records[0].Source)
	assert.Equal(t, "Jalen Carter", records[0].Row["player"])
	assert.Equal(t, "91.6", records[0].Row["grade"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentBatch_EmptyStaging(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT batch_id FROM").
		WillReturnError(pgx.ErrNoRows)

	store := NewStore(mock)
	batch, err := store.CurrentBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", batch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentBatch_ReturnsNewest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT batch_id FROM").
		WillReturnRows(pgxmock.NewRows([]string{"batch_id"}).AddRow("batch9"))

	store := NewStore(mock)
	batch, err := store.CurrentBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "batch9", batch)
	assert.NoError(t, mock.ExpectationsWereMet())
}
