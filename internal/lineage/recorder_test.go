package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftscope/prospect-etl/internal/model"
)

func TestRecord_InsertsEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO draft_data.lineage_entries").
		WithArgs(model.EntityGrade, "p1", "normalized_grade", "9.58", pgxmock.AnyArg(),
			"run1", model.SourceGrades, int64(7), "grade_rescale_0_100_to_5_10",
			pgxmock.AnyArg(), false, pgxmock.AnyArg(), "system").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	r := NewRecorder(mock)
	id, err := r.Record(context.Background(), &model.LineageEntry{
		EntityType:   model.EntityGrade,
		EntityID:     "p1",
		Field:        "normalized_grade",
		NewValue:     "9.58",
		PrevValue:    "91.6",
		RunID:        "run1",
		Source:       model.SourceGrades,
		StagingRowID: 7,
		Rule:         "grade_rescale_0_100_to_5_10",
		Description:  "rescaled",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryByEntity_ChronologicalWithFieldFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "entity_type", "entity_id", "field", "new_value", "prev_value",
		"run_id", "source", "staging_row_id", "rule", "description",
		"had_conflict", "conflict_sources", "actor", "created_at",
	}).
		AddRow(int64(1), model.EntityGrade, "p1", "normalized_grade", "7.5", nil,
			"run1", model.SourceGrades, int64(1), "grade_rescale_0_100_to_5_10", nil,
			false, []byte(nil), "system", now.Add(-time.Hour)).
		AddRow(int64(2), model.EntityGrade, "p1", "normalized_grade", "9.58", strPtr("7.5"),
			"run2", model.SourceGrades, int64(4), "grade_rescale_0_100_to_5_10", nil,
			true, []byte(`{"grades":"9.58","combine":"9.1"}`), "system", now)

	mock.ExpectQuery("SELECT id, entity_type, entity_id").
		WithArgs(model.EntityGrade, "p1", "normalized_grade").
		WillReturnRows(rows)

	r := NewRecorder(mock)
	entries, err := r.QueryByEntity(context.Background(), model.EntityGrade, "p1", "normalized_grade")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Empty(t, entries[0].PrevValue)
	assert.Equal(t, "7.5", entries[1].PrevValue)
	assert.True(t, entries[1].HadConflict)
	assert.Equal(t, "9.1", entries[1].ConflictSources["combine"])
	assert.True(t, entries[0].CreatedAt.Before(entries[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, entity_type, entity_id").
		WithArgs(model.EntityMeasurement, "height_in").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "entity_type", "entity_id", "field", "new_value", "prev_value",
			"run_id", "source", "staging_row_id", "rule", "description",
			"had_conflict", "conflict_sources", "actor", "created_at",
		}))

	r := NewRecorder(mock)
	entries, err := r.QueryConflicts(context.Background(), model.EntityMeasurement, "height_in")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
