package transform

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func batchMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		NameWeight:     0.60,
		PositionWeight: 0.25,
		SchoolWeight:   0.15,
		HighThreshold:  90.0,
		LowThreshold:   75.0,
	}
}

func TestRunBatch_InvalidRowsAreCountedNotFatal(t *testing.T) {
	recs := make([]model.StagingRecord, 0, 100)
	for i := 0; i < 100; i++ {
		row := map[string]any{
			"id":       fmt.Sprintf("G%03d", i),
			"name":     fmt.Sprintf("First%03d Last%03d", i, i),
			"position": "DT",
			"grade":    75.0,
		}
		if i%20 == 0 {
			// 5 rows without a grade fail validation.
			delete(row, "grade")
		}
		recs = append(recs, model.StagingRecord{ID: int64(i + 1), Source: model.SourceGrades, Row: row})
	}

	resolver := identity.NewResolver(batchMatchConfig())
	res, err := RunBatch(context.Background(), &GradeTransformer{}, resolver, "run1", recs)
	require.NoError(t, err)

	assert.Equal(t, int64(95), res.Successes)
	require.Len(t, res.Failures, 5)
	for _, f := range res.Failures {
		assert.Equal(t, model.ReasonValidationFailed, f.Reason)
		assert.Equal(t, model.PhaseTransform, f.Phase)
		assert.Equal(t, model.SourceGrades, f.Source)
	}

	assert.Len(t, res.Output.Grades, 95)
	// Every accepted row emitted lineage.
	assert.GreaterOrEqual(t, len(res.Output.Lineage), 95)
}

func TestRunBatch_CreationEmitsIdentityLineage(t *testing.T) {
	recs := []model.StagingRecord{{
		ID:     1,
		Source: model.SourceGrades,
		Row:    map[string]any{"id": "X1", "name": "Jalen Carter", "position": "DT", "grade": 91.6},
	}}

	resolver := identity.NewResolver(batchMatchConfig())
	res, err := RunBatch(context.Background(), &GradeTransformer{}, resolver, "run1", recs)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Successes)

	var created bool
	for _, e := range res.Output.Lineage {
		if e.Rule == "entity_created" {
			created = true
			assert.Equal(t, model.EntityProspect, e.EntityType)
			assert.Equal(t, "run1", e.RunID)
		}
	}
	assert.True(t, created, "entity creation should be recorded in lineage")
}

func TestRunBatch_TransformErrorIsRowFailure(t *testing.T) {
	recs := []model.StagingRecord{{
		ID:     1,
		Source: model.SourceCombine,
		Row:    map[string]any{"name": "Jalen Carter", "position": "DT", "height": "9-9"},
	}}

	resolver := identity.NewResolver(batchMatchConfig())
	res, err := RunBatch(context.Background(), &CombineTransformer{}, resolver, "run1", recs)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Successes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.ReasonTransformFailed, res.Failures[0].Reason)
	assert.NotEmpty(t, res.Failures[0].Error)
}

func TestRunBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := identity.NewResolver(batchMatchConfig())
	_, err := RunBatch(ctx, &GradeTransformer{}, resolver, "run1", []model.StagingRecord{
		{ID: 1, Source: model.SourceGrades, Row: map[string]any{"name": "A B", "position": "DT", "grade": 50.0}},
	})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"grades", "combine", "college_stats", "projections"}, r.AllNames())

	tr, err := r.Get("grades")
	require.NoError(t, err)
	assert.Equal(t, model.SourceGrades, tr.Source())

	_, err = r.Get("nope")
	assert.Error(t, err)

	all := r.All()
	require.Len(t, all, 4)
	assert.Equal(t, "grades", all[0].Name())
}
