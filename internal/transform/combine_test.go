package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftscope/prospect-etl/internal/model"
)

func TestParseHeight(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"feet apostrophe inches", `6'4"`, 76, false},
		{"feet dash inches", "6-4", 76, false},
		{"plain inches", "76", 76, false},
		{"scout code", "6040", 76, false},
		{"scout code rounds eighths up", "6035", 76, false},
		{"scout code rounds eighths down", "6032", 75, false},
		{"too short", "40", 0, true},
		{"too tall", "90", 0, true},
		{"invalid inches component", "6-13", 0, true},
		{"garbage", "tall", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeight(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBroadJump(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"feet inches", `9'10"`, 118, false},
		{"feet dash", "9-10", 118, false},
		{"plain inches", "118", 118, false},
		{"implausible", "20", 0, true},
		{"garbage", "far", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBroadJump(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombineTransformer_Transform(t *testing.T) {
	tr := &CombineTransformer{}
	rec := model.StagingRecord{
		ID:     3,
		Source: model.SourceCombine,
		Row: map[string]any{
			"name": "Jalen Carter", "position": "DT", "school": "Georgia",
			"height": "6-3", "weight": 314.0, "forty": 4.95, "bench": 25.0,
		},
	}

	out, err := tr.Transform(rec, "p1", "run1")
	require.NoError(t, err)
	require.Len(t, out.Measurements, 1)

	m := out.Measurements[0]
	require.NotNil(t, m.HeightIn)
	assert.Equal(t, 75.0, *m.HeightIn)
	require.NotNil(t, m.WeightLb)
	assert.Equal(t, 314.0, *m.WeightLb)
	require.NotNil(t, m.FortyYard)
	assert.Equal(t, 4.95, *m.FortyYard)
	require.NotNil(t, m.BenchReps)
	assert.Equal(t, 25, *m.BenchReps)
	assert.Nil(t, m.VerticalIn)
	assert.Nil(t, m.Shuttle)

	// One lineage entry per populated measurable.
	assert.Len(t, out.Lineage, 4)
	for _, e := range out.Lineage {
		assert.Equal(t, model.EntityMeasurement, e.EntityType)
		assert.Equal(t, "p1", e.EntityID)
		assert.Equal(t, int64(3), e.StagingRowID)
	}
}

func TestCombineTransformer_TransformRejectsBadHeight(t *testing.T) {
	tr := &CombineTransformer{}
	rec := model.StagingRecord{
		Source: model.SourceCombine,
		Row:    map[string]any{"name": "Jalen Carter", "position": "DT", "height": "9-9"},
	}
	_, err := tr.Transform(rec, "p1", "run1")
	assert.Error(t, err)
}

func TestCombineTransformer_Validate(t *testing.T) {
	tr := &CombineTransformer{}

	assert.True(t, tr.Validate(map[string]any{"name": "A B", "position": "DT", "forty": 4.9}))
	// No measurable fields carries nothing.
	assert.False(t, tr.Validate(map[string]any{"name": "A B", "position": "DT"}))
	assert.False(t, tr.Validate(map[string]any{"position": "DT", "forty": 4.9}))
}
