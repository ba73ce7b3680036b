package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftscope/prospect-etl/internal/model"
)

func TestCollegeStatsTransformer_PositionFiltering(t *testing.T) {
	tr := &CollegeStatsTransformer{}

	// A wide row carrying every column; only DT-mapped stats survive.
	rec := model.StagingRecord{
		ID:     5,
		Source: model.SourceCollegeStats,
		Row: map[string]any{
			"name": "Jalen Carter", "position": "DT", "season": 2022.0,
			"games":      13.0,
			"tackles":    32.0,
			"sacks":      3.0,
			"pass_yards": 0.0,
			"receptions": 0.0,
			"fg_made":    0.0,
		},
	}

	out, err := tr.Transform(rec, "p1", "run1")
	require.NoError(t, err)
	require.Len(t, out.StatLines, 1)

	line := out.StatLines[0]
	assert.Equal(t, 2022, line.Season)
	require.NotNil(t, line.Games)
	assert.Equal(t, 13, *line.Games)

	assert.Contains(t, line.Stats, "tackles")
	assert.Contains(t, line.Stats, "sacks")
	assert.NotContains(t, line.Stats, "pass_yards")
	assert.NotContains(t, line.Stats, "receptions")
	assert.NotContains(t, line.Stats, "fg_made")

	// One lineage entry per kept stat.
	assert.Len(t, out.Lineage, len(line.Stats))
}

func TestCollegeStatsTransformer_NoMappedStats(t *testing.T) {
	tr := &CollegeStatsTransformer{}
	rec := model.StagingRecord{
		Source: model.SourceCollegeStats,
		Row: map[string]any{
			"name": "Jalen Carter", "position": "DT", "season": 2022.0,
			"pass_yards": 3200.0,
		},
	}
	_, err := tr.Transform(rec, "p1", "run1")
	assert.Error(t, err)
}

func TestCollegeStatsTransformer_Validate(t *testing.T) {
	tr := &CollegeStatsTransformer{}

	assert.True(t, tr.Validate(map[string]any{"name": "A B", "position": "QB", "season": 2023.0}))
	assert.False(t, tr.Validate(map[string]any{"name": "A B", "position": "QB"}))
	assert.False(t, tr.Validate(map[string]any{"name": "A B", "position": "QB", "season": 1901.0}))
	assert.False(t, tr.Validate(map[string]any{"position": "QB", "season": 2023.0}))
}

func TestStatFieldsFor(t *testing.T) {
	for _, pos := range model.Positions {
		assert.NotEmpty(t, StatFieldsFor(pos), "position %s has no stat mapping", pos)
	}
	assert.Empty(t, StatFieldsFor("XX"))

	assert.Contains(t, StatFieldsFor("QB"), "pass_yards")
	assert.Contains(t, StatFieldsFor("WR"), "receptions")
	assert.NotContains(t, StatFieldsFor("K"), "tackles")
}
