package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftscope/prospect-etl/internal/model"
)

func record(id string) model.ExecutionRecord {
	return model.ExecutionRecord{Run: model.ExtractionRun{ID: id, Status: model.RunStatusSuccess}}
}

func TestHistory_BoundedNewestFirst(t *testing.T) {
	h := NewHistory(3)

	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		h.Add(record(id))
	}

	all := h.All()
	require.Len(t, all, 3)
	assert.Equal(t, "r4", all[0].Run.ID)
	assert.Equal(t, "r3", all[1].Run.ID)
	assert.Equal(t, "r2", all[2].Run.ID)

	latest := h.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "r4", latest.Run.ID)
	assert.Equal(t, 3, h.Len())
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(0) // falls back to the default cap
	assert.Nil(t, h.Latest())
	assert.Empty(t, h.All())
}

func TestHistory_SnapshotIsolation(t *testing.T) {
	h := NewHistory(5)
	h.Add(record("r1"))

	snap := h.All()
	h.Add(record("r2"))
	require.Len(t, snap, 1)
	assert.Equal(t, "r1", snap[0].Run.ID)
}
