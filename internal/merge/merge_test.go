package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func prospect(id, first, last, pos, school string, created time.Time) model.Prospect {
	return model.Prospect{
		ID:                id,
		FirstName:         first,
		LastName:          last,
		Position:          pos,
		School:            school,
		Status:            model.EntityActive,
		CreatedFromSource: model.SourceGrades,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func TestRun_MergesSameIdentity(t *testing.T) {
	older := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	res := Run([]model.Prospect{
		prospect("dup", "Jalen", "Carter", "DT", "Georgia", newer),
		prospect("orig", "Jalen", "Carter", "DT", "Georgia", older),
		prospect("other", "Bryan", "Bresee", "DT", "Clemson", older),
	}, "run1")

	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, int64(1), res.Merged)

	byID := make(map[string]model.Prospect)
	for _, p := range res.Prospects {
		byID[p.ID] = p
	}

	// Earliest created wins the primary election.
	assert.Equal(t, model.EntityActive, byID["orig"].Status)
	assert.Equal(t, "orig", byID["orig"].DedupGroupID)

	assert.Equal(t, model.EntityMerged, byID["dup"].Status)
	assert.Equal(t, "orig", byID["dup"].PrimaryID)
	assert.Equal(t, "orig", byID["dup"].DedupGroupID)

	assert.Equal(t, model.EntityActive, byID["other"].Status)

	assert.Equal(t, "orig", res.Resolve("dup"))
	assert.Equal(t, "orig", res.Resolve("orig"))
	assert.Equal(t, "other", res.Resolve("other"))
}

func TestRun_NormalizedIdentityGrouping(t *testing.T) {
	now := time.Now().UTC()

	// Accents, suffixes, and school aliases collapse to one group.
	res := Run([]model.Prospect{
		prospect("a", "José", "Ramírez Jr.", "CB", "Ohio St", now),
		prospect("b", "Jose", "Ramirez", "CB", "Ohio State", now.Add(time.Hour)),
	}, "run1")

	assert.Equal(t, 1, res.Groups)
	assert.Equal(t, int64(1), res.Merged)
	assert.Equal(t, "a", res.Resolve("b"))
}

func TestRun_Idempotent(t *testing.T) {
	older := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first := Run([]model.Prospect{
		prospect("dup", "Jalen", "Carter", "DT", "Georgia", older.Add(time.Hour)),
		prospect("orig", "Jalen", "Carter", "DT", "Georgia", older),
	}, "run1")
	require.Equal(t, int64(1), first.Merged)

	// Re-merging the already-merged set changes nothing.
	second := Run(first.Prospects, "run2")
	assert.Equal(t, int64(0), second.Merged)
	assert.Empty(t, second.Lineage)

	byID := make(map[string]model.Prospect)
	for _, p := range second.Prospects {
		byID[p.ID] = p
	}
	assert.Equal(t, model.EntityMerged, byID["dup"].Status)
	assert.Equal(t, "orig", byID["dup"].PrimaryID)
	assert.Equal(t, "orig", second.Resolve("dup"))
}

func TestRun_TieBreakCorroborationThenID(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	corroborated := prospect("zz", "Jalen", "Carter", "DT", "", now)
	corroborated.ExternalIDs = map[model.Source]string{
		model.SourceGrades:  "G1",
		model.SourceCombine: "C1",
	}
	thin := prospect("aa", "Jalen", "Carter", "DT", "", now)
	thin.ExternalIDs = map[model.Source]string{model.SourceGrades: "G2"}

	res := Run([]model.Prospect{thin, corroborated}, "run1")

	// Equal creation time: the better-corroborated entity wins despite
	// the higher id.
	assert.Equal(t, "zz", res.Resolve("aa"))

	byID := make(map[string]model.Prospect)
	for _, p := range res.Prospects {
		byID[p.ID] = p
	}
	// The primary inherited nothing new for grades (slot taken).
	assert.Equal(t, "G1", byID["zz"].ExternalIDs[model.SourceGrades])
}

func TestRun_MergeEmitsLineage(t *testing.T) {
	older := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	res := Run([]model.Prospect{
		prospect("dup", "Jalen", "Carter", "DT", "Georgia", older.Add(time.Hour)),
		prospect("orig", "Jalen", "Carter", "DT", "Georgia", older),
	}, "run1")

	require.Len(t, res.Lineage, 1)
	e := res.Lineage[0]
	assert.Equal(t, model.EntityProspect, e.EntityType)
	assert.Equal(t, "dup", e.EntityID)
	assert.Equal(t, "status", e.Field)
	assert.Equal(t, "dedup_merge", e.Rule)
	assert.Equal(t, "run1", e.RunID)
	assert.Equal(t, string(model.EntityMerged), e.NewValue)
	assert.Equal(t, string(model.EntityActive), e.PrevValue)
}

func TestRun_DroppedExternalIDRecorded(t *testing.T) {
	older := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	primary := prospect("orig", "Jalen", "Carter", "DT", "Georgia", older)
	primary.ExternalIDs = map[model.Source]string{model.SourceGrades: "G1"}
	member := prospect("dup", "Jalen", "Carter", "DT", "Georgia", older.Add(time.Hour))
	member.ExternalIDs = map[model.Source]string{
		model.SourceGrades:  "G2",
		model.SourceCombine: "C1",
	}

	res := Run([]model.Prospect{primary, member}, "run1")
	require.Equal(t, int64(1), res.Merged)

	byID := make(map[string]model.Prospect)
	for _, p := range res.Prospects {
		byID[p.ID] = p
	}
	// The free combine slot is inherited; the occupied grades slot is not.
	assert.Equal(t, "G1", byID["orig"].ExternalIDs[model.SourceGrades])
	assert.Equal(t, "C1", byID["orig"].ExternalIDs[model.SourceCombine])

	var dropped *model.LineageEntry
	for i := range res.Lineage {
		if res.Lineage[i].Rule == "dedup_external_id_dropped" {
			dropped = &res.Lineage[i]
		}
	}
	require.NotNil(t, dropped)
	assert.Equal(t, "orig", dropped.EntityID)
	assert.Equal(t, "external_id.grades", dropped.Field)
	assert.Equal(t, "G1", dropped.NewValue)
	assert.Equal(t, "G2", dropped.PrevValue)
	assert.True(t, dropped.HadConflict)
	assert.Equal(t, "G1", dropped.ConflictSources["orig"])
	assert.Equal(t, "G2", dropped.ConflictSources["dup"])
}

func TestRun_PositionsNeverMergeAcross(t *testing.T) {
	now := time.Now().UTC()
	res := Run([]model.Prospect{
		prospect("dt", "Jalen", "Carter", "DT", "Georgia", now),
		prospect("lb", "Jalen", "Carter", "LB", "Georgia", now),
	}, "run1")
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, int64(0), res.Merged)
}
