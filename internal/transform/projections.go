package transform

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// ProjectionTransformer consumes mock-draft and big-board projections.
type ProjectionTransformer struct{}

func (t *ProjectionTransformer) Name() string         { return "projections" }
func (t *ProjectionTransformer) Source() model.Source { return model.SourceProjections }

func (t *ProjectionTransformer) Validate(row map[string]any) bool {
	if fieldString(row, "name", "player", "player_name") == "" {
		return false
	}
	if !model.ValidPosition(normPosition(fieldString(row, "position", "pos"))) {
		return false
	}
	_, hasRound := fieldInt(row, "round", "projected_round")
	_, hasPick := fieldInt(row, "pick", "overall_pick", "projected_pick")
	return hasRound || hasPick
}

func (t *ProjectionTransformer) ExtractIdentity(row map[string]any) *identity.Key {
	name := fieldString(row, "name", "player", "player_name")
	if name == "" {
		return nil
	}
	return &identity.Key{
		Name:       name,
		Position:   normPosition(fieldString(row, "position", "pos")),
		School:     fieldString(row, "school", "college", "team"),
		ExternalID: fieldString(row, "id", "player_id", "pid"),
	}
}

func (t *ProjectionTransformer) Transform(rec model.StagingRecord, prospectID, runID string) (*Output, error) {
	period := fieldString(rec.Row, "period", "class", "draft_class")
	if period == "" {
		period = defaultCycle
	}

	p := model.Projection{
		ProspectID: prospectID,
		Source:     t.Source(),
		Period:     period,
	}

	if r, ok := fieldInt(rec.Row, "round", "projected_round"); ok {
		if r < 1 || r > 7 {
			return nil, eris.Errorf("projections: round %d out of range", r)
		}
		p.Round = &r
	}
	if pk, ok := fieldInt(rec.Row, "pick", "overall_pick", "projected_pick"); ok {
		if pk < 1 || pk > 262 {
			return nil, eris.Errorf("projections: pick %d out of range", pk)
		}
		p.Pick = &pk
	}
	if p.Round == nil && p.Pick == nil {
		return nil, eris.New("projections: neither round nor pick present")
	}

	// A pick implies its round; fill a missing round from the pick so the
	// two fields never disagree.
	if p.Round == nil && p.Pick != nil {
		r := roundForPick(*p.Pick)
		p.Round = &r
	}

	out := &Output{Projections: []model.Projection{p}}
	if p.Round != nil {
		out.Lineage = append(out.Lineage, model.LineageEntry{
			EntityType:   model.EntityProjection,
			EntityID:     prospectID,
			Field:        "round",
			NewValue:     formatValue(p.Round),
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         "projection_round",
			Description:  fmt.Sprintf("projected round %d (period %s)", *p.Round, period),
			Actor:        model.ActorSystem,
		})
	}
	if p.Pick != nil {
		out.Lineage = append(out.Lineage, model.LineageEntry{
			EntityType:   model.EntityProjection,
			EntityID:     prospectID,
			Field:        "pick",
			NewValue:     formatValue(p.Pick),
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         "projection_pick",
			Description:  fmt.Sprintf("projected overall pick %d (period %s)", *p.Pick, period),
			Actor:        model.ActorSystem,
		})
	}
	return out, nil
}

// roundForPick maps an overall pick to its draft round under the nominal
// 32-pick round size. Compensatory picks push late rounds past 32 but
// never move a pick earlier, so the floor is close enough for a
// projection.
func roundForPick(pick int) int {
	r := (pick-1)/32 + 1
	if r > 7 {
		r = 7
	}
	return r
}
