package transform

import (
	"fmt"
	"time"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Grade scale bounds: raw grades are published on 0-100, the canonical
// scale is 5.0-10.0.
const (
	rawGradeMin  = 0.0
	rawGradeMax  = 100.0
	gradeScale   = 5.0
	gradeOffset  = 5.0
	defaultCycle = "draft"
)

// ClampGrade bounds a raw grade to the published 0-100 range.
func ClampGrade(raw float64) float64 {
	if raw < rawGradeMin {
		return rawGradeMin
	}
	if raw > rawGradeMax {
		return rawGradeMax
	}
	return raw
}

// NormalizeGrade linearly rescales a clamped 0-100 grade onto the unified
// 5.0-10.0 scale: 0 -> 5.0, 50 -> 7.5, 100 -> 10.0.
func NormalizeGrade(raw float64) float64 {
	return gradeOffset + ClampGrade(raw)/rawGradeMax*gradeScale
}

// GradeTransformer consumes the grading-site source.
type GradeTransformer struct{}

func (t *GradeTransformer) Name() string         { return "grades" }
func (t *GradeTransformer) Source() model.Source { return model.SourceGrades }

func (t *GradeTransformer) Validate(row map[string]any) bool {
	if fieldString(row, "name", "player", "player_name") == "" {
		return false
	}
	if !model.ValidPosition(normPosition(fieldString(row, "position", "pos"))) {
		return false
	}
	_, ok := fieldNumber(row, "grade", "overall", "overall_grade")
	return ok
}

func (t *GradeTransformer) ExtractIdentity(row map[string]any) *identity.Key {
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

func (t *GradeTransformer) Transform(rec model.StagingRecord, prospectID, runID string) (*Output, error) {
	raw, _ := fieldNumber(rec.Row, "grade", "overall", "overall_grade")
	clamped := ClampGrade(raw)
	normalized := NormalizeGrade(raw)

	period := fieldString(rec.Row, "period", "class", "draft_class")
	if period == "" {
		period = defaultCycle
	}

	confidence := 1.0
	if c, ok := fieldNumber(rec.Row, "confidence"); ok && c > 0 && c <= 1 {
		confidence = c
	}

	out := &Output{
		Grades: []model.Grade{{
			ProspectID:      prospectID,
			Source:          t.Source(),
			RawGrade:        clamped,
			NormalizedGrade: normalized,
			Period:          period,
			Confidence:      confidence,
			GradedAt:        time.Now().UTC(),
		}},
		Lineage: []model.LineageEntry{{
			EntityType:   model.EntityGrade,
			EntityID:     prospectID,
			Field:        "normalized_grade",
			NewValue:     formatValue(normalized),
			PrevValue:    formatValue(raw),
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         "grade_rescale_0_100_to_5_10",
			Description:  fmt.Sprintf("rescaled raw grade %.1f to %.2f (period %s)", raw, normalized, period),
			Actor:        model.ActorSystem,
		}},
	}

	if clamped != raw {
		out.Lineage = append(out.Lineage, model.LineageEntry{
			EntityType:   model.EntityGrade,
			EntityID:     prospectID,
			Field:        "raw_grade",
			NewValue:     formatValue(clamped),
			PrevValue:    formatValue(raw),
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         "grade_clamp",
			Description:  fmt.Sprintf("clamped out-of-range grade %.1f to %.1f", raw, clamped),
			Actor:        model.ActorSystem,
		})
	}

	return out, nil
}
