package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testQualityConfig() config.QualityConfig {
	return config.QualityConfig{
		PassCompleteness: 0.95,
		WarnCompleteness: 0.85,
	}
}

func fullProspect(id string) model.Prospect {
	return model.Prospect{
		ID:        id,
		FirstName: "Jalen",
		LastName:  "Carter",
		Position:  "DT",
		School:    "Georgia",
		ExternalIDs: map[model.Source]string{
			model.SourceGrades: "X" + id,
		},
		Status:    model.EntityActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestDefaultRules_ParseAndValidate(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	assert.Greater(t, len(rules), 20)

	var hasCritical, hasUniqueness bool
	for _, r := range rules {
		if r.Critical {
			hasCritical = true
		}
		if r.Kind == KindUniqueness {
			hasUniqueness = true
		}
	}
	assert.True(t, hasCritical)
	assert.True(t, hasUniqueness)
}

func TestParseRules_Invalid(t *testing.T) {
	_, err := parseRules([]byte("rules: []"))
	assert.Error(t, err)

	_, err = parseRules([]byte(`
rules:
  - name: bad
    kind: range
    entity: grade
    field: raw_grade
`))
	assert.Error(t, err, "range rule without bounds")

	_, err = parseRules([]byte(`
rules:
  - name: bad
    kind: teleport
    entity: grade
    field: raw_grade
`))
	assert.Error(t, err, "unknown kind")
}

func TestValidate_CleanSetPasses(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	report := v.Validate("run1", Input{
		Prospects: []model.Prospect{fullProspect("p1")},
		Grades: []model.Grade{{
			ProspectID: "p1", Source: model.SourceGrades,
			RawGrade: 91.6, NormalizedGrade: 9.58, Period: "draft", Confidence: 1.0,
		}},
		RowsSucceeded: 1,
	})

	assert.Equal(t, model.QualityPass, report.Status)
	assert.False(t, report.Blocking())
	assert.Equal(t, 0, report.CriticalFailures())
	assert.Equal(t, 1.0, report.Completeness)
	assert.Equal(t, 0.0, report.ErrorRate)
}

func TestValidate_CriticalViolationFails(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	report := v.Validate("run1", Input{
		Prospects: []model.Prospect{fullProspect("p1")},
		Grades: []model.Grade{{
			ProspectID: "p1", Source: model.SourceGrades,
			// Normalized outside the 5-10 band: critical.
			RawGrade: 91.6, NormalizedGrade: 12.4, Period: "draft", Confidence: 1.0,
		}},
		RowsSucceeded: 1,
	})

	assert.Equal(t, model.QualityFail, report.Status)
	assert.True(t, report.Blocking())
	assert.GreaterOrEqual(t, report.CriticalFailures(), 1)
}

func TestValidate_NonCriticalViolationWarns(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	forty := 7.9 // outside the plausible band, non-critical
	report := v.Validate("run1", Input{
		Prospects: []model.Prospect{fullProspect("p1")},
		Measurements: []model.Measurement{{
			ProspectID: "p1", Source: model.SourceCombine, Period: "draft",
			FortyYard: &forty,
		}},
		RowsSucceeded: 1,
	})

	assert.Equal(t, model.QualityPassWarnings, report.Status)
	assert.False(t, report.Blocking())
	assert.Equal(t, 0, report.CriticalFailures())
}

func TestValidate_DuplicateIdentitiesAreCritical(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	a := fullProspect("p1")
	b := fullProspect("p2")
	report := v.Validate("run1", Input{
		Prospects:     []model.Prospect{a, b},
		RowsSucceeded: 2,
	})

	assert.Equal(t, model.QualityFail, report.Status)

	var uniq *model.RuleOutcome
	for i := range report.Outcomes {
		if report.Outcomes[i].Rule == "duplicate_active_identities" {
			uniq = &report.Outcomes[i]
		}
	}
	require.NotNil(t, uniq)
	assert.False(t, uniq.Passed)
	assert.Equal(t, 1, uniq.Violations)
}

func TestValidate_MergedDuplicatesDoNotCount(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	a := fullProspect("p1")
	b := fullProspect("p2")
	b.Status = model.EntityMerged
	b.PrimaryID = "p1"

	report := v.Validate("run1", Input{
		Prospects:     []model.Prospect{a, b},
		RowsSucceeded: 2,
	})
	assert.NotEqual(t, model.QualityFail, report.Status)
}

func TestValidate_LowCompletenessFails(t *testing.T) {
	v, err := NewValidator(testQualityConfig())
	require.NoError(t, err)

	// Half the tracked fields empty sinks completeness below the floor.
	sparse := model.Prospect{
		ID: "p1", LastName: "Carter", Position: "DT",
		Status: model.EntityActive,
	}
	report := v.Validate("run1", Input{
		Prospects:     []model.Prospect{sparse},
		RowsSucceeded: 1,
	})

	assert.Less(t, report.Completeness, 0.85)
	assert.Equal(t, model.QualityFail, report.Status)
}

func TestValidate_CompletenessBetweenFloorsWarns(t *testing.T) {
	v := NewValidatorWithRules(testQualityConfig(), []Rule{
		{Name: "last_name", Kind: KindRequired, Entity: "prospect", Field: "last_name", Critical: true},
	})

	// 8 complete prospects plus 2 missing school and first name:
	// completeness 0.92 lands between the warn and pass floors.
	prospects := make([]model.Prospect, 0, 10)
	for i := 0; i < 8; i++ {
		prospects = append(prospects, fullProspect(string(rune('a'+i))))
	}
	for i := 0; i < 2; i++ {
		sparse := fullProspect(string(rune('x' + i)))
		sparse.School = ""
		sparse.FirstName = ""
		prospects = append(prospects, sparse)
	}

	report := v.Validate("run1", Input{Prospects: prospects, RowsSucceeded: 10})
	assert.InDelta(t, 0.92, report.Completeness, 0.001)
	assert.Equal(t, model.QualityPassWarnings, report.Status)
}

func TestValidate_ErrorRate(t *testing.T) {
	v := NewValidatorWithRules(testQualityConfig(), []Rule{
		{Name: "last_name", Kind: KindRequired, Entity: "prospect", Field: "last_name", Critical: true},
	})

	report := v.Validate("run1", Input{
		Prospects:     []model.Prospect{fullProspect("p1")},
		RowsSucceeded: 95,
		RowsFailed:    5,
	})
	assert.InDelta(t, 0.05, report.ErrorRate, 0.0001)
}
