package quality

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Input is the transformed working set the validator inspects. Nothing
// here has been written to canonical tables yet.
type Input struct {
	Prospects    []model.Prospect
	Grades       []model.Grade
	Measurements []model.Measurement
	StatLines    []model.CollegeStatLine
	Projections  []model.Projection

	RowsSucceeded int64
	RowsFailed    int64
}

// Validator evaluates the rule set against a run's working set.
type Validator struct {
	rules []Rule
	cfg   config.QualityConfig
}

// NewValidator builds a validator over the embedded rule set.
func NewValidator(cfg config.QualityConfig) (*Validator, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return &Validator{rules: rules, cfg: cfg}, nil
}

// NewValidatorWithRules builds a validator over an explicit rule set.
func NewValidatorWithRules(cfg config.QualityConfig, rules []Rule) *Validator {
	return &Validator{rules: rules, cfg: cfg}
}

// Validate evaluates every rule and produces the run's quality report.
func (v *Validator) Validate(runID string, in Input) *model.QualityReport {
	report := &model.QualityReport{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}

	for _, rule := range v.rules {
		outcome := v.evaluate(rule, in)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Completeness = completeness(in.Prospects)
	if total := in.RowsSucceeded + in.RowsFailed; total > 0 {
		report.ErrorRate = float64(in.RowsFailed) / float64(total)
	}
	report.Status = v.status(report)

	zap.L().Info("quality report",
		zap.String("run_id", runID),
		zap.String("status", string(report.Status)),
		zap.Float64("completeness", report.Completeness),
		zap.Float64("error_rate", report.ErrorRate),
		zap.Int("critical_failures", report.CriticalFailures()),
	)
	return report
}

func (v *Validator) status(r *model.QualityReport) model.QualityStatus {
	if r.CriticalFailures() > 0 || r.Completeness < v.cfg.WarnCompleteness {
		return model.QualityFail
	}
	var warnings bool
	for _, o := range r.Outcomes {
		if !o.Passed {
			warnings = true
			break
		}
	}
	if warnings || r.Completeness < v.cfg.PassCompleteness {
		return model.QualityPassWarnings
	}
	return model.QualityPass
}

func (v *Validator) evaluate(rule Rule, in Input) model.RuleOutcome {
	out := model.RuleOutcome{
		Rule:     rule.Name,
		Critical: rule.Critical,
	}

	var violations int
	var detail string
	switch rule.Kind {
	case KindRange:
		violations, detail = checkRange(rule, in)
	case KindRequired:
		violations, detail = checkRequired(rule, in)
	case KindEnum:
		violations, detail = checkEnum(rule, in)
	case KindUniqueness:
		violations, detail = checkUniqueness(in)
	}

	out.Violations = violations
	out.Passed = violations == 0
	out.Detail = detail
	return out
}

func checkRange(rule Rule, in Input) (int, string) {
	var violations int
	var first string
	check := func(id string, val float64) {
		if rule.Min != nil && val < *rule.Min || rule.Max != nil && val > *rule.Max {
			violations++
			if first == "" {
				first = fmt.Sprintf("%s %s=%v", id, rule.Field, val)
			}
		}
	}

	switch rule.Entity {
	case "grade":
		for _, g := range in.Grades {
			switch rule.Field {
			case "raw_grade":
				check(g.ProspectID, g.RawGrade)
			case "normalized_grade":
				check(g.ProspectID, g.NormalizedGrade)
			case "confidence":
				check(g.ProspectID, g.Confidence)
			}
		}
	case "measurement":
		for _, m := range in.Measurements {
			if val, ok := measurementField(m, rule.Field); ok {
				check(m.ProspectID, val)
			}
		}
	case "college_stat":
		for _, line := range in.StatLines {
			switch rule.Field {
			case "season":
				check(line.ProspectID, float64(line.Season))
			case "games":
				if line.Games != nil {
					check(line.ProspectID, float64(*line.Games))
				}
			default:
				if val, ok := line.Stats[rule.Field]; ok {
					check(line.ProspectID, val)
				}
			}
		}
	case "projection":
		for _, p := range in.Projections {
			switch rule.Field {
			case "round":
				if p.Round != nil {
					check(p.ProspectID, float64(*p.Round))
				}
			case "pick":
				if p.Pick != nil {
					check(p.ProspectID, float64(*p.Pick))
				}
			}
		}
	}
	return violations, first
}

func measurementField(m model.Measurement, field string) (float64, bool) {
	switch field {
	case "height_in":
		if m.HeightIn != nil {
			return *m.HeightIn, true
		}
	case "weight_lb":
		if m.WeightLb != nil {
			return *m.WeightLb, true
		}
	case "forty_yard":
		if m.FortyYard != nil {
			return *m.FortyYard, true
		}
	case "vertical_in":
		if m.VerticalIn != nil {
			return *m.VerticalIn, true
		}
	case "bench_reps":
		if m.BenchReps != nil {
			return float64(*m.BenchReps), true
		}
	case "broad_jump_in":
		if m.BroadJumpIn != nil {
			return *m.BroadJumpIn, true
		}
	case "three_cone":
		if m.ThreeCone != nil {
			return *m.ThreeCone, true
		}
	case "shuttle":
		if m.Shuttle != nil {
			return *m.Shuttle, true
		}
	}
	return 0, false
}

func checkRequired(rule Rule, in Input) (int, string) {
	var violations int
	var first string
	for _, p := range in.Prospects {
		var val string
		switch rule.Field {
		case "first_name":
			val = p.FirstName
		case "last_name":
			val = p.LastName
		case "position":
			val = p.Position
		case "school":
			val = p.School
		}
		if val == "" {
			violations++
			if first == "" {
				first = fmt.Sprintf("prospect %s missing %s", p.ID, rule.Field)
			}
		}
	}
	return violations, first
}

func checkEnum(rule Rule, in Input) (int, string) {
	allowed := make(map[string]bool, len(rule.Values))
	for _, v := range rule.Values {
		allowed[v] = true
	}

	var violations int
	var first string
	for _, p := range in.Prospects {
		var val string
		switch rule.Field {
		case "position":
			val = p.Position
		case "status":
			val = string(p.Status)
		}
		if val != "" && !allowed[val] {
			violations++
			if first == "" {
				first = fmt.Sprintf("prospect %s has %s=%q", p.ID, rule.Field, val)
			}
		}
	}
	return violations, first
}

// checkUniqueness flags active prospects sharing a normalized
// (name, position, school) identity. The merge phase should have
// collapsed these; survivors indicate a merge defect.
func checkUniqueness(in Input) (int, string) {
	seen := make(map[string]string)
	var violations int
	var first string
	for _, p := range in.Prospects {
		if p.Status != model.EntityActive {
			continue
		}
		key := identity.NormalizeName(p.FullName()) + "|" + p.Position + "|" + identity.NormalizeSchool(p.School)
		if prior, ok := seen[key]; ok {
			violations++
			if first == "" {
				first = fmt.Sprintf("prospects %s and %s share identity", prior, p.ID)
			}
			continue
		}
		seen[key] = p.ID
	}
	return violations, first
}

// completeness is the fraction of non-empty tracked identity fields
// across active prospects.
func completeness(prospects []model.Prospect) float64 {
	var filled, total int
	for _, p := range prospects {
		if p.Status != model.EntityActive {
			continue
		}
		for _, v := range []string{p.FirstName, p.LastName, p.Position, p.School} {
			total++
			if v != "" {
				filled++
			}
		}
		total++
		if len(p.ExternalIDs) > 0 {
			filled++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(filled) / float64(total)
}
