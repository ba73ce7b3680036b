package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/model"
)

// CombineTransformer consumes combine and pro-day measurement dumps.
type CombineTransformer struct{}

func (t *CombineTransformer) Name() string         { return "combine" }
func (t *CombineTransformer) Source() model.Source { return model.SourceCombine }

func (t *CombineTransformer) Validate(row map[string]any) bool {
	if fieldString(row, "name", "player", "player_name") == "" {
		return false
	}
	if !model.ValidPosition(normPosition(fieldString(row, "position", "pos"))) {
		return false
	}
	// A measurement row with no measurable fields carries nothing.
	return hasAnyMeasurable(row)
}

func (t *CombineTransformer) ExtractIdentity(row map[string]any) *identity.Key {
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

func (t *CombineTransformer) Transform(rec model.StagingRecord, prospectID, runID string) (*Output, error) {
	period := fieldString(rec.Row, "period", "event", "draft_class")
	if period == "" {
		period = defaultCycle
	}
	m := model.Measurement{
		ProspectID: prospectID,
		Source:     t.Source(),
		Period:     period,
	}
	out := &Output{}

	record := func(field, rule, raw string, v any) {
		out.Lineage = append(out.Lineage, model.LineageEntry{
			EntityType:   model.EntityMeasurement,
			EntityID:     prospectID,
			Field:        field,
			NewValue:     formatValue(v),
			PrevValue:    raw,
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         rule,
			Description:  lineage.Describe(rule, raw, formatValue(v)),
			Actor:        model.ActorSystem,
		})
	}

	if raw := fieldString(rec.Row, "height", "ht"); raw != "" {
		in, err := ParseHeight(raw)
		if err != nil {
			return nil, eris.Wrap(err, "combine: height")
		}
		h := float64(in)
		m.HeightIn = &h
		record("height_in", "height_to_inches", raw, in)
	}
	if w, ok := fieldNumber(rec.Row, "weight", "wt", "weight_lb"); ok {
		if w < 140 || w > 420 {
			return nil, eris.Errorf("combine: weight %.0f lb out of plausible range", w)
		}
		m.WeightLb = &w
		record("weight_lb", "weight_passthrough", fieldString(rec.Row, "weight", "wt", "weight_lb"), w)
	}
	if f, ok := fieldNumber(rec.Row, "forty", "forty_yard", "40yd"); ok {
		m.FortyYard = &f
		record("forty_yard", "time_passthrough", fieldString(rec.Row, "forty", "forty_yard", "40yd"), f)
	}
	if v, ok := fieldNumber(rec.Row, "vertical", "vertical_in", "vert"); ok {
		m.VerticalIn = &v
		record("vertical_in", "jump_passthrough", fieldString(rec.Row, "vertical", "vertical_in", "vert"), v)
	}
	if b, ok := fieldInt(rec.Row, "bench", "bench_reps"); ok {
		m.BenchReps = &b
		record("bench_reps", "reps_passthrough", fieldString(rec.Row, "bench", "bench_reps"), b)
	}
	if raw := fieldString(rec.Row, "broad", "broad_jump"); raw != "" {
		in, err := ParseBroadJump(raw)
		if err != nil {
			return nil, eris.Wrap(err, "combine: broad jump")
		}
		bj := float64(in)
		m.BroadJumpIn = &bj
		record("broad_jump_in", "jump_to_inches", raw, in)
	}
	if c, ok := fieldNumber(rec.Row, "three_cone", "3cone", "cone"); ok {
		m.ThreeCone = &c
		record("three_cone", "time_passthrough", fieldString(rec.Row, "three_cone", "3cone", "cone"), c)
	}
	if s, ok := fieldNumber(rec.Row, "shuttle", "short_shuttle", "20ss"); ok {
		m.Shuttle = &s
		record("shuttle", "time_passthrough", fieldString(rec.Row, "shuttle", "short_shuttle", "20ss"), s)
	}

	if len(out.Lineage) == 0 {
		return nil, eris.New("combine: no measurable fields in row")
	}
	out.Measurements = []model.Measurement{m}
	return out, nil
}

func hasAnyMeasurable(row map[string]any) bool {
	for _, k := range []string{
		"height", "ht", "weight", "wt", "weight_lb", "forty", "forty_yard",
		"40yd", "vertical", "vertical_in", "vert", "bench", "bench_reps",
		"broad", "broad_jump", "three_cone", "3cone", "cone", "shuttle",
		"short_shuttle", "20ss",
	} {
		if fieldString(row, k) != "" {
			return true
		}
	}
	return false
}

var (
	feetInchesRe = regexp.MustCompile(`^(\d)\s*(?:'|ft|-)\s*(\d{1,2})\s*(?:"|in)?$`)
	scoutCodeRe  = regexp.MustCompile(`^(\d)(\d{2})(\d)$`)
)

// ParseHeight converts the height notations the dumps use into whole
// inches. Accepted forms: feet-inches ("6'4\"", "6-4", "6 ft 4 in"),
// plain inches ("76"), and the four-digit scout code ("6040" is 6'4",
// the trailing digit counting eighths of an inch and rounded).
func ParseHeight(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, eris.New("empty height")
	}

	if m := feetInchesRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches, _ := strconv.Atoi(m[2])
		if inches > 11 {
			return 0, eris.Errorf("invalid inches component %q", raw)
		}
		return checkHeight(feet*12 + inches)
	}

	if m := scoutCodeRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches, _ := strconv.Atoi(m[2])
		eighths, _ := strconv.Atoi(m[3])
		if feet >= 5 && inches <= 11 {
			total := feet*12 + inches
			if eighths >= 4 {
				total++
			}
			return checkHeight(total)
		}
	}

	if n, err := strconv.Atoi(s); err == nil {
		return checkHeight(n)
	}

	return 0, eris.Errorf("unrecognized height %q", raw)
}

func checkHeight(in int) (int, error) {
	if in < 60 || in > 84 {
		return 0, eris.Errorf("height %d in out of plausible range", in)
	}
	return in, nil
}

// ParseBroadJump converts a broad jump to whole inches. Accepted forms:
// feet-inches ("9'10\"", "9-10") and plain inches ("118").
func ParseBroadJump(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, eris.New("empty broad jump")
	}

	if m := feetInchesRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches, _ := strconv.Atoi(m[2])
		if inches > 11 {
			return 0, eris.Errorf("invalid inches component %q", raw)
		}
		return feet*12 + inches, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 60 || n > 160 {
			return 0, eris.Errorf("broad jump %d in out of plausible range", n)
		}
		return n, nil
	}

	return 0, eris.Errorf("unrecognized broad jump %q", raw)
}
