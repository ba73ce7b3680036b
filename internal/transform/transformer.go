// Package transform converts staged source-native rows into normalized
// field changes against canonical prospects, emitting lineage for every
// accepted row. One Transformer per registered source.
package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Output is what one row's transformation produces: normalized attribute
// records plus the lineage entries describing how each value was derived.
type Output struct {
	Grades       []model.Grade
	Measurements []model.Measurement
	StatLines    []model.CollegeStatLine
	Projections  []model.Projection
	Lineage      []model.LineageEntry
}

// append merges o2 into o.
func (o *Output) append(o2 *Output) {
	o.Grades = append(o.Grades, o2.Grades...)
	o.Measurements = append(o.Measurements, o2.Measurements...)
	o.StatLines = append(o.StatLines, o2.StatLines...)
	o.Projections = append(o.Projections, o2.Projections...)
	o.Lineage = append(o.Lineage, o2.Lineage...)
}

// Attributes counts the attribute records in the output.
func (o *Output) Attributes() int {
	return len(o.Grades) + len(o.Measurements) + len(o.StatLines) + len(o.Projections)
}

// Transformer is the per-source contract. Validate is non-fatal: invalid
// rows are skipped and counted by the batch runner, never erroring the
// batch. Every accepted row must emit at least one lineage entry.
type Transformer interface {
	// Name returns the unique transformer identifier.
	Name() string

	// Source returns the staging source this transformer consumes.
	Source() model.Source

	// Validate checks field presence and type/range sanity.
	Validate(row map[string]any) bool

	// ExtractIdentity pulls the identity fields (name, position, school,
	// native external id) from a raw row. Returns nil when the row cannot
	// identify a subject.
	ExtractIdentity(row map[string]any) *identity.Key

	// Transform normalizes the row's values for the resolved prospect.
	Transform(rec model.StagingRecord, prospectID, runID string) (*Output, error)
}

// Row access helpers shared by the per-source transformers. Staged rows
// are flat maps with string or float64 values (JSON decoding).

// fieldString returns the first present key as a trimmed string.
func fieldString(row map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// fieldNumber returns the first present key as a float64.
func fieldNumber(row map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := row[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// fieldInt returns the first present key as an int.
func fieldInt(row map[string]any, keys ...string) (int, bool) {
	f, ok := fieldNumber(row, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// normPosition uppercases and maps the common alternate position codes
// the sources disagree on.
func normPosition(raw string) string {
	p := strings.ToUpper(strings.TrimSpace(raw))
	switch p {
	case "HB", "TB":
		return "RB"
	case "OLB", "ILB", "MLB":
		return "LB"
	case "NT":
		return "DT"
	case "FS", "SS", "SAF":
		return "S"
	case "G":
		return "OG"
	case "T":
		return "OT"
	case "PK":
		return "K"
	}
	return p
}

// formatValue renders an attribute value for lineage new_value columns.
func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case *float64:
		if n == nil {
			return ""
		}
		return strconv.FormatFloat(*n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case *int:
		if n == nil {
			return ""
		}
		return strconv.Itoa(*n)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}
