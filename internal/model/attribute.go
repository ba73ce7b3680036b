package model

import "time"

// EntityType tags lineage entries and quality rules with the record kind
// they concern.
type EntityType string

const (
	EntityProspect    EntityType = "prospect"
	EntityGrade       EntityType = "grade"
	EntityMeasurement EntityType = "measurement"
	EntityCollegeStat EntityType = "college_stat"
	EntityProjection  EntityType = "projection"
)

// Grade is a source-attributed scouting grade. RawGrade is the value as
// published (0-100); NormalizedGrade is the unified 5.0-10.0 scale.
// Unique per (prospect, source, period).
type Grade struct {
	ProspectID      string    `json:"prospect_id"`
	Source          Source    `json:"source"`
	RawGrade        float64   `json:"raw_grade"`
	NormalizedGrade float64   `json:"normalized_grade"`
	Period          string    `json:"period"`
	Confidence      float64   `json:"confidence"`
	GradedAt        time.Time `json:"graded_at"`
}

// Measurement holds combine/pro-day results. Fields are pointers because
// most prospects skip at least one drill.
type Measurement struct {
	ProspectID  string   `json:"prospect_id"`
	Source      Source   `json:"source"`
	Period      string   `json:"period"`
	HeightIn    *float64 `json:"height_in,omitempty"`
	WeightLb    *float64 `json:"weight_lb,omitempty"`
	FortyYard   *float64 `json:"forty_yard,omitempty"`
	VerticalIn  *float64 `json:"vertical_in,omitempty"`
	BenchReps   *int     `json:"bench_reps,omitempty"`
	BroadJumpIn *float64 `json:"broad_jump_in,omitempty"`
	ThreeCone   *float64 `json:"three_cone,omitempty"`
	Shuttle     *float64 `json:"shuttle,omitempty"`
}

// CollegeStatLine is one season of position-conditioned statistics.
// Stats keys come from the per-position field map, values are the
// normalized numeric readings. Unique per (prospect, source, season).
type CollegeStatLine struct {
	ProspectID string             `json:"prospect_id"`
	Source     Source             `json:"source"`
	Season     int                `json:"season"`
	Games      *int               `json:"games,omitempty"`
	Stats      map[string]float64 `json:"stats"`
}

// Projection is a source's draft projection for a prospect.
type Projection struct {
	ProspectID string `json:"prospect_id"`
	Source     Source `json:"source"`
	Period     string `json:"period"`
	Round      *int   `json:"round,omitempty"`
	Pick       *int   `json:"pick,omitempty"`
}
