package model

import (
	"strings"
	"time"
)

// Source identifies one registered raw-data source.
type Source string

const (
	SourceGrades       Source = "grades"
	SourceCombine      Source = "combine"
	SourceCollegeStats Source = "college_stats"
	SourceProjections  Source = "projections"
)

// KnownSources lists every source with a staging table, in registration order.
var KnownSources = []Source{SourceGrades, SourceCombine, SourceCollegeStats, SourceProjections}

// ValidSource reports whether s names a registered source.
func ValidSource(s Source) bool {
	for _, k := range KnownSources {
		if k == s {
			return true
		}
	}
	return false
}

// Positions lists the valid position codes. Dedup groups never span
// positions, so a bad code here poisons both matching and merging.
// The quality validator enforces membership.
var Positions = []string{
	"QB", "RB", "FB", "WR", "TE",
	"OT", "OG", "C",
	"DT", "DE", "EDGE", "LB",
	"CB", "S",
	"K", "P", "LS",
}

// ValidPosition reports whether code is a known position.
func ValidPosition(code string) bool {
	for _, p := range Positions {
		if p == code {
			return true
		}
	}
	return false
}

// EntityStatus is the soft lifecycle state of a canonical prospect.
type EntityStatus string

const (
	EntityActive EntityStatus = "active"
	EntityMerged EntityStatus = "merged"
)

// Prospect is the canonical entity: the deduplicated cross-source record
// for one real-world subject. Never hard-deleted.
type Prospect struct {
	ID                string            `json:"id"`
	FirstName         string            `json:"first_name"`
	LastName          string            `json:"last_name"`
	Position          string            `json:"position"`
	School            string            `json:"school,omitempty"`
	ExternalIDs       map[Source]string `json:"external_ids,omitempty"`
	DedupGroupID      string            `json:"dedup_group_id,omitempty"`
	PrimaryID         string            `json:"primary_id,omitempty"`
	Status            EntityStatus      `json:"status"`
	CreatedFromSource Source            `json:"created_from_source"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// FullName returns "First Last" with single-part names handled.
func (p *Prospect) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Corroboration counts the independent sources that have attached a
// native external id to this prospect. Used as the fuzzy-match tie-break
// and for primary election during merge.
func (p *Prospect) Corroboration() int {
	return len(p.ExternalIDs)
}

// SplitName splits a raw full name into (first, last). Everything after
// the first token goes to the last name so compound surnames survive.
func SplitName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
