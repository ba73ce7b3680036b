package model

import "time"

// ActorSystem is the actor recorded on lineage written by the pipeline
// itself; manual overrides carry the operator's name instead.
const ActorSystem = "system"

// LineageEntry is the immutable record of one field transformation.
// Append-only: this is the sole mechanism for answering "where did this
// value come from."
type LineageEntry struct {
	ID              int64             `json:"id,omitempty"`
	EntityType      EntityType        `json:"entity_type"`
	EntityID        string            `json:"entity_id"`
	Field           string            `json:"field"`
	NewValue        string            `json:"new_value"`
	PrevValue       string            `json:"prev_value,omitempty"`
	RunID           string            `json:"run_id"`
	Source          Source            `json:"source"`
	StagingRowID    int64             `json:"staging_row_id"`
	Rule            string            `json:"rule"`
	Description     string            `json:"description,omitempty"`
	HadConflict     bool              `json:"had_conflict"`
	ConflictSources map[string]string `json:"conflict_sources,omitempty"`
	Actor           string            `json:"actor"`
	CreatedAt       time.Time         `json:"created_at"`
}
