package lineage

import (
	"fmt"

	"github.com/draftscope/prospect-etl/internal/model"
)

// MarkConflicts flags entries where different sources wrote different
// values to the same (entity type, entity id, field) within one run, and
// fills each flagged entry's conflicting-source map. Entries are mutated
// in place before they are recorded.
func MarkConflicts(entries []model.LineageEntry) int {
	type fieldKey struct {
		entityType model.EntityType
		entityID   string
		field      string
	}

	bySources := make(map[fieldKey]map[string]string)
	for i := range entries {
		e := &entries[i]
		k := fieldKey{e.EntityType, e.EntityID, e.Field}
		if bySources[k] == nil {
			bySources[k] = make(map[string]string)
		}
		// Last write per source wins within a run; staging is already the
		// latest generation per source.
		bySources[k][string(e.Source)] = e.NewValue
	}

	var flagged int
	for i := range entries {
		e := &entries[i]
		sources := bySources[fieldKey{e.EntityType, e.EntityID, e.Field}]
		if !disagrees(sources) {
			continue
		}
		e.HadConflict = true
		e.ConflictSources = copyMap(sources)
		flagged++
	}
	return flagged
}

// disagrees reports whether more than one distinct value appears.
func disagrees(sources map[string]string) bool {
	if len(sources) < 2 {
		return false
	}
	var first string
	var seen bool
	for _, v := range sources {
		if !seen {
			first = v
			seen = true
			continue
		}
		if v != first {
			return true
		}
	}
	return false
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Describe renders a short transformation description for lineage rows.
func Describe(rule, from, to string) string {
	if from == "" {
		return fmt.Sprintf("%s: set to %s", rule, to)
	}
	return fmt.Sprintf("%s: %s -> %s", rule, from, to)
}
