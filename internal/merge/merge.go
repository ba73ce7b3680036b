// Package merge collapses duplicate canonical entities that survived
// identity resolution. Grouping is deterministic over the run's working
// set and idempotent: re-merging an already-merged set is a no-op.
package merge

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Result summarizes one merge pass.
type Result struct {
	Groups    int
	Merged    int64
	Prospects []model.Prospect
	Lineage   []model.LineageEntry

	// Remap points every merged entity id at its group primary. Attribute
	// records and external ids are re-pointed through it before load.
	Remap map[string]string
}

// Run groups active entities by normalized (name, position, school),
// elects a primary per group, and marks the rest merged. The updated
// entities are returned; the caller writes them back to the working set.
func Run(prospects []model.Prospect, runID string) *Result {
	groups := make(map[string][]int)
	for i, p := range prospects {
		if p.Status != model.EntityActive {
			continue
		}
		groups[groupKey(&p)] = append(groups[groupKey(&p)], i)
	}

	res := &Result{
		Prospects: prospects,
		Remap:     make(map[string]string),
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	for _, k := range keys {
		members := groups[k]
		res.Groups++

		primary := electPrimary(prospects, members)
		primaryID := prospects[primary].ID

		for _, i := range members {
			p := &prospects[i]
			prevGroup := p.DedupGroupID
			p.DedupGroupID = primaryID

			if i == primary {
				if prevGroup != primaryID {
					p.UpdatedAt = now
				}
				continue
			}

			p.Status = model.EntityMerged
			p.PrimaryID = primaryID
			p.UpdatedAt = now
			res.Remap[p.ID] = primaryID
			res.Merged++

			// The primary inherits external ids the member collected, first
			// writer per source wins. An id dropped because the slot already
			// holds a different value is recorded, not lost silently.
			pr := &prospects[primary]
			if pr.ExternalIDs == nil {
				pr.ExternalIDs = make(map[model.Source]string)
			}
			sources := make([]model.Source, 0, len(p.ExternalIDs))
			for source := range p.ExternalIDs {
				sources = append(sources, source)
			}
			sort.Slice(sources, func(a, b int) bool { return sources[a] < sources[b] })
			for _, source := range sources {
				extID := p.ExternalIDs[source]
				existing, taken := pr.ExternalIDs[source]
				if !taken {
					pr.ExternalIDs[source] = extID
					continue
				}
				if existing == extID {
					continue
				}
				res.Lineage = append(res.Lineage, model.LineageEntry{
					EntityType:  model.EntityProspect,
					EntityID:    primaryID,
					Field:       "external_id." + string(source),
					NewValue:    existing,
					PrevValue:   extID,
					RunID:       runID,
					Source:      source,
					Rule:        "dedup_external_id_dropped",
					Description: lineage.Describe("dedup_external_id_dropped", primaryID, fmt.Sprintf("kept %s, dropped %s from merged %s", existing, extID, p.ID)),
					HadConflict: true,
					ConflictSources: map[string]string{
						primaryID: existing,
						p.ID:      extID,
					},
					Actor: model.ActorSystem,
				})
			}

			res.Lineage = append(res.Lineage, model.LineageEntry{
				EntityType:  model.EntityProspect,
				EntityID:    p.ID,
				Field:       "status",
				NewValue:    string(model.EntityMerged),
				PrevValue:   string(model.EntityActive),
				RunID:       runID,
				Source:      p.CreatedFromSource,
				Rule:        "dedup_merge",
				Description: lineage.Describe("dedup_merge", p.ID, fmt.Sprintf("merged into %s", primaryID)),
				Actor:       model.ActorSystem,
			})
		}
	}

	// Entities already merged in a prior run keep their pointers; follow
	// them so the remap is closed over earlier generations.
	for i := range prospects {
		p := &prospects[i]
		if p.Status == model.EntityMerged && p.PrimaryID != "" {
			if final, ok := res.Remap[p.PrimaryID]; ok {
				p.PrimaryID = final
				p.DedupGroupID = final
			}
			if _, ok := res.Remap[p.ID]; !ok {
				res.Remap[p.ID] = p.PrimaryID
			}
		}
	}

	zap.L().Info("merge pass complete",
		zap.String("run_id", runID),
		zap.Int("groups", res.Groups),
		zap.Int64("merged", res.Merged),
	)
	return res
}

// Resolve maps an entity id to its group primary, or returns the id
// unchanged when it was never merged.
func (r *Result) Resolve(id string) string {
	if primary, ok := r.Remap[id]; ok {
		return primary
	}
	return id
}

func groupKey(p *model.Prospect) string {
	return identity.NormalizeName(p.FullName()) + "|" + p.Position + "|" + identity.NormalizeSchool(p.School)
}

// electPrimary picks the group's canonical survivor: earliest created,
// tie broken by corroborating source count (more wins), then lowest id.
func electPrimary(prospects []model.Prospect, members []int) int {
	best := members[0]
	for _, i := range members[1:] {
		a, b := &prospects[i], &prospects[best]
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			best = i
		case a.CreatedAt.Equal(b.CreatedAt):
			if a.Corroboration() > b.Corroboration() ||
				(a.Corroboration() == b.Corroboration() && a.ID < b.ID) {
				best = i
			}
		}
	}
	return best
}
