package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Tier labels how a resolution was reached.
type Tier string

const (
	TierExact   Tier = "exact"
	TierFuzzy   Tier = "fuzzy"
	TierCreated Tier = "created"
)

// Match is the outcome of one ResolveOrCreate call.
type Match struct {
	ProspectID string
	Tier       Tier
	Score      float64
	Flagged    bool // accepted in the low band; recorded for audit
	Created    bool
}

// FlaggedMatch is the audit record for a low-band fuzzy accept.
type FlaggedMatch struct {
	ProspectID string  `json:"prospect_id"`
	Source     string  `json:"source"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
}

// ExternalIDConflict is the audit record for a fuzzy match whose source
// already attached a different external id to the matched entity. The
// entity keeps its first id; the disagreement is what gets recorded.
type ExternalIDConflict struct {
	ProspectID string `json:"prospect_id"`
	Source     string `json:"source"`
	Name       string `json:"name"`
	ExistingID string `json:"existing_id"`
	IncomingID string `json:"incoming_id"`
}

// Resolver owns the run's working set of canonical entities and performs
// three-tier find-or-create resolution. All mutation is serialized, so
// concurrent transformers cannot double-create an entity.
type Resolver struct {
	cfg config.MatchConfig

	mu         sync.Mutex
	entities   map[string]*model.Prospect
	byExternal map[string]string   // source \x00 external id -> prospect id
	byPosition map[string][]string // position -> active prospect ids
	created     int64
	flagged     []FlaggedMatch
	idConflicts []ExternalIDConflict
}

// NewResolver creates an empty resolver with the given match tuning.
func NewResolver(cfg config.MatchConfig) *Resolver {
	return &Resolver{
		cfg:        cfg,
		entities:   make(map[string]*model.Prospect),
		byExternal: make(map[string]string),
		byPosition: make(map[string][]string),
	}
}

// Seed loads the current canonical entities and their external ids into
// the working set. Called once at run start, before Transform.
func (r *Resolver) Seed(ctx context.Context, pool db.Pool) error {
	rows, err := pool.Query(ctx,
		`SELECT id, first_name, last_name, position, school, dedup_group_id,
		        primary_id, status, created_from_source, created_at, updated_at
		 FROM draft_data.prospects`)
	if err != nil {
		return eris.Wrap(err, "identity: load prospects")
	}
	defer rows.Close()

	var seeded []model.Prospect
	for rows.Next() {
		var p model.Prospect
		var dedupGroup, primary *string
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Position, &p.School,
			&dedupGroup, &primary, &p.Status, &p.CreatedFromSource, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return eris.Wrap(err, "identity: scan prospect")
		}
		if dedupGroup != nil {
			p.DedupGroupID = *dedupGroup
		}
		if primary != nil {
			p.PrimaryID = *primary
		}
		seeded = append(seeded, p)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "identity: iterate prospects")
	}

	idRows, err := pool.Query(ctx,
		`SELECT prospect_id, source, external_id FROM draft_data.prospect_external_ids`)
	if err != nil {
		return eris.Wrap(err, "identity: load external ids")
	}
	defer idRows.Close()

	extIDs := make(map[string]map[model.Source]string)
	for idRows.Next() {
		var prospectID, externalID string
		var source model.Source
		if err := idRows.Scan(&prospectID, &source, &externalID); err != nil {
			return eris.Wrap(err, "identity: scan external id")
		}
		if extIDs[prospectID] == nil {
			extIDs[prospectID] = make(map[model.Source]string)
		}
		extIDs[prospectID][source] = externalID
	}
	if err := idRows.Err(); err != nil {
		return eris.Wrap(err, "identity: iterate external ids")
	}

	for i := range seeded {
		seeded[i].ExternalIDs = extIDs[seeded[i].ID]
	}
	r.SeedEntities(seeded)

	zap.L().Debug("identity: working set seeded", zap.Int("entities", len(seeded)))
	return nil
}

// SeedEntities loads prospects directly into the working set.
func (r *Resolver) SeedEntities(prospects []model.Prospect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range prospects {
		p := prospects[i]
		if p.ExternalIDs == nil {
			p.ExternalIDs = make(map[model.Source]string)
		}
		r.index(&p)
	}
}

// index adds p to all lookup structures. Caller holds the lock.
func (r *Resolver) index(p *model.Prospect) {
	r.entities[p.ID] = p
	for source, extID := range p.ExternalIDs {
		r.byExternal[externalKey(source, extID)] = p.ID
	}
	if p.Status == model.EntityActive {
		r.byPosition[p.Position] = append(r.byPosition[p.Position], p.ID)
	}
}

func externalKey(source model.Source, extID string) string {
	return string(source) + "\x00" + extID
}

// ResolveOrCreate finds the canonical entity a raw row refers to, trying
// exact external-id lookup, then position-scoped fuzzy matching, then
// entity creation. First hit wins.
func (r *Resolver) ResolveOrCreate(key Key, source model.Source) (Match, error) {
	if key.Name == "" || key.Position == "" {
		return Match{}, eris.New("identity: key requires name and position")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Tier 1: exact external id. Once a source has matched an entity,
	// repeat rows skip fuzzy work entirely.
	if key.ExternalID != "" {
		if id, ok := r.byExternal[externalKey(source, key.ExternalID)]; ok {
			return Match{ProspectID: r.resolvePrimary(id), Tier: TierExact, Score: 100}, nil
		}
	}

	// Tier 2: fuzzy over same-position candidates.
	if m, ok := r.fuzzyMatch(key, source); ok {
		return m, nil
	}

	// Tier 3: create.
	return r.create(key, source), nil
}

// resolvePrimary follows a merged entity's primary pointer.
func (r *Resolver) resolvePrimary(id string) string {
	if p, ok := r.entities[id]; ok && p.Status == model.EntityMerged && p.PrimaryID != "" {
		return p.PrimaryID
	}
	return id
}

// fuzzyMatch scores position-scoped candidates and applies the dual
// thresholds: >= high auto-accepts, >= low accepts with an audit flag.
// Caller holds the lock.
func (r *Resolver) fuzzyMatch(key Key, source model.Source) (Match, bool) {
	sc := scorer{cfg: r.cfg}
	keySchool := NormalizeSchool(key.School)

	type scored struct {
		p     *model.Prospect
		score float64
	}
	var candidates []scored

	for _, id := range r.byPosition[key.Position] {
		cand := r.entities[id]
		if cand.Status != model.EntityActive {
			continue
		}
		// Same affiliation when both sides declare one.
		if keySchool != "" {
			if cs := NormalizeSchool(cand.School); cs != "" && cs != keySchool {
				continue
			}
		}
		candidates = append(candidates, scored{p: cand, score: sc.score(key, cand)})
	}

	if len(candidates) == 0 {
		return Match{}, false
	}

	// Highest composite wins; equal scores favor the candidate with the
	// most corroborating sources, then the earliest created.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		ci, cj := candidates[i].p.Corroboration(), candidates[j].p.Corroboration()
		if ci != cj {
			return ci > cj
		}
		if !candidates[i].p.CreatedAt.Equal(candidates[j].p.CreatedAt) {
			return candidates[i].p.CreatedAt.Before(candidates[j].p.CreatedAt)
		}
		return candidates[i].p.ID < candidates[j].p.ID
	})

	best := candidates[0]
	if best.score < r.cfg.LowThreshold {
		return Match{}, false
	}

	m := Match{
		ProspectID: best.p.ID,
		Tier:       TierFuzzy,
		Score:      best.score,
		Flagged:    best.score < r.cfg.HighThreshold,
	}

	// Attach the source's external id so future rows hit tier 1. A slot
	// already holding a different id is a cross-source disagreement worth
	// auditing, not overwriting.
	if key.ExternalID != "" {
		existing, taken := best.p.ExternalIDs[source]
		switch {
		case !taken:
			best.p.ExternalIDs[source] = key.ExternalID
			r.byExternal[externalKey(source, key.ExternalID)] = best.p.ID
		case existing != key.ExternalID:
			r.idConflicts = append(r.idConflicts, ExternalIDConflict{
				ProspectID: best.p.ID,
				Source:     string(source),
				Name:       key.Name,
				ExistingID: existing,
				IncomingID: key.ExternalID,
			})
			zap.L().Warn("identity: conflicting external id on fuzzy match",
				zap.String("prospect_id", best.p.ID),
				zap.String("source", string(source)),
				zap.String("existing_id", existing),
				zap.String("incoming_id", key.ExternalID),
			)
		}
	}

	if m.Flagged {
		r.flagged = append(r.flagged, FlaggedMatch{
			ProspectID: best.p.ID,
			Source:     string(source),
			Name:       key.Name,
			Score:      m.Score,
		})
		zap.L().Debug("identity: low-band fuzzy accept",
			zap.String("name", key.Name),
			zap.String("prospect_id", best.p.ID),
			zap.Float64("score", m.Score),
		)
	}

	return m, true
}

// create inserts a new canonical entity into the working set. Caller
// holds the lock.
func (r *Resolver) create(key Key, source model.Source) Match {
	first, last := model.SplitName(key.Name)
	now := time.Now().UTC()

	p := &model.Prospect{
		ID:                uuid.NewString(),
		FirstName:         first,
		LastName:          last,
		Position:          key.Position,
		School:            key.School,
		ExternalIDs:       make(map[model.Source]string),
		Status:            model.EntityActive,
		CreatedFromSource: source,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if key.ExternalID != "" {
		p.ExternalIDs[source] = key.ExternalID
	}
	r.index(p)
	r.created++

	return Match{ProspectID: p.ID, Tier: TierCreated, Created: true}
}

// Get returns the working-set entity with the given id, or nil.
func (r *Resolver) Get(id string) *model.Prospect {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entities[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// Entities returns a snapshot of the working set.
func (r *Resolver) Entities() []model.Prospect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Prospect, 0, len(r.entities))
	for _, p := range r.entities {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Apply replaces working-set entities with updated copies (used by the
// merge phase to write back grouping results).
func (r *Resolver) Apply(prospects []model.Prospect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range prospects {
		p := prospects[i]
		if existing, ok := r.entities[p.ID]; ok {
			*existing = p
		} else {
			r.index(&p)
		}
	}
	// Rebuild the position index: merges deactivate entities.
	r.byPosition = make(map[string][]string)
	for _, p := range r.entities {
		if p.Status == model.EntityActive {
			r.byPosition[p.Position] = append(r.byPosition[p.Position], p.ID)
		}
	}
}

// CreatedCount reports how many entities this run created.
func (r *Resolver) CreatedCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// FlaggedMatches returns the audit records for low-band fuzzy accepts.
func (r *Resolver) FlaggedMatches() []FlaggedMatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FlaggedMatch, len(r.flagged))
	copy(out, r.flagged)
	return out
}

// ExternalIDConflicts returns the audit records for external-id
// disagreements seen during fuzzy matching.
func (r *Resolver) ExternalIDConflicts() []ExternalIDConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExternalIDConflict, len(r.idConflicts))
	copy(out, r.idConflicts)
	return out
}
