package identity

import (
	"github.com/agext/levenshtein"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Key is the identity a transformer extracts from one raw row.
type Key struct {
	Name       string
	Position   string
	School     string
	ExternalID string
}

// scorer computes weighted composite similarity on a 0-100 scale.
type scorer struct {
	cfg config.MatchConfig
}

// score compares an identity key against a candidate prospect. Candidates
// are already position-scoped, so the position term is a constant credit;
// the school term participates only when both sides carry an affiliation,
// with its weight otherwise folded into the name term.
func (s scorer) score(key Key, cand *model.Prospect) float64 {
	nameSim := levenshtein.Similarity(NormalizeName(key.Name), NormalizeName(cand.FullName()), nil)

	nameWeight := s.cfg.NameWeight
	schoolTerm := 0.0

	keySchool := NormalizeSchool(key.School)
	candSchool := NormalizeSchool(cand.School)

	if keySchool != "" && candSchool != "" {
		schoolTerm = s.cfg.SchoolWeight * levenshtein.Similarity(keySchool, candSchool, nil)
	} else {
		// No affiliation on one side: the name carries the school weight.
		nameWeight += s.cfg.SchoolWeight
	}

	composite := nameWeight*nameSim + s.cfg.PositionWeight*1.0 + schoolTerm
	return composite * 100
}
