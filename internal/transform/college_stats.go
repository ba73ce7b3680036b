package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// CollegeStatsTransformer consumes season stat lines. Each staged row is
// one (player, season) line with a wide column set; only the columns
// meaningful for the player's position survive normalization.
type CollegeStatsTransformer struct{}

func (t *CollegeStatsTransformer) Name() string         { return "college_stats" }
func (t *CollegeStatsTransformer) Source() model.Source { return model.SourceCollegeStats }

func (t *CollegeStatsTransformer) Validate(row map[string]any) bool {
	if fieldString(row, "name", "player", "player_name") == "" {
		return false
	}
	if !model.ValidPosition(normPosition(fieldString(row, "position", "pos"))) {
		return false
	}
	season, ok := fieldInt(row, "season", "year")
	return ok && season >= 1990 && season <= time.Now().Year()
}

func (t *CollegeStatsTransformer) ExtractIdentity(row map[string]any) *identity.Key {
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

func (t *CollegeStatsTransformer) Transform(rec model.StagingRecord, prospectID, runID string) (*Output, error) {
	position := normPosition(fieldString(rec.Row, "position", "pos"))
	season, _ := fieldInt(rec.Row, "season", "year")

	fields := StatFieldsFor(position)
	if len(fields) == 0 {
		return nil, eris.Errorf("college_stats: no stat mapping for position %s", position)
	}

	stats := make(map[string]float64)
	for _, f := range fields {
		if v, ok := fieldNumber(rec.Row, f); ok {
			stats[f] = v
		}
	}
	if len(stats) == 0 {
		return nil, eris.Errorf("college_stats: no mapped stats present for %s season %d", position, season)
	}

	line := model.CollegeStatLine{
		ProspectID: prospectID,
		Source:     t.Source(),
		Season:     season,
		Stats:      stats,
	}
	if g, ok := fieldInt(rec.Row, "games", "games_played", "gp"); ok {
		line.Games = &g
	}

	out := &Output{StatLines: []model.CollegeStatLine{line}}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Lineage = append(out.Lineage, model.LineageEntry{
			EntityType:   model.EntityCollegeStat,
			EntityID:     prospectID,
			Field:        fmt.Sprintf("%d.%s", season, k),
			NewValue:     formatValue(stats[k]),
			RunID:        runID,
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Rule:         "stat_position_filter",
			Description:  fmt.Sprintf("kept %s stat %s for season %d", position, k, season),
			Actor:        model.ActorSystem,
		})
	}

	return out, nil
}
