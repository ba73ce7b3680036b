package etl

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/merge"
	"github.com/draftscope/prospect-etl/internal/model"
	"github.com/draftscope/prospect-etl/internal/transform"
)

// loadSet is everything the load phase writes: the post-merge working
// set, the buffered transform output with attribute subjects re-pointed
// at group primaries, and the run's lineage entries.
type loadSet struct {
	prospects []model.Prospect
	output    transform.Output
	entries   []model.LineageEntry
}

// buildLoadSet re-points buffered attribute records through the merge
// remap and assembles the final lineage batch (conflict marking
// included).
func buildLoadSet(prospects []model.Prospect, out transform.Output, mergeRes *merge.Result) *loadSet {
	ls := &loadSet{prospects: prospects}

	for _, g := range out.Grades {
		g.ProspectID = mergeRes.Resolve(g.ProspectID)
		ls.output.Grades = append(ls.output.Grades, g)
	}
	for _, m := range out.Measurements {
		m.ProspectID = mergeRes.Resolve(m.ProspectID)
		ls.output.Measurements = append(ls.output.Measurements, m)
	}
	for _, line := range out.StatLines {
		line.ProspectID = mergeRes.Resolve(line.ProspectID)
		ls.output.StatLines = append(ls.output.StatLines, line)
	}
	for _, p := range out.Projections {
		p.ProspectID = mergeRes.Resolve(p.ProspectID)
		ls.output.Projections = append(ls.output.Projections, p)
	}

	ls.entries = append(ls.entries, out.Lineage...)
	ls.entries = append(ls.entries, mergeRes.Lineage...)
	for i := range ls.entries {
		e := &ls.entries[i]
		if e.EntityType != model.EntityProspect {
			e.EntityID = mergeRes.Resolve(e.EntityID)
		}
	}
	lineage.MarkConflicts(ls.entries)

	return ls
}

// load writes the run's entire output in one transaction. Any failure
// rolls everything back; canonical tables never see a partial run.
func load(ctx context.Context, pool db.Pool, recorder *lineage.Recorder, ls *loadSet) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "etl: begin load tx")
	}
	defer tx.Rollback(ctx)

	prospectRows := make([][]any, 0, len(ls.prospects))
	extIDRows := make([][]any, 0, len(ls.prospects))
	for i := range ls.prospects {
		p := &ls.prospects[i]
		prospectRows = append(prospectRows, []any{
			p.ID, p.FirstName, p.LastName, p.Position, p.School,
			nullableStr(p.DedupGroupID), nullableStr(p.PrimaryID),
			string(p.Status), string(p.CreatedFromSource), p.CreatedAt, p.UpdatedAt,
		})

		sources := make([]model.Source, 0, len(p.ExternalIDs))
		for s := range p.ExternalIDs {
			sources = append(sources, s)
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
		for _, s := range sources {
			// Only active entities emit external-id rows. A merged member's
			// ids either moved to its primary during merge or were dropped
			// there with a lineage record; writing them here would trip the
			// unique (source, external_id) constraint.
			if p.Status == model.EntityActive {
				extIDRows = append(extIDRows, []any{p.ID, string(s), p.ExternalIDs[s]})
			}
		}
	}

	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "draft_data.prospects",
		Columns:      []string{"id", "first_name", "last_name", "position", "school", "dedup_group_id", "primary_id", "status", "created_from_source", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"first_name", "last_name", "position", "school", "dedup_group_id", "primary_id", "status", "updated_at"},
	}, prospectRows); err != nil {
		return 0, err
	}

	// Clear external ids for the loaded entities first so ids that moved
	// during merge do not trip the (source, external_id) constraint.
	if len(extIDRows) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM draft_data.prospect_external_ids
			 WHERE prospect_id = ANY($1)`, prospectIDs(ls.prospects)); err != nil {
			return 0, eris.Wrap(err, "etl: clear external ids")
		}
		if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
			Table:        "draft_data.prospect_external_ids",
			Columns:      []string{"prospect_id", "source", "external_id"},
			ConflictKeys: []string{"prospect_id", "source"},
		}, extIDRows); err != nil {
			return 0, err
		}
	}

	gradeRows := make([][]any, 0, len(ls.output.Grades))
	for _, g := range ls.output.Grades {
		gradeRows = append(gradeRows, []any{
			g.ProspectID, string(g.Source), g.RawGrade, g.NormalizedGrade,
			g.Period, g.Confidence, g.GradedAt,
		})
	}
	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "draft_data.prospect_grades",
		Columns:      []string{"prospect_id", "source", "raw_grade", "normalized_grade", "period", "confidence", "graded_at"},
		ConflictKeys: []string{"prospect_id", "source", "period"},
	}, gradeRows); err != nil {
		return 0, err
	}

	measureRows := make([][]any, 0, len(ls.output.Measurements))
	for _, m := range ls.output.Measurements {
		measureRows = append(measureRows, []any{
			m.ProspectID, string(m.Source), m.Period,
			m.HeightIn, m.WeightLb, m.FortyYard, m.VerticalIn,
			m.BenchReps, m.BroadJumpIn, m.ThreeCone, m.Shuttle,
		})
	}
	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "draft_data.prospect_measurements",
		Columns:      []string{"prospect_id", "source", "period", "height_in", "weight_lb", "forty_yard", "vertical_in", "bench_reps", "broad_jump_in", "three_cone", "shuttle"},
		ConflictKeys: []string{"prospect_id", "source", "period"},
	}, measureRows); err != nil {
		return 0, err
	}

	statRows := make([][]any, 0, len(ls.output.StatLines))
	for _, line := range ls.output.StatLines {
		statsJSON, err := json.Marshal(line.Stats)
		if err != nil {
			return 0, eris.Wrap(err, "etl: marshal stat line")
		}
		statRows = append(statRows, []any{
			line.ProspectID, string(line.Source), line.Season, line.Games, statsJSON,
		})
	}
	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "draft_data.prospect_college_stats",
		Columns:      []string{"prospect_id", "source", "season", "games", "stats"},
		ConflictKeys: []string{"prospect_id", "source", "season"},
	}, statRows); err != nil {
		return 0, err
	}

	projRows := make([][]any, 0, len(ls.output.Projections))
	for _, p := range ls.output.Projections {
		projRows = append(projRows, []any{
			p.ProspectID, string(p.Source), p.Period, p.Round, p.Pick,
		})
	}
	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "draft_data.prospect_projections",
		Columns:      []string{"prospect_id", "source", "period", "projected_round", "projected_pick"},
		ConflictKeys: []string{"prospect_id", "source", "period"},
	}, projRows); err != nil {
		return 0, err
	}

	written, err := recorder.RecordBatchTx(ctx, tx, ls.entries)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "etl: commit load tx")
	}

	zap.L().Info("load committed",
		zap.Int("prospects", len(ls.prospects)),
		zap.Int("attributes", ls.output.Attributes()),
		zap.Int64("lineage_entries", written),
	)
	return written, nil
}

func prospectIDs(prospects []model.Prospect) []string {
	ids := make([]string, len(prospects))
	for i := range prospects {
		ids[i] = prospects[i].ID
	}
	return ids
}
