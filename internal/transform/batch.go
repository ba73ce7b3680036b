package transform

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/model"
)

// BatchResult aggregates one transformer's pass over its staging
// generation. Row failures are recovered locally; the batch itself only
// errors on cancellation.
type BatchResult struct {
	Source    model.Source
	Successes int64
	Failures  []model.RowFailure
	Output    Output
}

// RunBatch processes staged rows through the transformer, resolving each
// row's canonical entity and collecting normalized output. Processing
// continues past per-row failures; each failure carries phase, reason,
// and error detail.
func RunBatch(ctx context.Context, t Transformer, resolver *identity.Resolver, runID string, recs []model.StagingRecord) (*BatchResult, error) {
	log := zap.L().With(
		zap.String("transformer", t.Name()),
		zap.String("run_id", runID),
	)

	result := &BatchResult{Source: t.Source()}

	fail := func(rec model.StagingRecord, reason model.FailureReason, err error) {
		f := model.RowFailure{
			Source:       t.Source(),
			StagingRowID: rec.ID,
			Phase:        model.PhaseTransform,
			Reason:       reason,
		}
		if err != nil {
			f.Error = err.Error()
		}
		result.Failures = append(result.Failures, f)
		log.Debug("row skipped",
			zap.Int64("staging_row_id", rec.ID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}

	for _, rec := range recs {
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "transform: batch cancelled")
		default:
		}

		if !t.Validate(rec.Row) {
			fail(rec, model.ReasonValidationFailed, nil)
			continue
		}

		key := t.ExtractIdentity(rec.Row)
		if key == nil {
			fail(rec, model.ReasonIdentityFailed, eris.New("no identity fields in row"))
			continue
		}

		match, err := resolver.ResolveOrCreate(*key, t.Source())
		if err != nil {
			fail(rec, model.ReasonIdentityFailed, err)
			continue
		}

		out, err := t.Transform(rec, match.ProspectID, runID)
		if err != nil {
			fail(rec, model.ReasonTransformFailed, err)
			continue
		}

		// An accepted transformation with no lineage would silently lose
		// provenance; treat it as the transformation failing.
		if out == nil || len(out.Lineage) == 0 {
			fail(rec, model.ReasonLineageFailed, eris.New("transformation produced no lineage"))
			continue
		}

		out.Lineage = append(out.Lineage, identityLineage(rec, match, *key, runID, t.Source())...)

		result.Output.append(out)
		result.Successes++
	}

	log.Info("batch complete",
		zap.Int64("successes", result.Successes),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// identityLineage documents how a row's subject was resolved: entity
// creation and low-band fuzzy accepts are audit events in their own right.
func identityLineage(rec model.StagingRecord, match identity.Match, key identity.Key, runID string, source model.Source) []model.LineageEntry {
	switch {
	case match.Created:
		return []model.LineageEntry{{
			EntityType:   model.EntityProspect,
			EntityID:     match.ProspectID,
			Field:        "identity",
			NewValue:     fmt.Sprintf("%s (%s)", key.Name, key.Position),
			RunID:        runID,
			Source:       source,
			StagingRowID: rec.ID,
			Rule:         "entity_created",
			Description:  fmt.Sprintf("created canonical entity from %s row", source),
			Actor:        model.ActorSystem,
		}}
	case match.Flagged:
		return []model.LineageEntry{{
			EntityType:   model.EntityProspect,
			EntityID:     match.ProspectID,
			Field:        "identity",
			NewValue:     key.Name,
			RunID:        runID,
			Source:       source,
			StagingRowID: rec.ID,
			Rule:         "fuzzy_match_flagged",
			Description:  fmt.Sprintf("low-band fuzzy accept, composite %.1f", match.Score),
			Actor:        model.ActorSystem,
		}}
	default:
		return nil
	}
}
