// Package etl drives the six-phase extraction pipeline and persists its
// audit trail: run rows, phase executions, quality reports, and a local
// archive of completed executions.
package etl

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/draftscope/prospect-etl/internal/config"
	"github.com/draftscope/prospect-etl/internal/db"
	"github.com/draftscope/prospect-etl/internal/identity"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/merge"
	"github.com/draftscope/prospect-etl/internal/model"
	"github.com/draftscope/prospect-etl/internal/quality"
	"github.com/draftscope/prospect-etl/internal/staging"
	"github.com/draftscope/prospect-etl/internal/transform"
)

// Orchestrator coordinates one extraction at a time over the staged
// generation: extract, transform, validate, merge, load, publish.
type Orchestrator struct {
	cfg       *config.Config
	pool      db.Pool
	staging   *staging.Store
	registry  *transform.Registry
	validator *quality.Validator // nil skips the validate phase
	recorder  *lineage.Recorder
	runs      *RunStore
	history   *History
	archive   *Archive // nil disables local archiving

	mu sync.Mutex // one extraction at a time
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg *config.Config, pool db.Pool, store *staging.Store, registry *transform.Registry, validator *quality.Validator, recorder *lineage.Recorder, runs *RunStore, history *History, archive *Archive) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		pool:      pool,
		staging:   store,
		registry:  registry,
		validator: validator,
		recorder:  recorder,
		runs:      runs,
		history:   history,
		archive:   archive,
	}
}

// History exposes the bounded in-memory execution history.
func (o *Orchestrator) History() *History {
	return o.history
}

// Execute runs the full pipeline against the current staging generation.
// The returned record is always populated; the error is non-nil only
// when run bookkeeping itself failed or the run terminated FAILED.
func (o *Orchestrator) Execute(ctx context.Context) (*model.ExecutionRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if deadline := o.cfg.Pipeline.SoftDeadline(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	run := model.ExtractionRun{
		ID:        uuid.NewString(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.runs.CreateRun(ctx, &run); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("extraction started")

	rec := &model.ExecutionRecord{Run: run}
	st := &runState{
		resolver: identity.NewResolver(o.cfg.Match),
	}

	err := o.phases(ctx, rec, st)
	o.finalize(ctx, rec, st, err)

	log.Info("extraction finished",
		zap.String("status", string(rec.Run.Status)),
		zap.Int64("rows_transformed", rec.Run.Counts.RowsTransformed),
		zap.Int64("rows_failed", rec.Run.Counts.RowsFailed),
		zap.Int64("entities_created", rec.Run.Counts.EntitiesCreated),
		zap.Int64("entities_merged", rec.Run.Counts.EntitiesMerged),
	)

	if rec.Run.Status == model.RunStatusFailed {
		if err != nil {
			return rec, err
		}
		return rec, eris.Errorf("etl: run %s failed: %s", rec.Run.ID, rec.Run.Reason)
	}
	return rec, nil
}

// runState carries the in-memory working data between phases.
type runState struct {
	resolver *identity.Resolver
	records  map[model.Source][]model.StagingRecord
	output   transform.Output
	failures []model.RowFailure
	mergeRes *merge.Result
}

// phases executes the pipeline in order, stopping at the first failed
// phase. Publish degradation does not stop the run.
func (o *Orchestrator) phases(ctx context.Context, rec *model.ExecutionRecord, st *runState) error {
	if err := o.runPhase(ctx, rec, model.PhaseExtract, func(ctx context.Context, pe *model.PhaseExecution) error {
		return o.extract(ctx, rec, st, pe)
	}); err != nil {
		return err
	}

	if err := o.runPhase(ctx, rec, model.PhaseTransform, func(ctx context.Context, pe *model.PhaseExecution) error {
		return o.transform(ctx, rec, st, pe)
	}); err != nil {
		return err
	}

	if o.validator == nil {
		o.skipPhase(ctx, rec, model.PhaseValidate)
	} else {
		if err := o.runPhase(ctx, rec, model.PhaseValidate, func(ctx context.Context, pe *model.PhaseExecution) error {
			return o.validate(ctx, rec, st, pe)
		}); err != nil {
			return err
		}
	}

	if err := o.runPhase(ctx, rec, model.PhaseMerge, func(ctx context.Context, pe *model.PhaseExecution) error {
		return o.merge(ctx, rec, st, pe)
	}); err != nil {
		return err
	}

	if err := o.runPhase(ctx, rec, model.PhaseLoad, func(ctx context.Context, pe *model.PhaseExecution) error {
		return o.load(ctx, rec, st, pe)
	}); err != nil {
		return err
	}

	// Publish is warn-only: a stale view is tolerable, a rolled-back load
	// is not. The phase never fails the run.
	_ = o.runPhase(ctx, rec, model.PhasePublish, func(ctx context.Context, pe *model.PhaseExecution) error {
		o.publish(ctx, pe)
		return nil
	})

	return nil
}

// runPhase tracks one phase through its lifecycle, persisting each
// transition.
func (o *Orchestrator) runPhase(ctx context.Context, rec *model.ExecutionRecord, phase model.Phase, fn func(context.Context, *model.PhaseExecution) error) error {
	pe := model.PhaseExecution{
		RunID:     rec.Run.ID,
		Phase:     phase,
		Status:    model.PhaseStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.runs.RecordPhase(ctx, &pe); err != nil {
		zap.L().Warn("phase bookkeeping failed", zap.String("phase", string(phase)), zap.Error(err))
	}

	err := fn(ctx, &pe)
	pe.CompletedAt = touchCompleted()
	if err != nil {
		pe.Status = model.PhaseStatusFailed
		pe.Error = err.Error()
	} else {
		pe.Status = model.PhaseStatusSuccess
	}

	// Terminal phase rows must land even when ctx is already done.
	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if perr := o.runs.RecordPhase(persistCtx, &pe); perr != nil {
		zap.L().Warn("phase bookkeeping failed", zap.String("phase", string(phase)), zap.Error(perr))
	}

	rec.Phases = append(rec.Phases, pe)
	return err
}

// skipPhase records a phase that was configured out.
func (o *Orchestrator) skipPhase(ctx context.Context, rec *model.ExecutionRecord, phase model.Phase) {
	now := time.Now().UTC()
	pe := model.PhaseExecution{
		RunID:       rec.Run.ID,
		Phase:       phase,
		Status:      model.PhaseStatusSkipped,
		StartedAt:   now,
		CompletedAt: &now,
	}
	if err := o.runs.RecordPhase(ctx, &pe); err != nil {
		zap.L().Warn("phase bookkeeping failed", zap.String("phase", string(phase)), zap.Error(err))
	}
	rec.Phases = append(rec.Phases, pe)
}

// extract claims the current staging generation and seeds the working
// set from the canonical tables.
func (o *Orchestrator) extract(ctx context.Context, rec *model.ExecutionRecord, st *runState, pe *model.PhaseExecution) error {
	batchID, err := o.staging.CurrentBatch(ctx)
	if err != nil {
		return err
	}
	if batchID == "" {
		return eris.New("etl: staging is empty, nothing to extract")
	}
	rec.Run.BatchID = batchID

	st.records = make(map[model.Source][]model.StagingRecord)
	var staged int64
	for _, t := range o.registry.All() {
		rows, err := o.staging.Rows(ctx, t.Source())
		if err != nil {
			return err
		}
		st.records[t.Source()] = rows
		staged += int64(len(rows))
	}
	rec.Run.Counts.RowsStaged = staged

	if err := st.resolver.Seed(ctx, o.pool); err != nil {
		return err
	}

	pe.Detail = map[string]any{
		"batch_id":    batchID,
		"rows_staged": staged,
	}
	return nil
}

// transform fans the registered transformers out over their staged rows
// and joins before the next phase. Per-row failures are tallied, not
// fatal.
func (o *Orchestrator) transform(ctx context.Context, rec *model.ExecutionRecord, st *runState, pe *model.PhaseExecution) error {
	results := make(map[model.Source]*transform.BatchResult)
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for _, t := range o.registry.All() {
		t := t
		g.Go(func() error {
			res, err := transform.RunBatch(gCtx, t, st.resolver, rec.Run.ID, st.records[t.Source()])
			if err != nil {
				return err
			}
			mu.Lock()
			results[t.Source()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Combine in registration order so downstream output is deterministic.
	perSource := map[string]any{}
	for _, t := range o.registry.All() {
		res := results[t.Source()]
		if res == nil {
			continue
		}
		st.output.Grades = append(st.output.Grades, res.Output.Grades...)
		st.output.Measurements = append(st.output.Measurements, res.Output.Measurements...)
		st.output.StatLines = append(st.output.StatLines, res.Output.StatLines...)
		st.output.Projections = append(st.output.Projections, res.Output.Projections...)
		st.output.Lineage = append(st.output.Lineage, res.Output.Lineage...)
		st.failures = append(st.failures, res.Failures...)
		rec.Run.Counts.RowsTransformed += res.Successes
		perSource[string(res.Source)] = map[string]any{
			"succeeded": res.Successes,
			"failed":    len(res.Failures),
		}
	}
	rec.Run.Counts.RowsFailed = int64(len(st.failures))
	rec.Run.Counts.EntitiesCreated = st.resolver.CreatedCount()

	pe.Detail = map[string]any{
		"sources":               perSource,
		"rows_transformed":      rec.Run.Counts.RowsTransformed,
		"rows_failed":           rec.Run.Counts.RowsFailed,
		"entities_created":      rec.Run.Counts.EntitiesCreated,
		"flagged_matches":       len(st.resolver.FlaggedMatches()),
		"external_id_conflicts": len(st.resolver.ExternalIDConflicts()),
	}
	return nil
}

// validate runs the quality gate over the transformed working set.
func (o *Orchestrator) validate(ctx context.Context, rec *model.ExecutionRecord, st *runState, pe *model.PhaseExecution) error {
	report := o.validator.Validate(rec.Run.ID, quality.Input{
		Prospects:     st.resolver.Entities(),
		Grades:        st.output.Grades,
		Measurements:  st.output.Measurements,
		StatLines:     st.output.StatLines,
		Projections:   st.output.Projections,
		RowsSucceeded: rec.Run.Counts.RowsTransformed,
		RowsFailed:    rec.Run.Counts.RowsFailed,
	})
	rec.Quality = report

	if err := o.runs.SaveQualityReport(ctx, report); err != nil {
		zap.L().Warn("quality report persistence failed", zap.Error(err))
	}

	pe.Detail = map[string]any{
		"status":       string(report.Status),
		"completeness": report.Completeness,
		"error_rate":   report.ErrorRate,
	}
	if report.Blocking() {
		return eris.Errorf("etl: quality gate FAIL (%d critical failures, completeness %.2f)",
			report.CriticalFailures(), report.Completeness)
	}
	return nil
}

// merge collapses duplicate entities in the working set.
func (o *Orchestrator) merge(_ context.Context, rec *model.ExecutionRecord, st *runState, pe *model.PhaseExecution) error {
	st.mergeRes = merge.Run(st.resolver.Entities(), rec.Run.ID)
	st.resolver.Apply(st.mergeRes.Prospects)
	rec.Run.Counts.EntitiesMerged = st.mergeRes.Merged

	pe.Detail = map[string]any{
		"groups": st.mergeRes.Groups,
		"merged": st.mergeRes.Merged,
	}
	return nil
}

// load commits the run's entire output in one transaction.
func (o *Orchestrator) load(ctx context.Context, rec *model.ExecutionRecord, st *runState, pe *model.PhaseExecution) error {
	ls := buildLoadSet(st.resolver.Entities(), st.output, st.mergeRes)
	written, err := load(ctx, o.pool, o.recorder, ls)
	if err != nil {
		return err
	}
	rec.Run.Counts.LineageWritten = written

	pe.Detail = map[string]any{
		"prospects":       len(ls.prospects),
		"attributes":      ls.output.Attributes(),
		"lineage_written": written,
	}
	return nil
}

// publish refreshes the read-side materialized views. Failures degrade
// to warnings.
func (o *Orchestrator) publish(ctx context.Context, pe *model.PhaseExecution) {
	views := []string{"draft_data.prospect_summary", "draft_data.source_coverage"}
	refreshed := 0
	for _, v := range views {
		if _, err := o.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+v); err != nil {
			zap.L().Warn("view refresh failed", zap.String("view", v), zap.Error(err))
			continue
		}
		refreshed++
	}
	pe.Detail = map[string]any{"views_refreshed": refreshed}
}

// finalize decides the terminal status and persists the run row, the
// history entry, and the archive snapshot.
func (o *Orchestrator) finalize(ctx context.Context, rec *model.ExecutionRecord, st *runState, phaseErr error) {
	switch {
	case phaseErr != nil:
		rec.Run.Status = model.RunStatusFailed
		rec.Run.Reason = phaseErr.Error()
		if errors.Is(phaseErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			rec.Run.Reason = "soft deadline exceeded"
		}
	case rec.Run.Counts.RowsFailed > 0:
		rec.Run.Status = model.RunStatusPartialSuccess
		rec.Run.Reason = failureSummary(st.failures)
	default:
		rec.Run.Status = model.RunStatusSuccess
	}
	rec.Run.CompletedAt = touchCompleted()

	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := o.runs.FinishRun(persistCtx, &rec.Run); err != nil {
		zap.L().Error("run finalization failed", zap.String("run_id", rec.Run.ID), zap.Error(err))
	}

	if o.history != nil {
		o.history.Add(*rec)
	}
	if o.archive != nil {
		if err := o.archive.Save(persistCtx, rec); err != nil {
			zap.L().Warn("run archive failed", zap.String("run_id", rec.Run.ID), zap.Error(err))
		}
	}
}

// failureSummary condenses row failures into the run reason.
func failureSummary(failures []model.RowFailure) string {
	byReason := make(map[model.FailureReason]int)
	for _, f := range failures {
		byReason[f.Reason]++
	}
	out := ""
	for _, r := range []model.FailureReason{
		model.ReasonValidationFailed, model.ReasonIdentityFailed,
		model.ReasonTransformFailed, model.ReasonLineageFailed,
	} {
		if n := byReason[r]; n > 0 {
			if out != "" {
				out += ", "
			}
			out += string(r) + "=" + strconv.Itoa(n)
		}
	}
	return out
}
