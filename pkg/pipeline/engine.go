package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
	"github.com/vyaparbazaar/featurex/pkg/retry"
	"github.com/vyaparbazaar/featurex/pkg/validate"
)

// ErrRunInProgress is returned when a stage's run lease is already held.
var ErrRunInProgress = errors.New("a run for this stage is already in progress")

// EventPublisher receives best-effort run lifecycle notifications. The redis
// client implements it; a nil publisher disables events.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, stage, runID, outcome string)
}

// Engine runs pipeline stages. Each stage reads since its own watermark,
// recomputes affected entities from full staged history, writes idempotent
// upserts and commits a new watermark only after every write and blocking
// validation succeeded.
type Engine struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	Source   db.SourceStore
	Staging  db.StagingStore
	Facts    db.FactStore
	Features db.FeatureStore
	State    db.StateStore
	Locker   Locker
	Events   EventPublisher

	// Clock is swappable so tests control feature timestamps.
	Clock func() time.Time
}

// New wires an engine over the given stores.
func New(cfg *config.Config, logger *zap.Logger, source db.SourceStore, staging db.StagingStore,
	facts db.FactStore, features db.FeatureStore, state db.StateStore, locker Locker) *Engine {
	return &Engine{
		Cfg:      cfg,
		Logger:   logger,
		Source:   source,
		Staging:  staging,
		Facts:    facts,
		Features: features,
		State:    state,
		Locker:   locker,
		Clock:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	return e.Clock().UTC()
}

// runState accumulates the counters and outcome of one stage run. Counters
// are concurrent because partitioned workers bump them in parallel.
type runState struct {
	runID string
	stage string
	mode  string

	// since is the read horizon: the committed watermark in incremental
	// mode, zero in full mode.
	since time.Time
	now   time.Time

	rowsRead    *xsync.Counter
	rowsSkipped *xsync.Counter
	entities    *xsync.Counter
	rowsWritten *xsync.Counter

	// candidate is the watermark to commit on success. Always taken from the
	// input stream's ingestion axis, never from output rows.
	candidate  time.Time
	validation *models.ValidationReport
}

func newRunState(runID, stage, mode string, since, now time.Time) *runState {
	return &runState{
		runID:       runID,
		stage:       stage,
		mode:        mode,
		since:       since,
		now:         now,
		rowsRead:    xsync.NewCounter(),
		rowsSkipped: xsync.NewCounter(),
		entities:    xsync.NewCounter(),
		rowsWritten: xsync.NewCounter(),
	}
}

// Run executes one stage in the given mode and returns its report. The
// report is recorded in run history even when the run fails or is cancelled.
func (e *Engine) Run(ctx context.Context, stage, mode string) (*models.RunReport, error) {
	if !KnownStage(stage) {
		return nil, &UnknownStageError{Stage: stage}
	}
	if mode != models.ModeFull && mode != models.ModeIncremental {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}

	runID := uuid.NewString()
	logger := e.Logger.With(
		zap.String("stage", stage),
		zap.String("mode", mode),
		zap.String("run_id", runID),
	)

	// TTL outlives the stage timeout so a stuck run cannot lose its lease
	// while still writing.
	ttl := e.Cfg.StageTimeout + time.Minute
	ok, err := e.Locker.Acquire(ctx, stage, runID, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := e.Locker.Release(context.WithoutCancel(ctx), stage, runID); err != nil {
			logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	startedAt := e.now()
	runCtx, cancel := context.WithTimeout(ctx, e.Cfg.StageTimeout)
	defer cancel()

	wmBefore, err := e.State.Watermark(runCtx, stage)
	if err != nil {
		return nil, fmt.Errorf("read watermark for %s: %w", stage, err)
	}

	since := wmBefore
	if mode == models.ModeFull {
		since = time.Time{}
	}
	st := newRunState(runID, stage, mode, since, startedAt)

	logger.Info("Stage run starting", zap.Time("watermark", wmBefore))
	runErr := e.dispatch(runCtx, st)

	cancelled := runCtx.Err() != nil
	report := &models.RunReport{
		RunID:              runID,
		Stage:              stage,
		Mode:               mode,
		StartedAt:          startedAt,
		DurationMs:         float64(e.now().Sub(startedAt).Milliseconds()),
		RowsRead:           uint64(st.rowsRead.Value()),
		RowsSkipped:        uint64(st.rowsSkipped.Value()),
		EntitiesRecomputed: uint64(st.entities.Value()),
		RowsWritten:        uint64(st.rowsWritten.Value()),
		WatermarkBefore:    wmBefore,
		WatermarkAfter:     wmBefore,
		Cancelled:          cancelled,
		Validation:         st.validation,
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	// The watermark advances only on a clean, uncancelled run.
	if runErr == nil && !cancelled && st.candidate.After(wmBefore) {
		if err := e.State.Commit(runCtx, stage, st.candidate, runID); err != nil {
			runErr = fmt.Errorf("commit watermark for %s: %w", stage, err)
			report.Error = runErr.Error()
		} else {
			report.WatermarkAfter = st.candidate
			report.Advanced = true
		}
	}

	// History is recorded even for failed and cancelled runs.
	recordCtx := context.WithoutCancel(ctx)
	if err := e.State.RecordRun(recordCtx, report); err != nil {
		logger.Warn("Failed to record run report", zap.Error(err))
	}
	if st.validation != nil {
		if err := e.State.RecordValidation(recordCtx, st.validation); err != nil {
			logger.Warn("Failed to record validation report", zap.Error(err))
		}
	}
	if e.Events != nil {
		outcome := "succeeded"
		switch {
		case cancelled:
			outcome = "cancelled"
		case runErr != nil:
			outcome = "failed"
		}
		e.Events.PublishRunEvent(recordCtx, stage, runID, outcome)
	}

	logger.Info("Stage run finished",
		zap.Uint64("rows_read", report.RowsRead),
		zap.Uint64("rows_skipped", report.RowsSkipped),
		zap.Uint64("entities", report.EntitiesRecomputed),
		zap.Uint64("rows_written", report.RowsWritten),
		zap.Bool("advanced", report.Advanced),
		zap.Bool("cancelled", report.Cancelled),
		zap.Float64("duration_ms", report.DurationMs),
	)
	return report, runErr
}

func (e *Engine) dispatch(ctx context.Context, st *runState) error {
	switch st.stage {
	case StageStaging:
		return e.runStaging(ctx, st)
	case StageCustomerFacts:
		return e.runCustomerFacts(ctx, st)
	case StageProductFacts:
		return e.runProductFacts(ctx, st)
	case StageOrderFacts:
		return e.runOrderFacts(ctx, st)
	case StageCustomerOverview, StageChurnFeatures, StageSegmentationFeatures, StageLTVFeatures:
		return e.runCustomerFeatureStage(ctx, st)
	case StageProductOverview, StageRecommendationFeatures:
		return e.runProductFeatureStage(ctx, st)
	case StageSalesOverview:
		return e.runSalesOverview(ctx, st)
	default:
		return &UnknownStageError{Stage: st.stage}
	}
}

// RunAll walks the stage DAG in order. A failed stage skips everything
// downstream of it but independent branches still run.
func (e *Engine) RunAll(ctx context.Context, mode string) ([]*models.RunReport, error) {
	var reports []*models.RunReport
	failed := map[string]bool{}
	var firstErr error

	for _, stage := range StageOrder {
		blocked := false
		for _, dep := range Dependencies(stage) {
			if failed[dep] {
				blocked = true
				break
			}
		}
		if blocked {
			failed[stage] = true
			e.Logger.Warn("Skipping stage, upstream failed", zap.String("stage", stage))
			continue
		}

		report, err := e.Run(ctx, stage, mode)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			failed[stage] = true
			if firstErr == nil {
				firstErr = fmt.Errorf("stage %s: %w", stage, err)
			}
			// A validation block or stage failure stops its branch only.
			var vf *validate.ValidationFailure
			if !errors.As(err, &vf) {
				e.Logger.Error("Stage failed", zap.String("stage", stage), zap.Error(err))
			}
		}
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
	}
	return reports, firstErr
}

// Status reports the committed watermark, the last run and the last
// validation report of a stage.
func (e *Engine) Status(ctx context.Context, stage string) (*models.StageStatus, error) {
	if !KnownStage(stage) {
		return nil, &UnknownStageError{Stage: stage}
	}
	wm, err := e.State.Watermark(ctx, stage)
	if err != nil {
		return nil, err
	}
	lastRun, err := e.State.LastRun(ctx, stage)
	if err != nil {
		return nil, err
	}
	lastValidation, err := e.State.LastValidation(ctx, stage)
	if err != nil {
		return nil, err
	}
	return &models.StageStatus{
		Stage:                stage,
		Watermark:            wm,
		LastValidationReport: lastValidation,
		LastRun:              lastRun,
	}, nil
}

// withRetry applies the configured backoff policy to transient source reads
// and sink writes.
func (e *Engine) withRetry(ctx context.Context, operation string, fn func() error) error {
	return retry.WithBackoff(ctx, e.Cfg.Retry, e.Logger, operation, fn)
}

// partitionKeys splits entity ids into n disjoint hash partitions. Every id
// lands in exactly one partition, so workers never write the same key.
func partitionKeys(ids []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	parts := make([][]string, n)
	for _, id := range ids {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		i := int(h.Sum32() % uint32(n))
		parts[i] = append(parts[i], id)
	}
	out := parts[:0]
	for _, p := range parts {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}
