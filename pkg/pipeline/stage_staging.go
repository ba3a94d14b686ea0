package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/db"
	"github.com/vyaparbazaar/featurex/pkg/staging"
)

// stageSource reads one raw source since the watermark, normalizes each row
// and upserts the staged batch. Reads and writes retry with backoff;
// malformed rows are dropped and counted, never propagated.
func stageSource[R any, S any](
	ctx context.Context,
	e *Engine,
	st *runState,
	counter *staging.Counter,
	source string,
	read func(ctx context.Context, since time.Time) ([]R, error),
	normalize func(R) (S, error),
	insert func(ctx context.Context, rows []S) error,
) error {
	var raws []R
	err := e.withRetry(ctx, "read_"+source, func() error {
		var readErr error
		raws, readErr = read(ctx, st.since)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: source, Err: err}
	}

	staged := make([]S, 0, len(raws))
	for _, raw := range raws {
		st.rowsRead.Inc()
		row, err := normalize(raw)
		if err != nil {
			counter.RowDropped()
			st.rowsSkipped.Inc()
			var malformed *staging.MalformedRowError
			if errors.As(err, &malformed) {
				e.Logger.Debug("Dropped malformed row",
					zap.String("source", malformed.Source),
					zap.String("key", malformed.Key),
					zap.String("field", malformed.Field),
					zap.String("reason", malformed.Reason),
				)
				continue
			}
			return err
		}
		counter.RowProcessed()
		staged = append(staged, row)
	}

	err = e.withRetry(ctx, "stage_"+source, func() error {
		return insert(ctx, staged)
	})
	if err != nil {
		return &db.SinkWriteError{Table: "stg_" + source, Err: err}
	}
	st.rowsWritten.Add(int64(len(staged)))
	return nil
}

// runStaging normalizes every raw row ingested since the watermark and
// upserts the staged projections. Sources are independent tables, so each
// one is a worker task. A drop rate above the configured ceiling fails the
// whole stage without a commit.
func (e *Engine) runStaging(ctx context.Context, st *runState) error {
	// The candidate watermark is captured before reading so rows landing
	// mid-run are left for the next one.
	var candidate time.Time
	err := e.withRetry(ctx, "max_ingested_at", func() error {
		var readErr error
		candidate, readErr = e.Source.MaxIngestedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "raw", Err: err}
	}

	counter := staging.NewCounter()
	pool := pond.NewPool(e.Cfg.Workers, pond.WithQueueSize(16))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "customers",
			e.Source.RawCustomers, staging.NormalizeCustomer, e.Staging.InsertStagedCustomers)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "orders",
			e.Source.RawOrders, staging.NormalizeOrder, e.Staging.InsertStagedOrders)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "order_items",
			e.Source.RawOrderItems, staging.NormalizeOrderItem, e.Staging.InsertStagedOrderItems)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "payments",
			e.Source.RawPayments, staging.NormalizePayment, e.Staging.InsertStagedPayments)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "products",
			e.Source.RawProducts, staging.NormalizeProduct, e.Staging.InsertStagedProducts)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "clickstream",
			e.Source.RawClickEvents, staging.NormalizeClickEvent, e.Staging.InsertStagedClickEvents)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "app_usage",
			e.Source.RawAppEvents, staging.NormalizeAppEvent, e.Staging.InsertStagedAppEvents)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "support_tickets",
			e.Source.RawSupportTickets, staging.NormalizeSupportTicket, e.Staging.InsertStagedSupportTickets)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "reviews",
			e.Source.RawReviews, staging.NormalizeReview, e.Staging.InsertStagedReviews)
	})
	group.SubmitErr(func() error {
		return stageSource(groupCtx, e, st, counter, "refunds",
			e.Source.RawRefunds, staging.NormalizeRefund, e.Staging.InsertStagedRefunds)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	if ctx.Err() != nil {
		return nil // cancelled: in-flight batches finished, nothing commits
	}

	if err := counter.CheckThreshold(e.Cfg.MaxDropRate); err != nil {
		return err
	}

	st.candidate = candidate
	return nil
}
