package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
	"github.com/vyaparbazaar/featurex/pkg/features"
	"github.com/vyaparbazaar/featurex/pkg/validate"
)

// runCustomerFeatureStage composes one customer feature table from the three
// customer fact tables, validates the composed rows and withholds the
// watermark when a blocking check fails.
func (e *Engine) runCustomerFeatureStage(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_customer_fact_computed_at", func() error {
		var readErr error
		candidate, readErr = e.Facts.MaxCustomerFactComputedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "facts", Err: err}
	}

	ids, err := e.affectedKeys(ctx, st, e.Facts.AffectedCustomerFacts, e.Facts.AllCustomerFactIDs)
	if err != nil {
		return err
	}

	var (
		mu           sync.Mutex
		overviews    []*models.CustomerOverview
		churn        []*models.ChurnFeatures
		segmentation []*models.SegmentationFeatures
		ltv          []*models.LTVFeatures
	)
	if len(ids) > 0 {
		err = e.runPartitioned(ctx, ids, func(ctx context.Context, part []string) error {
			facts, err := e.loadCustomerFacts(ctx, st, part)
			if err != nil {
				return err
			}
			switch st.stage {
			case StageCustomerOverview:
				rows := make([]*models.CustomerOverview, 0, len(part))
				for _, id := range part {
					rows = append(rows, features.ComposeCustomerOverview(id, facts[id], e.Cfg, st.now, st.now))
					st.entities.Inc()
				}
				if err := e.upsertRetried(ctx, st.stage, func() error {
					return e.Features.UpsertCustomerOverview(ctx, rows)
				}); err != nil {
					return err
				}
				st.rowsWritten.Add(int64(len(rows)))
				mu.Lock()
				overviews = append(overviews, rows...)
				mu.Unlock()
			case StageChurnFeatures:
				rows := make([]*models.ChurnFeatures, 0, len(part))
				for _, id := range part {
					rows = append(rows, features.ComposeChurnFeatures(id, facts[id], e.Cfg, st.now, st.now))
					st.entities.Inc()
				}
				if err := e.upsertRetried(ctx, st.stage, func() error {
					return e.Features.UpsertChurnFeatures(ctx, rows)
				}); err != nil {
					return err
				}
				st.rowsWritten.Add(int64(len(rows)))
				mu.Lock()
				churn = append(churn, rows...)
				mu.Unlock()
			case StageSegmentationFeatures:
				rows := make([]*models.SegmentationFeatures, 0, len(part))
				for _, id := range part {
					rows = append(rows, features.ComposeSegmentationFeatures(id, facts[id], e.Cfg, st.now, st.now))
					st.entities.Inc()
				}
				if err := e.upsertRetried(ctx, st.stage, func() error {
					return e.Features.UpsertSegmentationFeatures(ctx, rows)
				}); err != nil {
					return err
				}
				st.rowsWritten.Add(int64(len(rows)))
				mu.Lock()
				segmentation = append(segmentation, rows...)
				mu.Unlock()
			case StageLTVFeatures:
				rows := make([]*models.LTVFeatures, 0, len(part))
				for _, id := range part {
					rows = append(rows, features.ComposeLTVFeatures(id, facts[id], e.Cfg, st.now))
					st.entities.Inc()
				}
				if err := e.upsertRetried(ctx, st.stage, func() error {
					return e.Features.UpsertLTVFeatures(ctx, rows)
				}); err != nil {
					return err
				}
				st.rowsWritten.Add(int64(len(rows)))
				mu.Lock()
				ltv = append(ltv, rows...)
				mu.Unlock()
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	var (
		report *models.ValidationReport
		vErr   error
	)
	switch st.stage {
	case StageCustomerOverview:
		report, vErr = validate.CustomerOverview(overviews, st.runID, st.now)
	case StageChurnFeatures:
		report, vErr = validate.ChurnFeatures(churn, e.Cfg, st.runID, st.now)
	case StageSegmentationFeatures:
		report, vErr = validate.SegmentationFeatures(segmentation, st.runID, st.now)
	case StageLTVFeatures:
		report, vErr = validate.LTVFeatures(ltv, e.Cfg, st.runID, st.now)
	}
	st.validation = report
	if vErr != nil {
		return vErr
	}
	st.candidate = candidate
	return nil
}

// loadCustomerFacts reads the three fact tables for one partition and bundles
// them per customer. Customers with no row in a table get a nil fact.
func (e *Engine) loadCustomerFacts(ctx context.Context, st *runState, ids []string) (map[string]features.CustomerFacts, error) {
	var (
		orderFacts      []*models.CustomerOrderFact
		engagementFacts []*models.CustomerEngagementFact
		supportFacts    []*models.CustomerSupportFact
	)
	err := e.withRetry(ctx, "read_customer_facts", func() error {
		var readErr error
		if orderFacts, readErr = e.Facts.CustomerOrderFactsByID(ctx, ids); readErr != nil {
			return readErr
		}
		if engagementFacts, readErr = e.Facts.EngagementFactsByID(ctx, ids); readErr != nil {
			return readErr
		}
		supportFacts, readErr = e.Facts.SupportFactsByID(ctx, ids)
		return readErr
	})
	if err != nil {
		return nil, &db.SourceReadError{Source: "facts", Err: err}
	}
	st.rowsRead.Add(int64(len(orderFacts) + len(engagementFacts) + len(supportFacts)))

	bundles := make(map[string]features.CustomerFacts, len(ids))
	for _, f := range orderFacts {
		cf := bundles[f.CustomerID]
		cf.Orders = f
		bundles[f.CustomerID] = cf
	}
	for _, f := range engagementFacts {
		cf := bundles[f.CustomerID]
		cf.Engagement = f
		bundles[f.CustomerID] = cf
	}
	for _, f := range supportFacts {
		cf := bundles[f.CustomerID]
		cf.Support = f
		bundles[f.CustomerID] = cf
	}
	return bundles, nil
}

func (e *Engine) upsertRetried(ctx context.Context, table string, write func() error) error {
	if err := e.withRetry(ctx, "write_"+table, write); err != nil {
		return &db.SinkWriteError{Table: table, Err: err}
	}
	return nil
}

// runProductFeatureStage composes one product feature table. Ranks are global
// within a partition, so any affected product triggers a whole-table rebuild
// from product sales facts.
func (e *Engine) runProductFeatureStage(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_product_fact_computed_at", func() error {
		var readErr error
		candidate, readErr = e.Facts.MaxProductFactComputedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "facts", Err: err}
	}

	if st.mode == models.ModeIncremental {
		var affected []string
		err := e.withRetry(ctx, "affected_"+st.stage, func() error {
			var readErr error
			affected, readErr = e.Facts.AffectedProductFacts(ctx, st.since)
			return readErr
		})
		if err != nil {
			return &db.SourceReadError{Source: "facts", Err: err}
		}
		if len(affected) == 0 {
			st.candidate = candidate
			return nil
		}
	}

	var facts []*models.ProductSalesFact
	err = e.withRetry(ctx, "read_product_facts", func() error {
		var readErr error
		facts, readErr = e.Facts.AllProductSalesFacts(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "facts", Err: err}
	}
	st.rowsRead.Add(int64(len(facts)))

	var (
		report *models.ValidationReport
		vErr   error
	)
	switch st.stage {
	case StageProductOverview:
		rows := features.ComposeProductOverviews(facts, e.Cfg, st.now)
		if err := e.upsertRetried(ctx, st.stage, func() error {
			return e.Features.UpsertProductOverview(ctx, rows)
		}); err != nil {
			return err
		}
		st.entities.Add(int64(len(rows)))
		st.rowsWritten.Add(int64(len(rows)))
		report, vErr = validate.ProductOverview(rows, st.runID, st.now)
	case StageRecommendationFeatures:
		rows := features.ComposeRecommendationFeatures(facts, e.Cfg, st.now)
		if err := e.upsertRetried(ctx, st.stage, func() error {
			return e.Features.UpsertRecommendationFeatures(ctx, rows)
		}); err != nil {
			return err
		}
		st.entities.Add(int64(len(rows)))
		st.rowsWritten.Add(int64(len(rows)))
		report, vErr = validate.RecommendationFeatures(rows, e.Cfg, st.runID, st.now)
	}
	if ctx.Err() != nil {
		return nil
	}
	st.validation = report
	if vErr != nil {
		return vErr
	}
	st.candidate = candidate
	return nil
}

// runSalesOverview recomputes the monthly sales rollup from order economics
// facts, covering every bucket the facts or a previous run ever touched.
func (e *Engine) runSalesOverview(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_order_fact_computed_at", func() error {
		var readErr error
		candidate, readErr = e.Facts.MaxOrderFactComputedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "facts", Err: err}
	}

	affected, err := e.affectedKeys(ctx, st, e.Facts.AffectedMonths, e.Facts.AllMonths)
	if err != nil {
		return err
	}

	// A purchase date correction moves an order across buckets, and the
	// vacated bucket no longer has any fact row pointing at it. The rollup
	// is one row per month, so whenever anything changed every bucket ever
	// written is recomputed and vacated buckets collapse to zero rows.
	var months []string
	if st.mode == models.ModeFull || len(affected) > 0 {
		if months, err = e.rollupMonths(ctx, affected); err != nil {
			return err
		}
	}

	var rows []*models.SalesOverview
	if len(months) > 0 {
		var orders []*models.OrderEconomicsFact
		err = e.withRetry(ctx, "read_order_facts", func() error {
			var readErr error
			orders, readErr = e.Facts.OrderEconomicsByMonth(ctx, months)
			return readErr
		})
		if err != nil {
			return &db.SourceReadError{Source: "facts", Err: err}
		}
		st.rowsRead.Add(int64(len(orders)))

		byMonth := make(map[string][]*models.OrderEconomicsFact, len(months))
		for _, o := range orders {
			m := features.MonthBucket(o.PurchaseTs)
			byMonth[m] = append(byMonth[m], o)
		}
		rows = make([]*models.SalesOverview, 0, len(months))
		for _, m := range months {
			rows = append(rows, features.ComposeSalesOverview(m, byMonth[m], e.Cfg, st.now))
			st.entities.Inc()
		}
		if err := e.upsertRetried(ctx, st.stage, func() error {
			return e.Features.UpsertSalesOverview(ctx, rows)
		}); err != nil {
			return err
		}
		st.rowsWritten.Add(int64(len(rows)))
	}
	if ctx.Err() != nil {
		return nil
	}

	report, vErr := validate.SalesOverview(rows, st.runID, st.now)
	st.validation = report
	if vErr != nil {
		return vErr
	}
	st.candidate = candidate
	return nil
}

// rollupMonths unions the affected buckets with every bucket present in the
// order facts and every bucket the rollup has already written.
func (e *Engine) rollupMonths(ctx context.Context, affected []string) ([]string, error) {
	set := make(map[string]bool, len(affected))
	for _, m := range affected {
		set[m] = true
	}
	err := e.withRetry(ctx, "list_rollup_months", func() error {
		factMonths, readErr := e.Facts.AllMonths(ctx)
		if readErr != nil {
			return readErr
		}
		written, readErr := e.Features.SalesOverviewMonths(ctx)
		if readErr != nil {
			return readErr
		}
		for _, m := range factMonths {
			set[m] = true
		}
		for _, m := range written {
			set[m] = true
		}
		return nil
	})
	if err != nil {
		return nil, &db.SourceReadError{Source: "facts", Err: err}
	}
	months := make([]string, 0, len(set))
	for m := range set {
		months = append(months, m)
	}
	sort.Strings(months)
	return months, nil
}
