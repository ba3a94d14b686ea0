package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db"
	"github.com/vyaparbazaar/featurex/pkg/db/memory"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
	"github.com/vyaparbazaar/featurex/pkg/fixture"
	"github.com/vyaparbazaar/featurex/pkg/staging"
)

var (
	ingestedT1 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	ingestedT2 = time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	clockT1    = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clockT2    = clockT1.Add(time.Hour)
)

type testStores struct {
	staging  *memory.StagingStore
	facts    *memory.FactStore
	features *memory.FeatureStore
	state    *memory.StateStore
}

func newTestEngine(t *testing.T, source db.SourceStore, now time.Time) (*Engine, *testStores) {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 4

	stores := &testStores{
		staging:  memory.NewStagingStore(),
		facts:    memory.NewFactStore(),
		features: memory.NewFeatureStore(),
		state:    memory.NewStateStore(),
	}
	e := New(cfg, zaptest.NewLogger(t), source, stores.staging, stores.facts,
		stores.features, stores.state, NewMemoryLocker())
	e.Clock = func() time.Time { return now }
	return e, stores
}

func generateSource() *memory.SourceStore {
	return fixture.Generate(fixture.Options{
		Seed:       1,
		Customers:  40,
		Products:   20,
		Start:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		IngestedAt: ingestedT1,
	})
}

// requireSameFeatures compares every feature table row for row, ignoring the
// computed_at stamp so runs taken at different clock readings still compare.
func requireSameFeatures(t *testing.T, want, got *testStores) {
	t.Helper()

	wantOverview, gotOverview := want.features.CustomerOverviewRows(), got.features.CustomerOverviewRows()
	for _, r := range wantOverview {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotOverview {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantOverview, gotOverview)

	wantChurn, gotChurn := want.features.ChurnRows(), got.features.ChurnRows()
	for _, r := range wantChurn {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotChurn {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantChurn, gotChurn)

	wantSeg, gotSeg := want.features.SegmentationRows(), got.features.SegmentationRows()
	for _, r := range wantSeg {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotSeg {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantSeg, gotSeg)

	wantLTV, gotLTV := want.features.LTVRows(), got.features.LTVRows()
	for _, r := range wantLTV {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotLTV {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantLTV, gotLTV)

	wantProd, gotProd := want.features.ProductOverviewRows(), got.features.ProductOverviewRows()
	for _, r := range wantProd {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotProd {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantProd, gotProd)

	wantRec, gotRec := want.features.RecommendationRows(), got.features.RecommendationRows()
	for _, r := range wantRec {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotRec {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantRec, gotRec)

	wantSales, gotSales := want.features.SalesOverviewRows(), got.features.SalesOverviewRows()
	for _, r := range wantSales {
		r.ComputedAt = time.Time{}
	}
	for _, r := range gotSales {
		r.ComputedAt = time.Time{}
	}
	require.Equal(t, wantSales, gotSales)
}

func TestRunAllFullPipeline(t *testing.T) {
	ctx := t.Context()
	source := generateSource()
	// A customer with no orders at all stays a prospect.
	source.AddCustomers(&models.RawCustomer{
		CustomerID: "cust-9000",
		Zip:        "01001",
		City:       "city-1",
		State:      "SP",
		IngestedAt: ingestedT1,
	})

	e, stores := newTestEngine(t, source, clockT1)
	reports, err := e.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)
	require.Len(t, reports, len(StageOrder))
	for _, r := range reports {
		require.Empty(t, r.Error, "stage %s", r.Stage)
		require.False(t, r.Cancelled, "stage %s", r.Stage)
		require.True(t, r.Advanced, "stage %s", r.Stage)
	}

	// Watermarks sit on the input stream's ingestion axis.
	wm, err := stores.state.Watermark(ctx, StageStaging)
	require.NoError(t, err)
	require.True(t, wm.Equal(ingestedT1))
	wm, err = stores.state.Watermark(ctx, StageCustomerFacts)
	require.NoError(t, err)
	require.True(t, wm.Equal(ingestedT1))
	wm, err = stores.state.Watermark(ctx, StageCustomerOverview)
	require.NoError(t, err)
	require.True(t, wm.Equal(clockT1))

	overviews := stores.features.CustomerOverviewRows()
	require.Len(t, overviews, 41)
	churn := stores.features.ChurnRows()
	require.Len(t, churn, 41)
	require.Len(t, stores.features.SegmentationRows(), 41)
	require.Len(t, stores.features.LTVRows(), 41)

	var prospect *models.CustomerOverview
	for _, o := range overviews {
		if o.CustomerID == "cust-9000" {
			prospect = o
		}
	}
	require.NotNil(t, prospect)
	require.Equal(t, models.LifecycleProspect, prospect.Lifecycle)
	require.Equal(t, int64(-1), prospect.DaysSinceLast)
	require.Zero(t, prospect.OrderCount)
	for _, c := range churn {
		if c.CustomerID == "cust-9000" {
			require.False(t, c.ChurnFlag, "a prospect is never churned")
			require.Equal(t, models.LifecycleProspect, c.Lifecycle)
		}
	}

	// Overall revenue ranks are a dense permutation of 1..N.
	products := stores.features.ProductOverviewRows()
	require.NotEmpty(t, products)
	ranks := map[uint64]bool{}
	for _, p := range products {
		ranks[p.OverallRevenueRank] = true
	}
	require.Len(t, ranks, len(products))
	require.True(t, ranks[1])
	require.True(t, ranks[uint64(len(products))])

	sales := stores.features.SalesOverviewRows()
	require.NotEmpty(t, sales)
	for _, s := range sales {
		_, err := time.Parse("2006-01", s.MonthBucket)
		require.NoError(t, err, "month bucket %q", s.MonthBucket)
		require.Positive(t, s.OrderCount)
	}
}

func TestRunAllIdempotent(t *testing.T) {
	ctx := t.Context()
	source := generateSource()
	e, stores := newTestEngine(t, source, clockT1)

	_, err := e.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)
	first := stores.features.CustomerOverviewRows()
	firstProducts := stores.features.ProductOverviewRows()
	firstSales := stores.features.SalesOverviewRows()

	_, err = e.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)
	require.Equal(t, first, stores.features.CustomerOverviewRows())
	require.Equal(t, firstProducts, stores.features.ProductOverviewRows())
	require.Equal(t, firstSales, stores.features.SalesOverviewRows())
}

func TestIncrementalMatchesFullRebuild(t *testing.T) {
	ctx := t.Context()
	source := generateSource()

	incEngine, incStores := newTestEngine(t, source, clockT1)
	_, err := incEngine.RunAll(ctx, models.ModeIncremental)
	require.NoError(t, err)

	// A second batch lands: a new order for an existing customer and a
	// brand-new customer. Both must be picked up from the watermark alone.
	source.AddOrders(&models.RawOrder{
		OrderID:             "order-90001",
		CustomerID:          "cust-0001",
		Status:              "delivered",
		PurchaseTs:          "2024-01-15 09:30:00",
		DeliveredTs:         "2024-01-19 14:00:00",
		EstimatedDeliveryTs: "2024-01-25 00:00:00",
		IngestedAt:          ingestedT2,
	})
	source.AddOrderItems(&models.RawOrderItem{
		OrderID:      "order-90001",
		ItemID:       "1",
		ProductID:    "prod-001",
		SellerID:     "seller-01",
		Price:        "149.90",
		FreightValue: "12.50",
		IngestedAt:   ingestedT2,
	})
	source.AddPayments(&models.RawPayment{
		OrderID:      "order-90001",
		PaymentType:  "credit_card",
		Value:        "149.90",
		Installments: "2",
		IngestedAt:   ingestedT2,
	})
	source.AddCustomers(&models.RawCustomer{
		CustomerID: "cust-9999",
		Zip:        "20000",
		City:       "city-2",
		State:      "RJ",
		IngestedAt: ingestedT2,
	})
	source.AddOrders(&models.RawOrder{
		OrderID:             "order-90002",
		CustomerID:          "cust-9999",
		Status:              "delivered",
		PurchaseTs:          "2024-01-16 11:00:00",
		DeliveredTs:         "2024-01-20 10:00:00",
		EstimatedDeliveryTs: "2024-01-26 00:00:00",
		IngestedAt:          ingestedT2,
	})
	source.AddOrderItems(&models.RawOrderItem{
		OrderID:      "order-90002",
		ItemID:       "1",
		ProductID:    "prod-002",
		SellerID:     "seller-02",
		Price:        "80.00",
		FreightValue: "9.00",
		IngestedAt:   ingestedT2,
	})
	source.AddPayments(&models.RawPayment{
		OrderID:      "order-90002",
		PaymentType:  "boleto",
		Value:        "80.00",
		Installments: "1",
		IngestedAt:   ingestedT2,
	})

	incEngine.Clock = func() time.Time { return clockT2 }
	reports, err := incEngine.RunAll(ctx, models.ModeIncremental)
	require.NoError(t, err)
	for _, r := range reports {
		if r.Stage == StageStaging {
			// Only the second batch is read again.
			require.Equal(t, uint64(7), r.RowsRead)
		}
	}

	fullEngine, fullStores := newTestEngine(t, source, clockT2)
	_, err = fullEngine.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)

	requireSameFeatures(t, fullStores, incStores)

	// The recomputed customer reflects its full history, not just the delta.
	var updated *models.CustomerOverview
	for _, o := range incStores.features.CustomerOverviewRows() {
		if o.CustomerID == "cust-0001" {
			updated = o
		}
	}
	require.NotNil(t, updated)
	require.True(t, updated.ComputedAt.Equal(clockT2))
}

// TestIncrementalOrderCorrection verifies a re-ingested order row with a
// corrected purchase date, and no new items, still flows through to the
// product facts and vacates the month bucket the order moved out of.
func TestIncrementalOrderCorrection(t *testing.T) {
	ctx := t.Context()
	source := memory.NewSourceStore()
	source.AddCustomers(&models.RawCustomer{
		CustomerID: "cust-0001",
		Zip:        "01001",
		City:       "city-1",
		State:      "SP",
		IngestedAt: ingestedT1,
	})
	source.AddProducts(&models.RawProduct{
		ProductID:   "prod-001",
		Category:    "toys",
		Subcategory: "puzzles",
		IngestedAt:  ingestedT1,
	})
	source.AddOrders(&models.RawOrder{
		OrderID:             "order-0001",
		CustomerID:          "cust-0001",
		Status:              "delivered",
		PurchaseTs:          "2024-01-05 10:00:00",
		DeliveredTs:         "2024-01-09 12:00:00",
		EstimatedDeliveryTs: "2024-01-15 00:00:00",
		IngestedAt:          ingestedT1,
	})
	source.AddOrderItems(&models.RawOrderItem{
		OrderID:      "order-0001",
		ItemID:       "1",
		ProductID:    "prod-001",
		SellerID:     "seller-01",
		Price:        "50.00",
		FreightValue: "5.00",
		IngestedAt:   ingestedT1,
	})
	source.AddPayments(&models.RawPayment{
		OrderID:      "order-0001",
		PaymentType:  "credit_card",
		Value:        "50.00",
		Installments: "1",
		IngestedAt:   ingestedT1,
	})

	e, stores := newTestEngine(t, source, clockT1)
	_, err := e.RunAll(ctx, models.ModeIncremental)
	require.NoError(t, err)

	facts, err := stores.facts.AllProductSalesFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.True(t, facts[0].LastSoldTs.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)))

	// The order is re-ingested with a corrected purchase date two months
	// later. No item, payment or product row changes.
	source.AddOrders(&models.RawOrder{
		OrderID:             "order-0001",
		CustomerID:          "cust-0001",
		Status:              "delivered",
		PurchaseTs:          "2024-03-01 10:00:00",
		DeliveredTs:         "2024-03-05 12:00:00",
		EstimatedDeliveryTs: "2024-03-10 00:00:00",
		IngestedAt:          ingestedT2,
	})

	e.Clock = func() time.Time { return clockT2 }
	_, err = e.RunAll(ctx, models.ModeIncremental)
	require.NoError(t, err)

	facts, err = stores.facts.AllProductSalesFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.True(t, facts[0].LastSoldTs.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		"product fact must pick up the corrected order row")
	require.True(t, facts[0].FirstSoldTs.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, uint64(1), facts[0].DistinctBuyers)

	// The vacated January bucket collapses to a zero row.
	sales := stores.features.SalesOverviewRows()
	require.Len(t, sales, 2)
	require.Equal(t, "2024-01", sales[0].MonthBucket)
	require.Zero(t, sales[0].OrderCount)
	require.Zero(t, sales[0].Revenue)
	require.Zero(t, sales[0].DistinctCustomers)
	require.Equal(t, "2024-03", sales[1].MonthBucket)
	require.Equal(t, uint64(1), sales[1].OrderCount)
	require.InDelta(t, 50.0, sales[1].Revenue, 1e-9)
}

func TestIncrementalNoNewRowsKeepsWatermark(t *testing.T) {
	ctx := t.Context()
	e, stores := newTestEngine(t, generateSource(), clockT1)
	_, err := e.RunAll(ctx, models.ModeIncremental)
	require.NoError(t, err)

	report, err := e.Run(ctx, StageStaging, models.ModeIncremental)
	require.NoError(t, err)
	require.Zero(t, report.RowsRead)
	require.False(t, report.Advanced)

	wm, err := stores.state.Watermark(ctx, StageStaging)
	require.NoError(t, err)
	require.True(t, wm.Equal(ingestedT1))
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	ctx := t.Context()
	source := generateSource()

	serial, serialStores := newTestEngine(t, source, clockT1)
	serial.Cfg.Workers = 1
	_, err := serial.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)

	parallel, parallelStores := newTestEngine(t, source, clockT1)
	parallel.Cfg.Workers = 8
	_, err = parallel.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)

	requireSameFeatures(t, serialStores, parallelStores)
}

func TestRunRejectsUnknownStageAndMode(t *testing.T) {
	ctx := t.Context()
	e, _ := newTestEngine(t, memory.NewSourceStore(), clockT1)

	_, err := e.Run(ctx, "bogus", models.ModeFull)
	var unknown *UnknownStageError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "bogus", unknown.Stage)

	_, err = e.Run(ctx, StageStaging, "sideways")
	require.Error(t, err)
}

func TestRunInProgress(t *testing.T) {
	ctx := t.Context()
	e, _ := newTestEngine(t, memory.NewSourceStore(), clockT1)

	ok, err := e.Locker.Acquire(ctx, StageStaging, "other-run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.Run(ctx, StageStaging, models.ModeIncremental)
	require.ErrorIs(t, err, ErrRunInProgress)
}

func TestStagingDropRateBlocksCommit(t *testing.T) {
	ctx := t.Context()
	source := memory.NewSourceStore()
	source.AddCustomers(&models.RawCustomer{
		CustomerID: "cust-1",
		Zip:        "01001",
		City:       "sao paulo",
		State:      "SP",
		IngestedAt: ingestedT1,
	})
	for i := 0; i < 10; i++ {
		source.AddOrders(&models.RawOrder{
			OrderID:    "null",
			CustomerID: fmt.Sprintf("cust-%d", i),
			Status:     "delivered",
			PurchaseTs: "2024-01-05 10:00:00",
			IngestedAt: ingestedT1,
		})
	}

	e, stores := newTestEngine(t, source, clockT1)
	report, err := e.Run(ctx, StageStaging, models.ModeIncremental)

	var dropErr *staging.DropRateExceededError
	require.ErrorAs(t, err, &dropErr)
	require.Equal(t, uint64(10), dropErr.Dropped)
	require.False(t, report.Advanced)
	require.Equal(t, uint64(10), report.RowsSkipped)

	wm, werr := stores.state.Watermark(ctx, StageStaging)
	require.NoError(t, werr)
	require.True(t, wm.IsZero())

	// The failed staging run blocks everything downstream of it.
	reports, err := e.RunAll(ctx, models.ModeIncremental)
	require.Error(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, StageStaging, reports[0].Stage)
}

// cancellingSource cancels the run context from inside a source read, as if
// an operator stopped the run mid-flight.
type cancellingSource struct {
	*memory.SourceStore
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancellingSource) RawRefunds(ctx context.Context, since time.Time) ([]*models.RawRefund, error) {
	s.once.Do(s.cancel)
	return s.SourceStore.RawRefunds(ctx, since)
}

func TestCancelledRunDoesNotCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	source := &cancellingSource{SourceStore: generateSource(), cancel: cancel}
	e, stores := newTestEngine(t, source, clockT1)

	report, err := e.Run(ctx, StageStaging, models.ModeIncremental)
	require.NoError(t, err)
	require.True(t, report.Cancelled)
	require.False(t, report.Advanced)
	require.True(t, report.WatermarkAfter.Equal(report.WatermarkBefore))

	wm, err := stores.state.Watermark(ctx, StageStaging)
	require.NoError(t, err)
	require.True(t, wm.IsZero())
}

func TestStatusAfterRun(t *testing.T) {
	ctx := t.Context()
	e, _ := newTestEngine(t, generateSource(), clockT1)
	_, err := e.Run(ctx, StageStaging, models.ModeFull)
	require.NoError(t, err)

	status, err := e.Status(ctx, StageStaging)
	require.NoError(t, err)
	require.Equal(t, StageStaging, status.Stage)
	require.True(t, status.Watermark.Equal(ingestedT1))
	require.NotNil(t, status.LastRun)
	require.Equal(t, models.ModeFull, status.LastRun.Mode)

	_, err = e.Status(ctx, "bogus")
	var unknown *UnknownStageError
	require.ErrorAs(t, err, &unknown)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) PublishRunEvent(_ context.Context, stage, _ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, stage+":"+outcome)
}

func TestRunPublishesEvents(t *testing.T) {
	ctx := t.Context()
	e, _ := newTestEngine(t, generateSource(), clockT1)
	events := &recordingEvents{}
	e.Events = events

	_, err := e.Run(ctx, StageStaging, models.ModeFull)
	require.NoError(t, err)
	require.Equal(t, []string{"staging:succeeded"}, events.events)
}

func TestRunRecordsHistory(t *testing.T) {
	ctx := t.Context()
	e, stores := newTestEngine(t, generateSource(), clockT1)
	_, err := e.RunAll(ctx, models.ModeFull)
	require.NoError(t, err)

	runs, err := stores.state.RecentRuns(ctx, 50)
	require.NoError(t, err)
	require.Len(t, runs, len(StageOrder))

	last, err := stores.state.LastRun(ctx, StageSalesOverview)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.True(t, last.Advanced)

	// Feature stages leave a validation report behind.
	validation, err := stores.state.LastValidation(ctx, StageCustomerOverview)
	require.NoError(t, err)
	require.NotNil(t, validation)
	require.False(t, validation.Blocked)
}
