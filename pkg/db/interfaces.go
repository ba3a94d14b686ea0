package db

import (
	"context"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// SourceStore exposes the read-only raw row sets supplied by the ingestion
// collaborator. Rows are append-only; `since` filters on ingestion time, the
// watermark axis.
type SourceStore interface {
	RawCustomers(ctx context.Context, since time.Time) ([]*models.RawCustomer, error)
	RawOrders(ctx context.Context, since time.Time) ([]*models.RawOrder, error)
	RawOrderItems(ctx context.Context, since time.Time) ([]*models.RawOrderItem, error)
	RawPayments(ctx context.Context, since time.Time) ([]*models.RawPayment, error)
	RawProducts(ctx context.Context, since time.Time) ([]*models.RawProduct, error)
	RawClickEvents(ctx context.Context, since time.Time) ([]*models.RawClickEvent, error)
	RawAppEvents(ctx context.Context, since time.Time) ([]*models.RawAppEvent, error)
	RawSupportTickets(ctx context.Context, since time.Time) ([]*models.RawSupportTicket, error)
	RawReviews(ctx context.Context, since time.Time) ([]*models.RawReview, error)
	RawRefunds(ctx context.Context, since time.Time) ([]*models.RawRefund, error)

	// MaxIngestedAt is the high edge of the raw stream across all sources.
	MaxIngestedAt(ctx context.Context) (time.Time, error)
}

// StagingStore persists the typed staged projections and answers the
// affected-key and full-history scans the aggregator depends on.
type StagingStore interface {
	InsertStagedCustomers(ctx context.Context, rows []*models.StagedCustomer) error
	InsertStagedOrders(ctx context.Context, rows []*models.StagedOrder) error
	InsertStagedOrderItems(ctx context.Context, rows []*models.StagedOrderItem) error
	InsertStagedPayments(ctx context.Context, rows []*models.StagedPayment) error
	InsertStagedProducts(ctx context.Context, rows []*models.StagedProduct) error
	InsertStagedClickEvents(ctx context.Context, rows []*models.StagedClickEvent) error
	InsertStagedAppEvents(ctx context.Context, rows []*models.StagedAppEvent) error
	InsertStagedSupportTickets(ctx context.Context, rows []*models.StagedSupportTicket) error
	InsertStagedReviews(ctx context.Context, rows []*models.StagedReview) error
	InsertStagedRefunds(ctx context.Context, rows []*models.StagedRefund) error

	// Affected-key scans: entities with at least one staged row ingested
	// after `since`, across every source that contributes to the entity.
	// Reviews and refunds reach customers and products through their order.
	AffectedCustomers(ctx context.Context, since time.Time) ([]string, error)
	AffectedProducts(ctx context.Context, since time.Time) ([]string, error)
	AffectedOrders(ctx context.Context, since time.Time) ([]string, error)

	// Full-entity enumerations for full-mode runs.
	AllCustomerIDs(ctx context.Context) ([]string, error)
	AllProductIDs(ctx context.Context) ([]string, error)
	AllOrderIDs(ctx context.Context) ([]string, error)

	// Full-history reads per entity set. Aggregation always rescans the
	// entire staged history for an entity, never a delta.
	CustomersByID(ctx context.Context, ids []string) ([]*models.StagedCustomer, error)
	OrdersByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedOrder, error)
	OrdersByID(ctx context.Context, orderIDs []string) ([]*models.StagedOrder, error)
	ItemsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedOrderItem, error)
	ItemsByProduct(ctx context.Context, productIDs []string) ([]*models.StagedOrderItem, error)
	PaymentsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedPayment, error)
	ProductsByID(ctx context.Context, ids []string) ([]*models.StagedProduct, error)
	ClickEventsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedClickEvent, error)
	AppEventsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedAppEvent, error)
	TicketsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedSupportTicket, error)
	ReviewsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedReview, error)
	RefundsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedRefund, error)

	// MaxStagedIngestedAt is the high edge of staged ingestion time; the
	// candidate watermark for fact stages.
	MaxStagedIngestedAt(ctx context.Context) (time.Time, error)
}

// FactStore persists aggregate facts and answers the affected scans feature
// stages run against fact computation time.
type FactStore interface {
	UpsertCustomerOrderFacts(ctx context.Context, rows []*models.CustomerOrderFact) error
	UpsertCustomerEngagementFacts(ctx context.Context, rows []*models.CustomerEngagementFact) error
	UpsertCustomerSupportFacts(ctx context.Context, rows []*models.CustomerSupportFact) error
	UpsertProductSalesFacts(ctx context.Context, rows []*models.ProductSalesFact) error
	UpsertOrderEconomics(ctx context.Context, rows []*models.OrderEconomicsFact) error

	CustomerOrderFactsByID(ctx context.Context, ids []string) ([]*models.CustomerOrderFact, error)
	EngagementFactsByID(ctx context.Context, ids []string) ([]*models.CustomerEngagementFact, error)
	SupportFactsByID(ctx context.Context, ids []string) ([]*models.CustomerSupportFact, error)

	// Ranks are global within their partition, so product feature stages
	// always load the whole fact table.
	AllProductSalesFacts(ctx context.Context) ([]*models.ProductSalesFact, error)

	OrderEconomicsByMonth(ctx context.Context, months []string) ([]*models.OrderEconomicsFact, error)

	AffectedCustomerFacts(ctx context.Context, since time.Time) ([]string, error)
	AffectedProductFacts(ctx context.Context, since time.Time) ([]string, error)
	AffectedMonths(ctx context.Context, since time.Time) ([]string, error)

	AllCustomerFactIDs(ctx context.Context) ([]string, error)
	AllMonths(ctx context.Context) ([]string, error)

	MaxCustomerFactComputedAt(ctx context.Context) (time.Time, error)
	MaxProductFactComputedAt(ctx context.Context) (time.Time, error)
	MaxOrderFactComputedAt(ctx context.Context) (time.Time, error)
}

// FeatureStore persists the final mart/ML tables. Every write is an
// idempotent upsert keyed by entity identity.
type FeatureStore interface {
	UpsertCustomerOverview(ctx context.Context, rows []*models.CustomerOverview) error
	UpsertChurnFeatures(ctx context.Context, rows []*models.ChurnFeatures) error
	UpsertSegmentationFeatures(ctx context.Context, rows []*models.SegmentationFeatures) error
	UpsertLTVFeatures(ctx context.Context, rows []*models.LTVFeatures) error
	UpsertProductOverview(ctx context.Context, rows []*models.ProductOverview) error
	UpsertRecommendationFeatures(ctx context.Context, rows []*models.RecommendationFeatures) error
	UpsertSalesOverview(ctx context.Context, rows []*models.SalesOverview) error

	// SalesOverviewMonths lists every month bucket the rollup has ever
	// written, so a rerun can recompute buckets an order moved out of.
	SalesOverviewMonths(ctx context.Context) ([]string, error)
}

// StateStore persists watermarks, run history and validation reports.
type StateStore interface {
	Watermark(ctx context.Context, stage string) (time.Time, error)
	Commit(ctx context.Context, stage string, watermark time.Time, runID string) error

	RecordRun(ctx context.Context, report *models.RunReport) error
	RecordValidation(ctx context.Context, report *models.ValidationReport) error

	LastRun(ctx context.Context, stage string) (*models.RunReport, error)
	LastValidation(ctx context.Context, stage string) (*models.ValidationReport, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.RunReport, error)
}
