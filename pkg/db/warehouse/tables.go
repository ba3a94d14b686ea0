package warehouse

// Table names. Raw tables are the append-only landing zone written by the
// ingestion collaborator; everything else is owned by the pipeline.
const (
	RawCustomersTable  = "raw_customers"
	RawOrdersTable     = "raw_orders"
	RawOrderItemsTable = "raw_order_items"
	RawPaymentsTable   = "raw_payments"
	RawProductsTable   = "raw_products"
	RawClickEventsTable = "raw_clickstream"
	RawAppEventsTable   = "raw_app_usage"
	RawTicketsTable     = "raw_support_tickets"
	RawReviewsTable     = "raw_reviews"
	RawRefundsTable     = "raw_refunds"

	StgCustomersTable   = "stg_customers"
	StgOrdersTable      = "stg_orders"
	StgOrderItemsTable  = "stg_order_items"
	StgPaymentsTable    = "stg_payments"
	StgProductsTable    = "stg_products"
	StgClickEventsTable = "stg_clickstream"
	StgAppEventsTable   = "stg_app_usage"
	StgTicketsTable     = "stg_support_tickets"
	StgReviewsTable     = "stg_reviews"
	StgRefundsTable     = "stg_refunds"

	FactCustomerOrdersTable     = "fact_customer_orders"
	FactCustomerEngagementTable = "fact_customer_engagement"
	FactCustomerSupportTable    = "fact_customer_support"
	FactProductSalesTable       = "fact_product_sales"
	FactOrderEconomicsTable     = "fact_order_economics"

	CustomerOverviewTable       = "customer_overview"
	ChurnFeaturesTable          = "customer_churn_features"
	SegmentationFeaturesTable   = "customer_segmentation_features"
	LTVFeaturesTable            = "customer_ltv_features"
	ProductOverviewTable        = "product_overview"
	RecommendationFeaturesTable = "product_recommendation_features"
	SalesOverviewTable          = "sales_overview"

	WatermarksTable  = "watermarks"
	RunHistoryTable  = "run_history"
	ValidationsTable = "validation_reports"
)

type tableSpec struct {
	table  string
	create string // fmt template: database, table
}

// tableDDL declares every warehouse table. Raw tables are plain MergeTree
// ordered by ingestion time; staged, fact and feature tables are
// ReplacingMergeTree keyed by their natural key with the newest version
// winning (ingested_at for staged rows, computed_at elsewhere).
var tableDDL = []tableSpec{
	// Raw landing tables. Append-only, string-typed, never mutated here.
	{RawCustomersTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, zip String, city String, state String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, customer_id)`},
	{RawOrdersTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, customer_id String, status String,
		purchase_ts String, delivered_ts String, estimated_delivery_ts String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, order_id)`},
	{RawOrderItemsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, item_id String, product_id String, seller_id String,
		price String, freight_value String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, order_id)`},
	{RawPaymentsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, payment_type String, value String, installments String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, order_id)`},
	{RawProductsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		product_id String, category String, subcategory String,
		weight String, dimensions String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, product_id)`},
	{RawClickEventsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		event_id String, customer_id String, ts String,
		event_type String, device String, session_id String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, event_id)`},
	{RawAppEventsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		event_id String, customer_id String, ts String,
		screen String, action String, os String, duration_s String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, event_id)`},
	{RawTicketsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		ticket_id String, customer_id String, created_at String, resolved_at String,
		category String, priority String, satisfaction_rating String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, ticket_id)`},
	{RawReviewsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		review_id String, order_id String, score String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, review_id)`},
	{RawRefundsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		refund_id String, order_id String, amount String, reason String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (ingested_at, refund_id)`},

	// Staged projections. Re-running staging for the same raw batch produces
	// identical rows, deduplicated by the version column.
	{StgCustomersTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, zip String, city String, state String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY customer_id`},
	{StgOrdersTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, customer_id String, status LowCardinality(String),
		purchase_ts DateTime64(3, 'UTC'), delivered_ts DateTime64(3, 'UTC'),
		estimated_delivery_ts DateTime64(3, 'UTC'),
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY order_id`},
	{StgOrderItemsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, item_id UInt32, product_id String, seller_id String,
		price Float64, freight_value Float64,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY (order_id, item_id)`},
	{StgPaymentsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, payment_type LowCardinality(String),
		value Float64, installments UInt32,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY (order_id, payment_type, value, installments)`},
	{StgProductsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		product_id String, category LowCardinality(String),
		subcategory LowCardinality(String), weight_g Float64, dimensions String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY product_id`},
	{StgClickEventsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		event_id String, customer_id String, ts DateTime64(3, 'UTC'),
		event_type LowCardinality(String), device LowCardinality(String), session_id String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY event_id`},
	{StgAppEventsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		event_id String, customer_id String, ts DateTime64(3, 'UTC'),
		screen LowCardinality(String), action LowCardinality(String),
		os LowCardinality(String), duration_s Float64,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY event_id`},
	{StgTicketsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		ticket_id String, customer_id String,
		created_at DateTime64(3, 'UTC'), resolved_at DateTime64(3, 'UTC'),
		category LowCardinality(String), priority LowCardinality(String),
		satisfaction_rating Float64,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY ticket_id`},
	{StgReviewsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		review_id String, order_id String, score UInt8,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY review_id`},
	{StgRefundsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		refund_id String, order_id String, amount Float64, reason String,
		ingested_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY refund_id`},

	// Aggregate facts, recomputed whole per entity.
	{FactCustomerOrdersTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, order_count UInt64, delivered_count UInt64,
		cancelled_count UInt64, total_spend Float64, total_freight Float64,
		avg_order_value Float64, max_order_value Float64,
		first_purchase_ts DateTime64(3, 'UTC'), last_purchase_ts DateTime64(3, 'UTC'),
		installments_max UInt32, payment_types Array(String),
		review_count UInt64, avg_review_score Float64,
		refund_count UInt64, refund_total Float64,
		city String, state String,
		computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{FactCustomerEngagementTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, web_event_count UInt64, session_count UInt64,
		page_view_count UInt64, add_to_cart_count UInt64, purchase_events UInt64,
		conversion_rate Float64, device_count UInt64,
		app_event_count UInt64, app_duration_s Float64,
		active_days UInt64, last_seen_ts DateTime64(3, 'UTC'),
		computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{FactCustomerSupportTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, ticket_count UInt64, open_ticket_count UInt64,
		high_priority_count UInt64, avg_resolution_hours Float64,
		avg_satisfaction Float64,
		computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{FactProductSalesTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		product_id String, category LowCardinality(String),
		subcategory LowCardinality(String),
		units_sold UInt64, revenue Float64, freight Float64,
		order_count UInt64, distinct_buyers UInt64, avg_item_price Float64,
		first_sold_ts DateTime64(3, 'UTC'), last_sold_ts DateTime64(3, 'UTC'),
		review_count UInt64, avg_review_score Float64,
		refund_count UInt64, refund_amount Float64,
		computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY product_id`},
	{FactOrderEconomicsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		order_id String, customer_id String, status LowCardinality(String),
		purchase_ts DateTime64(3, 'UTC'),
		item_count UInt64, goods_value Float64, freight_value Float64,
		payment_value Float64, installments_max UInt32, payment_types Array(String),
		review_score UInt8, refund_amount Float64,
		delivery_days Float64, delivery_delay_days Float64,
		computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY order_id
	PARTITION BY toYYYYMM(purchase_ts)`},

	// Feature tables, one row per key.
	{CustomerOverviewTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, city String, state String,
		order_count UInt64, delivered_count UInt64, cancelled_count UInt64,
		total_spend Float64, avg_order_value Float64,
		first_purchase_ts DateTime64(3, 'UTC'), last_purchase_ts DateTime64(3, 'UTC'),
		days_since_last_order Int64,
		web_event_count UInt64, session_count UInt64, conversion_rate Float64,
		app_event_count UInt64, ticket_count UInt64, avg_satisfaction Float64,
		avg_review_score Float64, refund_count UInt64,
		lifecycle LowCardinality(String),
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{ChurnFeaturesTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, order_count UInt64, days_since_last_order Int64,
		total_spend Float64, avg_order_value Float64,
		session_count UInt64, conversion_rate Float64,
		ticket_count UInt64, open_ticket_count UInt64, avg_satisfaction Float64,
		refund_rate Float64, churn_flag Bool, lifecycle LowCardinality(String),
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{SegmentationFeaturesTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String,
		recency_score UInt8, frequency_score UInt8, monetary_score UInt8,
		rfm_total UInt8, segment LowCardinality(String),
		days_since_last_order Int64, order_count UInt64, total_spend Float64,
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{LTVFeaturesTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		customer_id String, lifetime_value Float64, active_months UInt64,
		spend_per_month Float64, projected_12m Float64,
		value_tier LowCardinality(String), refund_adjusted_value Float64,
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY customer_id`},
	{ProductOverviewTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		product_id String, category LowCardinality(String),
		subcategory LowCardinality(String),
		units_sold UInt64, revenue Float64, order_count UInt64,
		distinct_buyers UInt64, avg_item_price Float64, avg_review_score Float64,
		refund_rate Float64, category_revenue_rank UInt64, overall_revenue_rank UInt64,
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY product_id`},
	{RecommendationFeaturesTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		product_id String, category LowCardinality(String),
		units_sold UInt64, distinct_buyers UInt64, avg_review_score Float64,
		rating_weighted_revenue Float64, popularity_rank UInt64,
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY product_id`},
	{SalesOverviewTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		month_bucket String, order_count UInt64, delivered_count UInt64,
		cancelled_count UInt64, revenue Float64, freight Float64,
		refund_amount Float64, distinct_customers UInt64,
		avg_order_value Float64, avg_review_score Float64, avg_delivery_days Float64,
		schema_version UInt32, computed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(computed_at) ORDER BY month_bucket`},

	// Pipeline state.
	{WatermarksTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		stage LowCardinality(String), watermark DateTime64(3, 'UTC'),
		run_id String, committed_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(committed_at) ORDER BY stage`},
	{RunHistoryTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		run_id String, stage LowCardinality(String), mode LowCardinality(String),
		started_at DateTime64(3, 'UTC'), duration_ms Float64,
		rows_read UInt64, rows_skipped UInt64, entities_recomputed UInt64,
		rows_written UInt64,
		watermark_before DateTime64(3, 'UTC'), watermark_after DateTime64(3, 'UTC'),
		advanced Bool, cancelled Bool, error String
	) ENGINE = MergeTree ORDER BY (started_at, stage)`},
	{ValidationsTable, `CREATE TABLE IF NOT EXISTS "%s"."%s" (
		table_name LowCardinality(String), run_id String,
		ran_at DateTime64(3, 'UTC'), passed Bool, blocked Bool,
		checks String
	) ENGINE = MergeTree ORDER BY (ran_at, table_name)`},
}
