package warehouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

func (db *DB) UpsertCustomerOverview(ctx context.Context, rows []*models.CustomerOverview) error {
	return db.insertBatch(ctx, CustomerOverviewTable,
		"customer_id, city, state, order_count, delivered_count, cancelled_count, total_spend, "+
			"avg_order_value, first_purchase_ts, last_purchase_ts, days_since_last_order, "+
			"web_event_count, session_count, conversion_rate, app_event_count, ticket_count, "+
			"avg_satisfaction, avg_review_score, refund_count, lifecycle, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.City, r.State, r.OrderCount, r.DeliveredCount,
				r.CancelledCount, r.TotalSpend, r.AvgOrderValue, r.FirstPurchaseTs,
				r.LastPurchaseTs, r.DaysSinceLast, r.WebEventCount, r.SessionCount,
				r.ConversionRate, r.AppEventCount, r.TicketCount, r.AvgSatisfaction,
				r.AvgReviewScore, r.RefundCount, r.Lifecycle, r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertChurnFeatures(ctx context.Context, rows []*models.ChurnFeatures) error {
	return db.insertBatch(ctx, ChurnFeaturesTable,
		"customer_id, order_count, days_since_last_order, total_spend, avg_order_value, "+
			"session_count, conversion_rate, ticket_count, open_ticket_count, avg_satisfaction, "+
			"refund_rate, churn_flag, lifecycle, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.OrderCount, r.DaysSinceLast, r.TotalSpend,
				r.AvgOrderValue, r.SessionCount, r.ConversionRate, r.TicketCount,
				r.OpenTicketCount, r.AvgSatisfaction, r.RefundRate, r.ChurnFlag,
				r.Lifecycle, r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertSegmentationFeatures(ctx context.Context, rows []*models.SegmentationFeatures) error {
	return db.insertBatch(ctx, SegmentationFeaturesTable,
		"customer_id, recency_score, frequency_score, monetary_score, rfm_total, segment, "+
			"days_since_last_order, order_count, total_spend, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.RecencyScore, r.FrequencyScore, r.MonetaryScore,
				r.RFMTotal, r.Segment, r.DaysSinceLast, r.OrderCount, r.TotalSpend,
				r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertLTVFeatures(ctx context.Context, rows []*models.LTVFeatures) error {
	return db.insertBatch(ctx, LTVFeaturesTable,
		"customer_id, lifetime_value, active_months, spend_per_month, projected_12m, "+
			"value_tier, refund_adjusted_value, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.LifetimeValue, r.ActiveMonths, r.SpendPerMonth,
				r.Projected12M, r.ValueTier, r.RefundAdjusted, r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertProductOverview(ctx context.Context, rows []*models.ProductOverview) error {
	return db.insertBatch(ctx, ProductOverviewTable,
		"product_id, category, subcategory, units_sold, revenue, order_count, distinct_buyers, "+
			"avg_item_price, avg_review_score, refund_rate, category_revenue_rank, "+
			"overall_revenue_rank, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.ProductID, r.Category, r.Subcategory, r.UnitsSold, r.Revenue,
				r.OrderCount, r.DistinctBuyers, r.AvgItemPrice, r.AvgReviewScore,
				r.RefundRate, r.CategoryRevenueRank, r.OverallRevenueRank,
				r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertRecommendationFeatures(ctx context.Context, rows []*models.RecommendationFeatures) error {
	return db.insertBatch(ctx, RecommendationFeaturesTable,
		"product_id, category, units_sold, distinct_buyers, avg_review_score, "+
			"rating_weighted_revenue, popularity_rank, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.ProductID, r.Category, r.UnitsSold, r.DistinctBuyers,
				r.AvgReviewScore, r.WeightedRevenue, r.PopularityRank,
				r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) UpsertSalesOverview(ctx context.Context, rows []*models.SalesOverview) error {
	return db.insertBatch(ctx, SalesOverviewTable,
		"month_bucket, order_count, delivered_count, cancelled_count, revenue, freight, "+
			"refund_amount, distinct_customers, avg_order_value, avg_review_score, "+
			"avg_delivery_days, schema_version, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.MonthBucket, r.OrderCount, r.DeliveredCount, r.CancelledCount,
				r.Revenue, r.Freight, r.RefundAmount, r.DistinctCustomers,
				r.AvgOrderValue, r.AvgReviewScore, r.AvgDeliveryDays,
				r.SchemaVersion, r.ComputedAt)
		})
}

func (db *DB) SalesOverviewMonths(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT month_bucket FROM "%s"."%s" ORDER BY month_bucket`,
		db.Name, SalesOverviewTable,
	)
	return db.selectIDs(ctx, query)
}
