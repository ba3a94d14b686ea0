package validate

import (
	"time"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// Per-table validators. Each returns the structured report and an error only
// when a blocking check failed.

func CustomerOverview(rows []*models.CustomerOverview, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("customer_overview", runID, ranAt)
	ids := make([]string, len(rows))
	rates := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
		rates[i] = r.ConversionRate
	}
	c.NotNull("customer_id", ids)
	c.Unique("customer_id", ids)
	c.Range("conversion_rate", rates, 0, 1)
	return c.Report(), c.Err()
}

func ChurnFeatures(rows []*models.ChurnFeatures, cfg *config.Config, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("customer_churn_features", runID, ranAt)
	ids := make([]string, len(rows))
	refundRates := make([]float64, len(rows))
	convRates := make([]float64, len(rows))
	target := make([]float64, len(rows))
	daysSince := make([]float64, len(rows))
	orderCounts := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
		refundRates[i] = r.RefundRate
		convRates[i] = r.ConversionRate
		daysSince[i] = float64(r.DaysSinceLast)
		orderCounts[i] = float64(r.OrderCount)
		if r.ChurnFlag {
			target[i] = 1
		}
	}
	c.NotNull("customer_id", ids)
	c.Unique("customer_id", ids)
	c.Range("refund_rate", refundRates, 0, 1)
	c.Range("conversion_rate", convRates, 0, 1)
	c.MinVariance("days_since_last_order", daysSince, cfg.MinVariance)
	c.MinVariance("order_count", orderCounts, cfg.MinVariance)
	c.MinCorrelation("days_since_last_order", daysSince, target, cfg.MinCorrelation)
	return c.Report(), c.Err()
}

func SegmentationFeatures(rows []*models.SegmentationFeatures, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("customer_segmentation_features", runID, ranAt)
	ids := make([]string, len(rows))
	recency := make([]float64, len(rows))
	frequency := make([]float64, len(rows))
	monetary := make([]float64, len(rows))
	segments := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
		recency[i] = float64(r.RecencyScore)
		frequency[i] = float64(r.FrequencyScore)
		monetary[i] = float64(r.MonetaryScore)
		segments[i] = r.Segment
	}
	c.NotNull("customer_id", ids)
	c.Unique("customer_id", ids)
	c.NotNull("segment", segments)
	c.Range("recency_score", recency, 1, 5)
	c.Range("frequency_score", frequency, 1, 5)
	c.Range("monetary_score", monetary, 1, 5)
	return c.Report(), c.Err()
}

func LTVFeatures(rows []*models.LTVFeatures, cfg *config.Config, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("customer_ltv_features", runID, ranAt)
	ids := make([]string, len(rows))
	tiers := make([]string, len(rows))
	ltv := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
		tiers[i] = r.ValueTier
		ltv[i] = r.LifetimeValue
	}
	c.NotNull("customer_id", ids)
	c.Unique("customer_id", ids)
	c.NotNull("value_tier", tiers)
	c.MinVariance("lifetime_value", ltv, cfg.MinVariance)
	return c.Report(), c.Err()
}

func ProductOverview(rows []*models.ProductOverview, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("product_overview", runID, ranAt)
	ids := make([]string, len(rows))
	refundRates := make([]float64, len(rows))
	ranks := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.ProductID
		refundRates[i] = r.RefundRate
		ranks[i] = float64(r.OverallRevenueRank)
	}
	c.NotNull("product_id", ids)
	c.Unique("product_id", ids)
	c.Range("refund_rate", refundRates, 0, 1)
	if len(rows) > 0 {
		// Dense ranks with a total tie-break are a permutation of 1..N.
		c.Range("overall_revenue_rank", ranks, 1, float64(len(rows)))
	}
	return c.Report(), c.Err()
}

func RecommendationFeatures(rows []*models.RecommendationFeatures, cfg *config.Config, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("product_recommendation_features", runID, ranAt)
	ids := make([]string, len(rows))
	scores := make([]float64, len(rows))
	weighted := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.ProductID
		scores[i] = r.AvgReviewScore
		weighted[i] = r.WeightedRevenue
	}
	c.NotNull("product_id", ids)
	c.Unique("product_id", ids)
	// Unreviewed products legitimately carry 0.
	c.Range("avg_review_score", scores, 0, 5)
	c.MinVariance("rating_weighted_revenue", weighted, cfg.MinVariance)
	return c.Report(), c.Err()
}

func SalesOverview(rows []*models.SalesOverview, runID string, ranAt time.Time) (*models.ValidationReport, error) {
	c := NewChecker("sales_overview", runID, ranAt)
	buckets := make([]string, len(rows))
	reviewScores := make([]float64, len(rows))
	for i, r := range rows {
		buckets[i] = r.MonthBucket
		reviewScores[i] = r.AvgReviewScore
	}
	c.NotNull("month_bucket", buckets)
	c.Unique("month_bucket", buckets)
	c.Range("avg_review_score", reviewScores, 0, 5)
	return c.Report(), c.Err()
}
