package models

import "time"

// Feature rows are the persisted mart/ML tables. Exactly one row per key;
// rank columns are dense and deterministic (revenue descending, entity id
// ascending on ties). SchemaVersion stamps every row so downstream consumers
// can detect column evolution.

// Customer lifecycle labels. A customer with zero orders is never churned;
// they are a prospect.
const (
	LifecycleProspect = "prospect"
	LifecycleActive   = "active"
	LifecycleChurned  = "churned"
)

// CustomerOverview is the wide descriptive mart row per customer.
type CustomerOverview struct {
	CustomerID        string    `ch:"customer_id"`
	City              string    `ch:"city"`
	State             string    `ch:"state"`
	OrderCount        uint64    `ch:"order_count"`
	DeliveredCount    uint64    `ch:"delivered_count"`
	CancelledCount    uint64    `ch:"cancelled_count"`
	TotalSpend        float64   `ch:"total_spend"`
	AvgOrderValue     float64   `ch:"avg_order_value"`
	FirstPurchaseTs   time.Time `ch:"first_purchase_ts"`
	LastPurchaseTs    time.Time `ch:"last_purchase_ts"`
	DaysSinceLast     int64     `ch:"days_since_last_order"` // -1 for prospects
	WebEventCount     uint64    `ch:"web_event_count"`
	SessionCount      uint64    `ch:"session_count"`
	ConversionRate    float64   `ch:"conversion_rate"`
	AppEventCount     uint64    `ch:"app_event_count"`
	TicketCount       uint64    `ch:"ticket_count"`
	AvgSatisfaction   float64   `ch:"avg_satisfaction"`
	AvgReviewScore    float64   `ch:"avg_review_score"`
	RefundCount       uint64    `ch:"refund_count"`
	Lifecycle         string    `ch:"lifecycle"`
	SchemaVersion     uint32    `ch:"schema_version"`
	ComputedAt        time.Time `ch:"computed_at"`
}

// ChurnFeatures is the ML table for churn modeling. ChurnFlag is the target.
type ChurnFeatures struct {
	CustomerID      string    `ch:"customer_id"`
	OrderCount      uint64    `ch:"order_count"`
	DaysSinceLast   int64     `ch:"days_since_last_order"`
	TotalSpend      float64   `ch:"total_spend"`
	AvgOrderValue   float64   `ch:"avg_order_value"`
	SessionCount    uint64    `ch:"session_count"`
	ConversionRate  float64   `ch:"conversion_rate"`
	TicketCount     uint64    `ch:"ticket_count"`
	OpenTicketCount uint64    `ch:"open_ticket_count"`
	AvgSatisfaction float64   `ch:"avg_satisfaction"`
	RefundRate      float64   `ch:"refund_rate"` // refunds per order, in [0,1]
	ChurnFlag       bool      `ch:"churn_flag"`
	Lifecycle       string    `ch:"lifecycle"`
	SchemaVersion   uint32    `ch:"schema_version"`
	ComputedAt      time.Time `ch:"computed_at"`
}

// SegmentationFeatures is the RFM segmentation table.
type SegmentationFeatures struct {
	CustomerID     string    `ch:"customer_id"`
	RecencyScore   uint8     `ch:"recency_score"`   // 1..5
	FrequencyScore uint8     `ch:"frequency_score"` // 1..5
	MonetaryScore  uint8     `ch:"monetary_score"`  // 1..5
	RFMTotal       uint8     `ch:"rfm_total"`
	Segment        string    `ch:"segment"`
	DaysSinceLast  int64     `ch:"days_since_last_order"`
	OrderCount     uint64    `ch:"order_count"`
	TotalSpend     float64   `ch:"total_spend"`
	SchemaVersion  uint32    `ch:"schema_version"`
	ComputedAt     time.Time `ch:"computed_at"`
}

// LTVFeatures is the customer lifetime-value table.
type LTVFeatures struct {
	CustomerID       string    `ch:"customer_id"`
	LifetimeValue    float64   `ch:"lifetime_value"`
	ActiveMonths     uint64    `ch:"active_months"`
	SpendPerMonth    float64   `ch:"spend_per_month"`
	Projected12M     float64   `ch:"projected_12m"`
	ValueTier        string    `ch:"value_tier"` // bronze/silver/gold/platinum
	RefundAdjusted   float64   `ch:"refund_adjusted_value"`
	SchemaVersion    uint32    `ch:"schema_version"`
	ComputedAt       time.Time `ch:"computed_at"`
}

// ProductOverview is the descriptive product mart with dense revenue ranks.
type ProductOverview struct {
	ProductID           string    `ch:"product_id"`
	Category            string    `ch:"category"`
	Subcategory         string    `ch:"subcategory"`
	UnitsSold           uint64    `ch:"units_sold"`
	Revenue             float64   `ch:"revenue"`
	OrderCount          uint64    `ch:"order_count"`
	DistinctBuyers      uint64    `ch:"distinct_buyers"`
	AvgItemPrice        float64   `ch:"avg_item_price"`
	AvgReviewScore      float64   `ch:"avg_review_score"`
	RefundRate          float64   `ch:"refund_rate"` // refunded orders / orders, in [0,1]
	CategoryRevenueRank uint64    `ch:"category_revenue_rank"`
	OverallRevenueRank  uint64    `ch:"overall_revenue_rank"`
	SchemaVersion       uint32    `ch:"schema_version"`
	ComputedAt          time.Time `ch:"computed_at"`
}

// RecommendationFeatures feeds the product recommender.
type RecommendationFeatures struct {
	ProductID          string    `ch:"product_id"`
	Category           string    `ch:"category"`
	UnitsSold          uint64    `ch:"units_sold"`
	DistinctBuyers     uint64    `ch:"distinct_buyers"`
	AvgReviewScore     float64   `ch:"avg_review_score"`
	WeightedRevenue    float64   `ch:"rating_weighted_revenue"`
	PopularityRank     uint64    `ch:"popularity_rank"` // dense, by units sold desc
	SchemaVersion      uint32    `ch:"schema_version"`
	ComputedAt         time.Time `ch:"computed_at"`
}

// SalesOverview is the monthly sales mart, keyed (month_bucket). Buckets are
// UTC calendar months formatted YYYY-MM.
type SalesOverview struct {
	MonthBucket       string    `ch:"month_bucket"`
	OrderCount        uint64    `ch:"order_count"`
	DeliveredCount    uint64    `ch:"delivered_count"`
	CancelledCount    uint64    `ch:"cancelled_count"`
	Revenue           float64   `ch:"revenue"`
	Freight           float64   `ch:"freight"`
	RefundAmount      float64   `ch:"refund_amount"`
	DistinctCustomers uint64    `ch:"distinct_customers"`
	AvgOrderValue     float64   `ch:"avg_order_value"`
	AvgReviewScore    float64   `ch:"avg_review_score"`
	AvgDeliveryDays   float64   `ch:"avg_delivery_days"`
	SchemaVersion     uint32    `ch:"schema_version"`
	ComputedAt        time.Time `ch:"computed_at"`
}
