package models

import "time"

// Aggregate facts are pure functions of the full staged history for their
// entity. They are recomputed from scratch for every affected entity and
// upserted whole; ComputedAt is the ReplacingMergeTree version column so the
// newest recomputation always wins.

// CustomerOrderFact aggregates orders, order items, payments, reviews and
// refunds for one customer.
type CustomerOrderFact struct {
	CustomerID      string    `ch:"customer_id"`
	OrderCount      uint64    `ch:"order_count"`
	DeliveredCount  uint64    `ch:"delivered_count"`
	CancelledCount  uint64    `ch:"cancelled_count"`
	TotalSpend      float64   `ch:"total_spend"`
	TotalFreight    float64   `ch:"total_freight"`
	AvgOrderValue   float64   `ch:"avg_order_value"`
	MaxOrderValue   float64   `ch:"max_order_value"`
	FirstPurchaseTs time.Time `ch:"first_purchase_ts"`
	LastPurchaseTs  time.Time `ch:"last_purchase_ts"`
	InstallmentsMax uint32    `ch:"installments_max"`
	PaymentTypes    []string  `ch:"payment_types"`
	ReviewCount     uint64    `ch:"review_count"`
	AvgReviewScore  float64   `ch:"avg_review_score"`
	RefundCount     uint64    `ch:"refund_count"`
	RefundTotal     float64   `ch:"refund_total"`
	City            string    `ch:"city"`
	State           string    `ch:"state"`
	ComputedAt      time.Time `ch:"computed_at"`
}

// CustomerEngagementFact aggregates clickstream and app usage for one
// customer.
type CustomerEngagementFact struct {
	CustomerID     string    `ch:"customer_id"`
	WebEventCount  uint64    `ch:"web_event_count"`
	SessionCount   uint64    `ch:"session_count"`
	PageViewCount  uint64    `ch:"page_view_count"`
	AddToCartCount uint64    `ch:"add_to_cart_count"`
	PurchaseEvents uint64    `ch:"purchase_events"`
	ConversionRate float64   `ch:"conversion_rate"` // purchase events / sessions, in [0,1]
	DeviceCount    uint64    `ch:"device_count"`
	AppEventCount  uint64    `ch:"app_event_count"`
	AppDurationS   float64   `ch:"app_duration_s"`
	ActiveDays     uint64    `ch:"active_days"`
	LastSeenTs     time.Time `ch:"last_seen_ts"`
	ComputedAt     time.Time `ch:"computed_at"`
}

// CustomerSupportFact aggregates support tickets for one customer.
type CustomerSupportFact struct {
	CustomerID         string    `ch:"customer_id"`
	TicketCount        uint64    `ch:"ticket_count"`
	OpenTicketCount    uint64    `ch:"open_ticket_count"`
	HighPriorityCount  uint64    `ch:"high_priority_count"`
	AvgResolutionHours float64   `ch:"avg_resolution_hours"`
	AvgSatisfaction    float64   `ch:"avg_satisfaction"` // 0 when never rated
	ComputedAt         time.Time `ch:"computed_at"`
}

// ProductSalesFact aggregates order items, reviews and refunds for one
// product.
type ProductSalesFact struct {
	ProductID      string    `ch:"product_id"`
	Category       string    `ch:"category"`
	Subcategory    string    `ch:"subcategory"`
	UnitsSold      uint64    `ch:"units_sold"`
	Revenue        float64   `ch:"revenue"`
	Freight        float64   `ch:"freight"`
	OrderCount     uint64    `ch:"order_count"`
	DistinctBuyers uint64    `ch:"distinct_buyers"`
	AvgItemPrice   float64   `ch:"avg_item_price"`
	FirstSoldTs    time.Time `ch:"first_sold_ts"`
	LastSoldTs     time.Time `ch:"last_sold_ts"`
	ReviewCount    uint64    `ch:"review_count"`
	AvgReviewScore float64   `ch:"avg_review_score"`
	RefundCount    uint64    `ch:"refund_count"`
	RefundAmount   float64   `ch:"refund_amount"`
	ComputedAt     time.Time `ch:"computed_at"`
}

// OrderEconomicsFact aggregates items, payments, reviews and refunds for one
// order. It feeds the monthly sales overview.
type OrderEconomicsFact struct {
	OrderID           string    `ch:"order_id"`
	CustomerID        string    `ch:"customer_id"`
	Status            string    `ch:"status"`
	PurchaseTs        time.Time `ch:"purchase_ts"`
	ItemCount         uint64    `ch:"item_count"`
	GoodsValue        float64   `ch:"goods_value"`
	FreightValue      float64   `ch:"freight_value"`
	PaymentValue      float64   `ch:"payment_value"`
	InstallmentsMax   uint32    `ch:"installments_max"`
	PaymentTypes      []string  `ch:"payment_types"`
	ReviewScore       uint8     `ch:"review_score"` // 0 when unreviewed
	RefundAmount      float64   `ch:"refund_amount"`
	DeliveryDays      float64   `ch:"delivery_days"`       // 0 when undelivered
	DeliveryDelayDays float64   `ch:"delivery_delay_days"` // vs estimate, negative = early
	ComputedAt        time.Time `ch:"computed_at"`
}
