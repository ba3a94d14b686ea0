package models

import "time"

// Staged rows are the typed, cleaned 1:1 projections of raw rows. They are
// re-derivable deterministically from their raw row: staging never mutates
// independently, so re-running staging for the same raw batch is a no-op
// under the ReplacingMergeTree version column (ingested_at).

// Order status vocabulary carried over from the source dataset.
const (
	OrderStatusDelivered = "delivered"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
	OrderStatusCreated   = "created"
	OrderStatusApproved  = "approved"
	OrderStatusInvoiced  = "invoiced"
	OrderStatusUnknown   = "unknown"
)

type StagedCustomer struct {
	CustomerID string    `ch:"customer_id"`
	Zip        string    `ch:"zip"`
	City       string    `ch:"city"`
	State      string    `ch:"state"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type StagedOrder struct {
	OrderID             string    `ch:"order_id"`
	CustomerID          string    `ch:"customer_id"`
	Status              string    `ch:"status"`
	PurchaseTs          time.Time `ch:"purchase_ts"`
	DeliveredTs         time.Time `ch:"delivered_ts"` // zero when not delivered
	EstimatedDeliveryTs time.Time `ch:"estimated_delivery_ts"`
	IngestedAt          time.Time `ch:"ingested_at"`
}

type StagedOrderItem struct {
	OrderID      string    `ch:"order_id"`
	ItemID       uint32    `ch:"item_id"`
	ProductID    string    `ch:"product_id"`
	SellerID     string    `ch:"seller_id"`
	Price        float64   `ch:"price"`
	FreightValue float64   `ch:"freight_value"`
	IngestedAt   time.Time `ch:"ingested_at"`
}

type StagedPayment struct {
	OrderID      string    `ch:"order_id"`
	PaymentType  string    `ch:"payment_type"`
	Value        float64   `ch:"value"`
	Installments uint32    `ch:"installments"`
	IngestedAt   time.Time `ch:"ingested_at"`
}

type StagedProduct struct {
	ProductID   string    `ch:"product_id"`
	Category    string    `ch:"category"`
	Subcategory string    `ch:"subcategory"`
	WeightG     float64   `ch:"weight_g"`
	Dimensions  string    `ch:"dimensions"`
	IngestedAt  time.Time `ch:"ingested_at"`
}

type StagedClickEvent struct {
	EventID    string    `ch:"event_id"`
	CustomerID string    `ch:"customer_id"`
	Ts         time.Time `ch:"ts"`
	EventType  string    `ch:"event_type"`
	Device     string    `ch:"device"`
	SessionID  string    `ch:"session_id"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type StagedAppEvent struct {
	EventID    string    `ch:"event_id"`
	CustomerID string    `ch:"customer_id"`
	Ts         time.Time `ch:"ts"`
	Screen     string    `ch:"screen"`
	Action     string    `ch:"action"`
	OS         string    `ch:"os"`
	DurationS  float64   `ch:"duration_s"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type StagedSupportTicket struct {
	TicketID           string    `ch:"ticket_id"`
	CustomerID         string    `ch:"customer_id"`
	CreatedAt          time.Time `ch:"created_at"`
	ResolvedAt         time.Time `ch:"resolved_at"` // zero when still open
	Category           string    `ch:"category"`
	Priority           string    `ch:"priority"`
	SatisfactionRating float64   `ch:"satisfaction_rating"` // 0 when unrated
	IngestedAt         time.Time `ch:"ingested_at"`
}

type StagedReview struct {
	ReviewID   string    `ch:"review_id"`
	OrderID    string    `ch:"order_id"`
	Score      uint8     `ch:"score"` // 1..5
	IngestedAt time.Time `ch:"ingested_at"`
}

type StagedRefund struct {
	RefundID   string    `ch:"refund_id"`
	OrderID    string    `ch:"order_id"`
	Amount     float64   `ch:"amount"`
	Reason     string    `ch:"reason"`
	IngestedAt time.Time `ch:"ingested_at"`
}
