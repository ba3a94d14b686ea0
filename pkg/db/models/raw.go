package models

import "time"

// Raw rows arrive from the ingestion collaborator as loosely-typed strings
// plus an ingestion timestamp. Timestamps and numerics are parsed during
// staging; a field that fails to parse drops the row there, never here.
//
// IngestedAt is the incremental watermark axis: it is assigned by the loader
// and is monotonic per source, unlike business event time which may arrive
// late or corrected.

type RawCustomer struct {
	CustomerID string    `ch:"customer_id"`
	Zip        string    `ch:"zip"`
	City       string    `ch:"city"`
	State      string    `ch:"state"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type RawOrder struct {
	OrderID             string    `ch:"order_id"`
	CustomerID          string    `ch:"customer_id"`
	Status              string    `ch:"status"`
	PurchaseTs          string    `ch:"purchase_ts"`
	DeliveredTs         string    `ch:"delivered_ts"`
	EstimatedDeliveryTs string    `ch:"estimated_delivery_ts"`
	IngestedAt          time.Time `ch:"ingested_at"`
}

type RawOrderItem struct {
	OrderID      string    `ch:"order_id"`
	ItemID       string    `ch:"item_id"`
	ProductID    string    `ch:"product_id"`
	SellerID     string    `ch:"seller_id"`
	Price        string    `ch:"price"`
	FreightValue string    `ch:"freight_value"`
	IngestedAt   time.Time `ch:"ingested_at"`
}

type RawPayment struct {
	OrderID      string    `ch:"order_id"`
	PaymentType  string    `ch:"payment_type"`
	Value        string    `ch:"value"`
	Installments string    `ch:"installments"`
	IngestedAt   time.Time `ch:"ingested_at"`
}

type RawProduct struct {
	ProductID   string    `ch:"product_id"`
	Category    string    `ch:"category"`
	Subcategory string    `ch:"subcategory"`
	WeightG     string    `ch:"weight"`
	Dimensions  string    `ch:"dimensions"`
	IngestedAt  time.Time `ch:"ingested_at"`
}

type RawClickEvent struct {
	EventID    string    `ch:"event_id"`
	CustomerID string    `ch:"customer_id"`
	Ts         string    `ch:"ts"`
	EventType  string    `ch:"event_type"`
	Device     string    `ch:"device"`
	SessionID  string    `ch:"session_id"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type RawAppEvent struct {
	EventID    string    `ch:"event_id"`
	CustomerID string    `ch:"customer_id"`
	Ts         string    `ch:"ts"`
	Screen     string    `ch:"screen"`
	Action     string    `ch:"action"`
	OS         string    `ch:"os"`
	DurationS  string    `ch:"duration_s"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type RawSupportTicket struct {
	TicketID           string    `ch:"ticket_id"`
	CustomerID         string    `ch:"customer_id"`
	CreatedAt          string    `ch:"created_at"`
	ResolvedAt         string    `ch:"resolved_at"`
	Category           string    `ch:"category"`
	Priority           string    `ch:"priority"`
	SatisfactionRating string    `ch:"satisfaction_rating"`
	IngestedAt         time.Time `ch:"ingested_at"`
}

type RawReview struct {
	ReviewID   string    `ch:"review_id"`
	OrderID    string    `ch:"order_id"`
	Score      string    `ch:"score"`
	IngestedAt time.Time `ch:"ingested_at"`
}

type RawRefund struct {
	RefundID   string    `ch:"refund_id"`
	OrderID    string    `ch:"order_id"`
	Amount     string    `ch:"amount"`
	Reason     string    `ch:"reason"`
	IngestedAt time.Time `ch:"ingested_at"`
}
