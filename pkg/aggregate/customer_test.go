package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

var computedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func ts(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func customerHistory() *CustomerHistory {
	return &CustomerHistory{
		Customer: &models.StagedCustomer{CustomerID: "cust-1", City: "campinas", State: "SP"},
		Orders: []*models.StagedOrder{
			{OrderID: "o-1", CustomerID: "cust-1", Status: models.OrderStatusDelivered, PurchaseTs: ts(1)},
			{OrderID: "o-2", CustomerID: "cust-1", Status: models.OrderStatusCancelled, PurchaseTs: ts(10)},
		},
		Items: map[string][]*models.StagedOrderItem{
			"o-1": {
				{OrderID: "o-1", ItemID: 1, ProductID: "p-1", Price: 100, FreightValue: 10},
				{OrderID: "o-1", ItemID: 2, ProductID: "p-2", Price: 50, FreightValue: 5},
			},
			"o-2": {
				{OrderID: "o-2", ItemID: 1, ProductID: "p-1", Price: 200, FreightValue: 20},
			},
		},
		Payments: map[string][]*models.StagedPayment{
			"o-1": {{OrderID: "o-1", PaymentType: "credit_card", Value: 165, Installments: 3}},
			"o-2": {{OrderID: "o-2", PaymentType: "boleto", Value: 220, Installments: 1}},
		},
		Reviews: map[string][]*models.StagedReview{
			"o-1": {{ReviewID: "r-1", OrderID: "o-1", Score: 4}},
		},
		Refunds: map[string][]*models.StagedRefund{
			"o-2": {{RefundID: "f-1", OrderID: "o-2", Amount: 220}},
		},
	}
}

// TestBuildCustomerOrderFact verifies the full-history order rollup for one
// customer.
func TestBuildCustomerOrderFact(t *testing.T) {
	f := BuildCustomerOrderFact("cust-1", customerHistory(), computedAt)

	assert.Equal(t, "cust-1", f.CustomerID)
	assert.Equal(t, "campinas", f.City)
	assert.Equal(t, uint64(2), f.OrderCount)
	assert.Equal(t, uint64(1), f.DeliveredCount)
	assert.Equal(t, uint64(1), f.CancelledCount)
	assert.InDelta(t, 350.0, f.TotalSpend, 1e-9)
	assert.InDelta(t, 175.0, f.AvgOrderValue, 1e-9)
	assert.InDelta(t, 200.0, f.MaxOrderValue, 1e-9)
	assert.InDelta(t, 35.0, f.TotalFreight, 1e-9)
	assert.Equal(t, ts(1), f.FirstPurchaseTs)
	assert.Equal(t, ts(10), f.LastPurchaseTs)
	assert.Equal(t, []string{"boleto", "credit_card"}, f.PaymentTypes)
	assert.Equal(t, uint32(3), f.InstallmentsMax)
	assert.Equal(t, uint64(1), f.ReviewCount)
	assert.InDelta(t, 4.0, f.AvgReviewScore, 1e-9)
	assert.Equal(t, uint64(1), f.RefundCount)
	assert.InDelta(t, 220.0, f.RefundTotal, 1e-9)
}

// TestBuildCustomerOrderFactEmpty verifies customers with no orders still
// produce a zero-count fact row.
func TestBuildCustomerOrderFactEmpty(t *testing.T) {
	f := BuildCustomerOrderFact("cust-2", &CustomerHistory{
		Items:    map[string][]*models.StagedOrderItem{},
		Payments: map[string][]*models.StagedPayment{},
		Reviews:  map[string][]*models.StagedReview{},
		Refunds:  map[string][]*models.StagedRefund{},
	}, computedAt)

	assert.Equal(t, "cust-2", f.CustomerID)
	assert.Zero(t, f.OrderCount)
	assert.Zero(t, f.TotalSpend)
	assert.True(t, f.FirstPurchaseTs.IsZero())
}

// TestBuildCustomerOrderFactDeterministic verifies recomputation from the
// same history is byte-identical.
func TestBuildCustomerOrderFactDeterministic(t *testing.T) {
	a := BuildCustomerOrderFact("cust-1", customerHistory(), computedAt)
	b := BuildCustomerOrderFact("cust-1", customerHistory(), computedAt)
	assert.Equal(t, a, b)
}

// TestBuildCustomerEngagementFact verifies session, device and conversion
// accounting.
func TestBuildCustomerEngagementFact(t *testing.T) {
	h := &CustomerHistory{
		Clicks: []*models.StagedClickEvent{
			{EventID: "e-1", CustomerID: "cust-1", Ts: ts(1), EventType: "page_view", Device: "mobile", SessionID: "s-1"},
			{EventID: "e-2", CustomerID: "cust-1", Ts: ts(1), EventType: "add_to_cart", Device: "mobile", SessionID: "s-1"},
			{EventID: "e-3", CustomerID: "cust-1", Ts: ts(2), EventType: "purchase", Device: "desktop", SessionID: "s-2"},
		},
		AppEvents: []*models.StagedAppEvent{
			{EventID: "a-1", CustomerID: "cust-1", Ts: ts(3), DurationS: 120},
		},
	}

	f := BuildCustomerEngagementFact("cust-1", h, computedAt)

	assert.Equal(t, uint64(3), f.WebEventCount)
	assert.Equal(t, uint64(1), f.AppEventCount)
	assert.Equal(t, uint64(2), f.SessionCount)
	assert.Equal(t, uint64(2), f.DeviceCount)
	assert.Equal(t, uint64(3), f.ActiveDays)
	assert.Equal(t, uint64(1), f.PageViewCount)
	assert.Equal(t, uint64(1), f.AddToCartCount)
	assert.Equal(t, uint64(1), f.PurchaseEvents)
	assert.InDelta(t, 0.5, f.ConversionRate, 1e-9)
	assert.InDelta(t, 120.0, f.AppDurationS, 1e-9)
	assert.Equal(t, ts(3), f.LastSeenTs)
}

// TestBuildCustomerSupportFact verifies resolution and satisfaction rollups,
// open tickets included.
func TestBuildCustomerSupportFact(t *testing.T) {
	created := ts(1)
	h := &CustomerHistory{
		Tickets: []*models.StagedSupportTicket{
			{TicketID: "t-1", CustomerID: "cust-1", CreatedAt: created, ResolvedAt: created.Add(48 * time.Hour), Priority: "high", SatisfactionRating: 5},
			{TicketID: "t-2", CustomerID: "cust-1", CreatedAt: created, Priority: "low"},
		},
	}

	f := BuildCustomerSupportFact("cust-1", h, computedAt)

	require.Equal(t, uint64(2), f.TicketCount)
	assert.Equal(t, uint64(1), f.OpenTicketCount)
	assert.Equal(t, uint64(1), f.HighPriorityCount)
	assert.InDelta(t, 48.0, f.AvgResolutionHours, 1e-9)
	assert.InDelta(t, 5.0, f.AvgSatisfaction, 1e-9)
}
