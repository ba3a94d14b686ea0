package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// TestBuildOrderEconomicsFact verifies the per-order economics rollup.
func TestBuildOrderEconomicsFact(t *testing.T) {
	purchase := ts(1)
	h := &OrderHistory{
		Order: &models.StagedOrder{
			OrderID:             "o-1",
			CustomerID:          "cust-1",
			Status:              models.OrderStatusDelivered,
			PurchaseTs:          purchase,
			DeliveredTs:         purchase.Add(6 * 24 * time.Hour),
			EstimatedDeliveryTs: purchase.Add(8 * 24 * time.Hour),
		},
		Items: []*models.StagedOrderItem{
			{OrderID: "o-1", ItemID: 1, Price: 100, FreightValue: 10},
			{OrderID: "o-1", ItemID: 2, Price: 60, FreightValue: 8},
		},
		Payments: []*models.StagedPayment{
			{OrderID: "o-1", PaymentType: "credit_card", Value: 178, Installments: 2},
		},
		Reviews: []*models.StagedReview{
			{ReviewID: "r-1", OrderID: "o-1", Score: 4},
		},
		Refunds: []*models.StagedRefund{
			{RefundID: "f-1", OrderID: "o-1", Amount: 30},
		},
	}

	f, err := BuildOrderEconomicsFact("o-1", h, computedAt)
	require.NoError(t, err)

	assert.Equal(t, "cust-1", f.CustomerID)
	assert.Equal(t, uint64(2), f.ItemCount)
	assert.InDelta(t, 160.0, f.GoodsValue, 1e-9)
	assert.InDelta(t, 18.0, f.FreightValue, 1e-9)
	assert.InDelta(t, 178.0, f.PaymentValue, 1e-9)
	assert.Equal(t, []string{"credit_card"}, f.PaymentTypes)
	assert.Equal(t, uint32(2), f.InstallmentsMax)
	assert.Equal(t, uint8(4), f.ReviewScore)
	assert.InDelta(t, 30.0, f.RefundAmount, 1e-9)
	assert.InDelta(t, 6.0, f.DeliveryDays, 1e-9)
	assert.InDelta(t, -2.0, f.DeliveryDelayDays, 1e-9)
}

// TestBuildOrderEconomicsFactMissingOrder verifies the entity-isolated
// error for item rows without their order.
func TestBuildOrderEconomicsFactMissingOrder(t *testing.T) {
	h := &OrderHistory{
		Items: []*models.StagedOrderItem{{OrderID: "o-2", ItemID: 1, Price: 10}},
	}

	_, err := BuildOrderEconomicsFact("o-2", h, computedAt)

	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, "order", aggErr.Entity)
	assert.Equal(t, "o-2", aggErr.ID)
}

// TestBuildProductSalesFact verifies the product rollup with per-order
// review and refund attribution.
func TestBuildProductSalesFact(t *testing.T) {
	h := &ProductHistory{
		Product: &models.StagedProduct{ProductID: "p-1", Category: "toys", Subcategory: "puzzles"},
		Items: []*models.StagedOrderItem{
			{OrderID: "o-1", ItemID: 1, ProductID: "p-1", Price: 40, FreightValue: 5},
			{OrderID: "o-1", ItemID: 2, ProductID: "p-1", Price: 40, FreightValue: 5},
			{OrderID: "o-2", ItemID: 1, ProductID: "p-1", Price: 50, FreightValue: 6},
		},
		Orders: map[string]*models.StagedOrder{
			"o-1": {OrderID: "o-1", CustomerID: "cust-1", PurchaseTs: ts(1)},
			"o-2": {OrderID: "o-2", CustomerID: "cust-2", PurchaseTs: ts(5)},
		},
		Reviews: map[string][]*models.StagedReview{
			"o-1": {{ReviewID: "r-1", OrderID: "o-1", Score: 5}},
		},
		Refunds: map[string][]*models.StagedRefund{
			"o-2": {{RefundID: "f-1", OrderID: "o-2", Amount: 50}},
		},
	}

	f := BuildProductSalesFact("p-1", h, computedAt)

	assert.Equal(t, "toys", f.Category)
	assert.Equal(t, uint64(3), f.UnitsSold)
	assert.InDelta(t, 130.0, f.Revenue, 1e-9)
	assert.Equal(t, uint64(2), f.OrderCount)
	assert.Equal(t, uint64(2), f.DistinctBuyers)
	// Two items in o-1 must not double-count its review.
	assert.Equal(t, uint64(1), f.ReviewCount)
	assert.InDelta(t, 5.0, f.AvgReviewScore, 1e-9)
	assert.Equal(t, uint64(1), f.RefundCount)
	assert.Equal(t, ts(1), f.FirstSoldTs)
	assert.Equal(t, ts(5), f.LastSoldTs)
	assert.InDelta(t, 130.0/3.0, f.AvgItemPrice, 1e-9)
}

// TestBuildProductSalesFactNoProductRow verifies the category fallback when
// only item rows arrived so far.
func TestBuildProductSalesFactNoProductRow(t *testing.T) {
	f := BuildProductSalesFact("p-9", &ProductHistory{
		Items:   []*models.StagedOrderItem{{OrderID: "o-1", ItemID: 1, ProductID: "p-9", Price: 10}},
		Orders:  map[string]*models.StagedOrder{},
		Reviews: map[string][]*models.StagedReview{},
		Refunds: map[string][]*models.StagedRefund{},
	}, computedAt)

	assert.Equal(t, "uncategorized", f.Category)
	assert.Equal(t, uint64(1), f.UnitsSold)
	assert.Zero(t, f.DistinctBuyers)
}
