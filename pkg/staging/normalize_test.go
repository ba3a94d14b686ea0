package staging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

var ingested = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

// TestNormalizeOrder covers the accepted formats and the rejection reasons
// for order rows.
func TestNormalizeOrder(t *testing.T) {
	tests := []struct {
		name      string
		raw       models.RawOrder
		wantErr   bool
		wantField string
	}{
		{
			name: "well formed",
			raw: models.RawOrder{
				OrderID:     "order-1",
				CustomerID:  "cust-1",
				Status:      "DELIVERED",
				PurchaseTs:  "2024-03-01 10:00:00",
				DeliveredTs: "2024-03-05 16:30:00",
			},
		},
		{
			name: "literal null order id is rejected",
			raw: models.RawOrder{
				OrderID:    "null",
				CustomerID: "cust-1",
				PurchaseTs: "2024-03-01 10:00:00",
			},
			wantErr:   true,
			wantField: "order_id",
		},
		{
			name: "missing customer id is rejected",
			raw: models.RawOrder{
				OrderID:    "order-2",
				CustomerID: "  ",
				PurchaseTs: "2024-03-01 10:00:00",
			},
			wantErr:   true,
			wantField: "customer_id",
		},
		{
			name: "unparsable purchase timestamp is rejected",
			raw: models.RawOrder{
				OrderID:    "order-3",
				CustomerID: "cust-1",
				PurchaseTs: "03/01/2024",
			},
			wantErr:   true,
			wantField: "purchase_ts",
		},
		{
			name: "missing optional delivered timestamp is fine",
			raw: models.RawOrder{
				OrderID:    "order-4",
				CustomerID: "cust-1",
				Status:     "shipped",
				PurchaseTs: "2024-03-01",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := NormalizeOrder(&tt.raw)
			if tt.wantErr {
				var malformed *MalformedRowError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, tt.wantField, malformed.Field)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, row.OrderID)
		})
	}
}

// TestNormalizeOrderStatusFolding verifies status vocabulary folding,
// unknown values included.
func TestNormalizeOrderStatusFolding(t *testing.T) {
	raw := models.RawOrder{
		OrderID:    "order-5",
		CustomerID: "cust-1",
		Status:     "  Weird_Status ",
		PurchaseTs: "2024-03-01 10:00:00",
		IngestedAt: ingested,
	}
	row, err := NormalizeOrder(&raw)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusUnknown, row.Status)
	assert.Equal(t, ingested, row.IngestedAt)
}

// TestNormalizeOrderDeliveredBeforePurchase verifies the delivered timestamp
// is discarded rather than the order dropped.
func TestNormalizeOrderDeliveredBeforePurchase(t *testing.T) {
	raw := models.RawOrder{
		OrderID:     "order-6",
		CustomerID:  "cust-1",
		Status:      "delivered",
		PurchaseTs:  "2024-03-10 10:00:00",
		DeliveredTs: "2024-03-01 10:00:00",
	}
	row, err := NormalizeOrder(&raw)
	require.NoError(t, err)
	assert.True(t, row.DeliveredTs.IsZero())
	assert.False(t, row.PurchaseTs.IsZero())
}

// TestNormalizeOrderItem verifies numeric parsing and negative rejection.
func TestNormalizeOrderItem(t *testing.T) {
	row, err := NormalizeOrderItem(&models.RawOrderItem{
		OrderID:      "order-1",
		ItemID:       "2",
		ProductID:    "prod-1",
		SellerID:     " seller-1 ",
		Price:        "129.90",
		FreightValue: "19.45",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), row.ItemID)
	assert.InDelta(t, 129.90, row.Price, 1e-9)
	assert.Equal(t, "seller-1", row.SellerID)

	_, err = NormalizeOrderItem(&models.RawOrderItem{
		OrderID:   "order-1",
		ItemID:    "1",
		ProductID: "prod-1",
		Price:     "-5.00",
	})
	var malformed *MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "price", malformed.Field)
}

// TestNormalizePayment verifies installment defaulting and the zero floor.
func TestNormalizePayment(t *testing.T) {
	row, err := NormalizePayment(&models.RawPayment{
		OrderID:      "order-1",
		PaymentType:  "voucher",
		Value:        "50.00",
		Installments: "0",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), row.Installments)

	row, err = NormalizePayment(&models.RawPayment{
		OrderID:     "order-1",
		PaymentType: "credit_card",
		Value:       "75.50",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), row.Installments)

	_, err = NormalizePayment(&models.RawPayment{
		OrderID: "order-1",
		Value:   "75.50",
	})
	var malformed *MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "payment_type", malformed.Field)
}

// TestNormalizeReview verifies the score bounds.
func TestNormalizeReview(t *testing.T) {
	row, err := NormalizeReview(&models.RawReview{ReviewID: "r-1", OrderID: "order-1", Score: "5"})
	require.NoError(t, err)
	assert.Equal(t, uint8(5), row.Score)

	_, err = NormalizeReview(&models.RawReview{ReviewID: "r-2", OrderID: "order-1", Score: "6"})
	var malformed *MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "score", malformed.Field)
}

// TestNormalizeSupportTicket verifies resolution ordering and rating bounds.
func TestNormalizeSupportTicket(t *testing.T) {
	_, err := NormalizeSupportTicket(&models.RawSupportTicket{
		TicketID:   "t-1",
		CustomerID: "cust-1",
		CreatedAt:  "2024-03-10 10:00:00",
		ResolvedAt: "2024-03-09 10:00:00",
	})
	var malformed *MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "resolved_at", malformed.Field)

	row, err := NormalizeSupportTicket(&models.RawSupportTicket{
		TicketID:           "t-2",
		CustomerID:         "cust-1",
		CreatedAt:          "2024-03-10 10:00:00",
		Priority:           " HIGH ",
		SatisfactionRating: "4",
	})
	require.NoError(t, err)
	assert.Equal(t, "high", row.Priority)
	assert.True(t, row.ResolvedAt.IsZero())
	assert.InDelta(t, 4.0, row.SatisfactionRating, 1e-9)
}

// TestNormalizeProductDefaults verifies the category fallback.
func TestNormalizeProductDefaults(t *testing.T) {
	row, err := NormalizeProduct(&models.RawProduct{ProductID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, "uncategorized", row.Category)
	assert.Zero(t, row.WeightG)
}

// TestCounterThreshold verifies run-level drop accounting.
func TestCounterThreshold(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 97; i++ {
		c.RowProcessed()
	}
	for i := 0; i < 3; i++ {
		c.RowDropped()
	}

	assert.InDelta(t, 0.03, c.DropRate(), 1e-9)
	assert.NoError(t, c.CheckThreshold(0.05))

	err := c.CheckThreshold(0.02)
	var exceeded *DropRateExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, uint64(3), exceeded.Dropped)
}
