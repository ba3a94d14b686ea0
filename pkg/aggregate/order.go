package aggregate

import (
	"sort"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// OrderHistory bundles the staged rows for one order.
type OrderHistory struct {
	Order    *models.StagedOrder
	Items    []*models.StagedOrderItem
	Payments []*models.StagedPayment
	Reviews  []*models.StagedReview
	Refunds  []*models.StagedRefund
}

const hoursPerDay = 24.0

// BuildOrderEconomicsFact recomputes the per-order economics fact. Returns
// an AggregationError when the order row itself is missing; items or
// payments may legitimately be absent.
func BuildOrderEconomicsFact(orderID string, h *OrderHistory, computedAt time.Time) (*models.OrderEconomicsFact, error) {
	if h.Order == nil {
		return nil, &AggregationError{Entity: "order", ID: orderID, Err: errMissingOrder}
	}

	f := &models.OrderEconomicsFact{
		OrderID:    orderID,
		CustomerID: h.Order.CustomerID,
		Status:     h.Order.Status,
		PurchaseTs: h.Order.PurchaseTs,
		ComputedAt: computedAt,
	}

	for _, it := range h.Items {
		f.ItemCount++
		f.GoodsValue += it.Price
		f.FreightValue += it.FreightValue
	}

	paymentTypes := map[string]bool{}
	for _, p := range h.Payments {
		f.PaymentValue += p.Value
		paymentTypes[p.PaymentType] = true
		if p.Installments > f.InstallmentsMax {
			f.InstallmentsMax = p.Installments
		}
	}
	for t := range paymentTypes {
		f.PaymentTypes = append(f.PaymentTypes, t)
	}
	sort.Strings(f.PaymentTypes)

	// The latest review wins when the source holds several for one order.
	for _, r := range h.Reviews {
		f.ReviewScore = r.Score
	}
	for _, r := range h.Refunds {
		f.RefundAmount += r.Amount
	}

	if !h.Order.DeliveredTs.IsZero() {
		f.DeliveryDays = h.Order.DeliveredTs.Sub(h.Order.PurchaseTs).Hours() / hoursPerDay
		if !h.Order.EstimatedDeliveryTs.IsZero() {
			f.DeliveryDelayDays = h.Order.DeliveredTs.Sub(h.Order.EstimatedDeliveryTs).Hours() / hoursPerDay
		}
	}

	return f, nil
}

var errMissingOrder = &missingOrderError{}

type missingOrderError struct{}

func (*missingOrderError) Error() string { return "order row not found in staged history" }
