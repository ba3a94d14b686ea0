package aggregate

import (
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// ProductHistory bundles the staged rows contributing to one product's fact.
// Order lookups resolve buyers and purchase timestamps; reviews and refunds
// attach through the order.
type ProductHistory struct {
	Product *models.StagedProduct
	Items   []*models.StagedOrderItem
	Orders  map[string]*models.StagedOrder        // keyed by order_id
	Reviews map[string][]*models.StagedReview     // keyed by order_id
	Refunds map[string][]*models.StagedRefund     // keyed by order_id
}

// BuildProductSalesFact recomputes one product's sales fact from its entire
// item history.
func BuildProductSalesFact(productID string, h *ProductHistory, computedAt time.Time) *models.ProductSalesFact {
	f := &models.ProductSalesFact{
		ProductID:  productID,
		Category:   "uncategorized",
		ComputedAt: computedAt,
	}
	if h.Product != nil {
		f.Category = h.Product.Category
		f.Subcategory = h.Product.Subcategory
	}

	orders := map[string]bool{}
	buyers := map[string]bool{}
	reviewedOrders := map[string]bool{}
	refundedOrders := map[string]bool{}
	var reviewSum float64

	for _, it := range h.Items {
		f.UnitsSold++
		f.Revenue += it.Price
		f.Freight += it.FreightValue
		orders[it.OrderID] = true

		o := h.Orders[it.OrderID]
		if o != nil {
			buyers[o.CustomerID] = true
			if f.FirstSoldTs.IsZero() || o.PurchaseTs.Before(f.FirstSoldTs) {
				f.FirstSoldTs = o.PurchaseTs
			}
			if o.PurchaseTs.After(f.LastSoldTs) {
				f.LastSoldTs = o.PurchaseTs
			}
		}

		// Reviews and refunds are per order; count each order once even
		// when the product appears in multiple items of that order.
		if !reviewedOrders[it.OrderID] {
			for _, r := range h.Reviews[it.OrderID] {
				f.ReviewCount++
				reviewSum += float64(r.Score)
			}
			reviewedOrders[it.OrderID] = true
		}
		if !refundedOrders[it.OrderID] {
			for _, r := range h.Refunds[it.OrderID] {
				f.RefundCount++
				f.RefundAmount += r.Amount
			}
			refundedOrders[it.OrderID] = true
		}
	}

	f.OrderCount = uint64(len(orders))
	f.DistinctBuyers = uint64(len(buyers))
	if f.UnitsSold > 0 {
		f.AvgItemPrice = f.Revenue / float64(f.UnitsSold)
	}
	if f.ReviewCount > 0 {
		f.AvgReviewScore = reviewSum / float64(f.ReviewCount)
	}

	return f
}
