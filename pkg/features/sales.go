package features

import (
	"time"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// MonthBucket formats the UTC calendar-month key for a purchase timestamp.
func MonthBucket(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// ComposeSalesOverview rebuilds one monthly bucket from every order fact in
// that month. Cancelled orders count toward order totals but not revenue.
func ComposeSalesOverview(month string, orders []*models.OrderEconomicsFact, cfg *config.Config, computedAt time.Time) *models.SalesOverview {
	row := &models.SalesOverview{
		MonthBucket:   month,
		SchemaVersion: cfg.SchemaVersion,
		ComputedAt:    computedAt,
	}

	customers := map[string]bool{}
	var reviewSum float64
	var reviewed uint64
	var deliveryDays float64
	var delivered uint64

	for _, o := range orders {
		row.OrderCount++
		customers[o.CustomerID] = true
		switch o.Status {
		case models.OrderStatusDelivered:
			row.DeliveredCount++
		case models.OrderStatusCancelled:
			row.CancelledCount++
		}
		if o.Status != models.OrderStatusCancelled {
			row.Revenue += o.GoodsValue
			row.Freight += o.FreightValue
		}
		row.RefundAmount += o.RefundAmount
		if o.ReviewScore > 0 {
			reviewed++
			reviewSum += float64(o.ReviewScore)
		}
		if o.DeliveryDays > 0 {
			delivered++
			deliveryDays += o.DeliveryDays
		}
	}

	row.DistinctCustomers = uint64(len(customers))
	if row.OrderCount > 0 {
		row.AvgOrderValue = row.Revenue / float64(row.OrderCount)
	}
	if reviewed > 0 {
		row.AvgReviewScore = reviewSum / float64(reviewed)
	}
	if delivered > 0 {
		row.AvgDeliveryDays = deliveryDays / float64(delivered)
	}

	return row
}
