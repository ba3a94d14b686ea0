package features

import (
	"time"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// CustomerFacts bundles the three fact rows a customer's feature rows are
// derived from. Facts missing because the customer had no activity in that
// source are nil and coalesce to zero metrics.
type CustomerFacts struct {
	Orders     *models.CustomerOrderFact
	Engagement *models.CustomerEngagementFact
	Support    *models.CustomerSupportFact
}

// DaysSinceLastOrder returns whole calendar days between the last purchase
// and now, or -1 for customers who never purchased. Both ends are anchored
// to their UTC dates, so every run on the same UTC day observes the same
// count regardless of its wall-clock time.
func DaysSinceLastOrder(f *models.CustomerOrderFact, now time.Time) int64 {
	if f == nil || f.OrderCount == 0 || f.LastPurchaseTs.IsZero() {
		return -1
	}
	return int64(utcDate(now).Sub(utcDate(f.LastPurchaseTs)).Hours() / 24)
}

func utcDate(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Lifecycle labels a customer. Customers with zero orders are prospects,
// never churned; churn requires a purchase history that went quiet past the
// configured threshold.
func Lifecycle(orderCount uint64, daysSinceLast int64, churnThresholdDays int) string {
	if orderCount == 0 {
		return models.LifecycleProspect
	}
	if daysSinceLast > int64(churnThresholdDays) {
		return models.LifecycleChurned
	}
	return models.LifecycleActive
}

// ComposeCustomerOverview builds the wide descriptive row for one customer.
func ComposeCustomerOverview(customerID string, cf CustomerFacts, cfg *config.Config, now, computedAt time.Time) *models.CustomerOverview {
	row := &models.CustomerOverview{
		CustomerID:    customerID,
		DaysSinceLast: -1,
		Lifecycle:     models.LifecycleProspect,
		SchemaVersion: cfg.SchemaVersion,
		ComputedAt:    computedAt,
	}

	if cf.Orders != nil {
		row.City = cf.Orders.City
		row.State = cf.Orders.State
		row.OrderCount = cf.Orders.OrderCount
		row.DeliveredCount = cf.Orders.DeliveredCount
		row.CancelledCount = cf.Orders.CancelledCount
		row.TotalSpend = cf.Orders.TotalSpend
		row.AvgOrderValue = cf.Orders.AvgOrderValue
		row.FirstPurchaseTs = cf.Orders.FirstPurchaseTs
		row.LastPurchaseTs = cf.Orders.LastPurchaseTs
		row.AvgReviewScore = cf.Orders.AvgReviewScore
		row.RefundCount = cf.Orders.RefundCount
	}
	if cf.Engagement != nil {
		row.WebEventCount = cf.Engagement.WebEventCount
		row.SessionCount = cf.Engagement.SessionCount
		row.ConversionRate = cf.Engagement.ConversionRate
		row.AppEventCount = cf.Engagement.AppEventCount
	}
	if cf.Support != nil {
		row.TicketCount = cf.Support.TicketCount
		row.AvgSatisfaction = cf.Support.AvgSatisfaction
	}

	row.DaysSinceLast = DaysSinceLastOrder(cf.Orders, now)
	row.Lifecycle = Lifecycle(row.OrderCount, row.DaysSinceLast, cfg.ChurnThresholdDays)

	return row
}

// ComposeChurnFeatures builds the churn ML row for one customer. ChurnFlag
// is true only for customers with at least one order whose last purchase is
// older than the threshold.
func ComposeChurnFeatures(customerID string, cf CustomerFacts, cfg *config.Config, now, computedAt time.Time) *models.ChurnFeatures {
	row := &models.ChurnFeatures{
		CustomerID:    customerID,
		DaysSinceLast: -1,
		SchemaVersion: cfg.SchemaVersion,
		ComputedAt:    computedAt,
	}

	if cf.Orders != nil {
		row.OrderCount = cf.Orders.OrderCount
		row.TotalSpend = cf.Orders.TotalSpend
		row.AvgOrderValue = cf.Orders.AvgOrderValue
		if cf.Orders.OrderCount > 0 {
			row.RefundRate = float64(cf.Orders.RefundCount) / float64(cf.Orders.OrderCount)
			if row.RefundRate > 1 {
				row.RefundRate = 1
			}
		}
	}
	if cf.Engagement != nil {
		row.SessionCount = cf.Engagement.SessionCount
		row.ConversionRate = cf.Engagement.ConversionRate
	}
	if cf.Support != nil {
		row.TicketCount = cf.Support.TicketCount
		row.OpenTicketCount = cf.Support.OpenTicketCount
		row.AvgSatisfaction = cf.Support.AvgSatisfaction
	}

	row.DaysSinceLast = DaysSinceLastOrder(cf.Orders, now)
	row.Lifecycle = Lifecycle(row.OrderCount, row.DaysSinceLast, cfg.ChurnThresholdDays)
	row.ChurnFlag = row.Lifecycle == models.LifecycleChurned

	return row
}

// ComposeSegmentationFeatures builds the RFM row for one customer.
func ComposeSegmentationFeatures(customerID string, cf CustomerFacts, cfg *config.Config, now, computedAt time.Time) *models.SegmentationFeatures {
	var orderCount uint64
	var totalSpend float64
	if cf.Orders != nil {
		orderCount = cf.Orders.OrderCount
		totalSpend = cf.Orders.TotalSpend
	}
	daysSince := DaysSinceLastOrder(cf.Orders, now)
	scores := Score(daysSince, orderCount, totalSpend, cfg.RFM)

	return &models.SegmentationFeatures{
		CustomerID:     customerID,
		RecencyScore:   scores.Recency,
		FrequencyScore: scores.Frequency,
		MonetaryScore:  scores.Monetary,
		RFMTotal:       scores.Total(),
		Segment:        Segment(scores, DefaultSegmentRules),
		DaysSinceLast:  daysSince,
		OrderCount:     orderCount,
		TotalSpend:     totalSpend,
		SchemaVersion:  cfg.SchemaVersion,
		ComputedAt:     computedAt,
	}
}

// valueTier maps the monetary score to a named tier.
func valueTier(monetaryScore uint8) string {
	switch monetaryScore {
	case 5:
		return "platinum"
	case 4:
		return "gold"
	case 3:
		return "silver"
	case 2:
		return "bronze"
	default:
		return "standard"
	}
}

// ComposeLTVFeatures builds the lifetime-value row for one customer. Active
// months span first to last purchase on calendar-month boundaries,
// inclusive.
func ComposeLTVFeatures(customerID string, cf CustomerFacts, cfg *config.Config, computedAt time.Time) *models.LTVFeatures {
	row := &models.LTVFeatures{
		CustomerID:    customerID,
		ValueTier:     "standard",
		SchemaVersion: cfg.SchemaVersion,
		ComputedAt:    computedAt,
	}
	if cf.Orders == nil || cf.Orders.OrderCount == 0 {
		return row
	}

	row.LifetimeValue = cf.Orders.TotalSpend
	row.RefundAdjusted = cf.Orders.TotalSpend - cf.Orders.RefundTotal
	if row.RefundAdjusted < 0 {
		row.RefundAdjusted = 0
	}

	first, last := cf.Orders.FirstPurchaseTs.UTC(), cf.Orders.LastPurchaseTs.UTC()
	months := (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month()) + 1
	row.ActiveMonths = uint64(months)
	row.SpendPerMonth = row.LifetimeValue / float64(months)
	row.Projected12M = row.SpendPerMonth * 12
	row.ValueTier = valueTier(MonetaryScore(row.LifetimeValue, cfg.RFM))

	return row
}
