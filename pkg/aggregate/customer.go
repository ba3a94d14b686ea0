package aggregate

import (
	"sort"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// CustomerHistory bundles every staged row that contributes to one
// customer's facts. The caller fetches it with full-history reads; nothing
// here is a delta.
type CustomerHistory struct {
	Customer  *models.StagedCustomer
	Orders    []*models.StagedOrder
	Items     map[string][]*models.StagedOrderItem // keyed by order_id
	Payments  map[string][]*models.StagedPayment
	Reviews   map[string][]*models.StagedReview
	Refunds   map[string][]*models.StagedRefund
	Clicks    []*models.StagedClickEvent
	AppEvents []*models.StagedAppEvent
	Tickets   []*models.StagedSupportTicket
}

// BuildCustomerOrderFact recomputes the order-side fact for one customer
// from scratch. Customers with no orders still get a fact row with zero
// counts; they are never dropped.
func BuildCustomerOrderFact(customerID string, h *CustomerHistory, computedAt time.Time) *models.CustomerOrderFact {
	f := &models.CustomerOrderFact{
		CustomerID: customerID,
		ComputedAt: computedAt,
	}
	if h.Customer != nil {
		f.City = h.Customer.City
		f.State = h.Customer.State
	}

	paymentTypes := map[string]bool{}
	var reviewSum float64

	for _, o := range h.Orders {
		f.OrderCount++
		switch o.Status {
		case models.OrderStatusDelivered:
			f.DeliveredCount++
		case models.OrderStatusCancelled:
			f.CancelledCount++
		}
		if f.FirstPurchaseTs.IsZero() || o.PurchaseTs.Before(f.FirstPurchaseTs) {
			f.FirstPurchaseTs = o.PurchaseTs
		}
		if o.PurchaseTs.After(f.LastPurchaseTs) {
			f.LastPurchaseTs = o.PurchaseTs
		}

		var orderValue float64
		for _, it := range h.Items[o.OrderID] {
			orderValue += it.Price
			f.TotalFreight += it.FreightValue
		}
		f.TotalSpend += orderValue
		if orderValue > f.MaxOrderValue {
			f.MaxOrderValue = orderValue
		}

		for _, p := range h.Payments[o.OrderID] {
			paymentTypes[p.PaymentType] = true
			if p.Installments > f.InstallmentsMax {
				f.InstallmentsMax = p.Installments
			}
		}
		for _, r := range h.Reviews[o.OrderID] {
			f.ReviewCount++
			reviewSum += float64(r.Score)
		}
		for _, r := range h.Refunds[o.OrderID] {
			f.RefundCount++
			f.RefundTotal += r.Amount
		}
	}

	if f.OrderCount > 0 {
		f.AvgOrderValue = f.TotalSpend / float64(f.OrderCount)
	}
	if f.ReviewCount > 0 {
		f.AvgReviewScore = reviewSum / float64(f.ReviewCount)
	}

	// Sorted for byte-stable output across runs and partitionings.
	for t := range paymentTypes {
		f.PaymentTypes = append(f.PaymentTypes, t)
	}
	sort.Strings(f.PaymentTypes)

	return f
}

// BuildCustomerEngagementFact recomputes clickstream and app usage metrics
// for one customer.
func BuildCustomerEngagementFact(customerID string, h *CustomerHistory, computedAt time.Time) *models.CustomerEngagementFact {
	f := &models.CustomerEngagementFact{
		CustomerID: customerID,
		ComputedAt: computedAt,
	}

	sessions := map[string]bool{}
	devices := map[string]bool{}
	days := map[string]bool{}

	for _, e := range h.Clicks {
		f.WebEventCount++
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}
		if e.Device != "" {
			devices[e.Device] = true
		}
		days[e.Ts.Format("2006-01-02")] = true
		switch e.EventType {
		case "page_view":
			f.PageViewCount++
		case "add_to_cart":
			f.AddToCartCount++
		case "purchase":
			f.PurchaseEvents++
		}
		if e.Ts.After(f.LastSeenTs) {
			f.LastSeenTs = e.Ts
		}
	}

	for _, e := range h.AppEvents {
		f.AppEventCount++
		f.AppDurationS += e.DurationS
		days[e.Ts.Format("2006-01-02")] = true
		if e.Ts.After(f.LastSeenTs) {
			f.LastSeenTs = e.Ts
		}
	}

	f.SessionCount = uint64(len(sessions))
	f.DeviceCount = uint64(len(devices))
	f.ActiveDays = uint64(len(days))

	if f.SessionCount > 0 {
		f.ConversionRate = float64(f.PurchaseEvents) / float64(f.SessionCount)
		if f.ConversionRate > 1 {
			f.ConversionRate = 1
		}
	}

	return f
}

// BuildCustomerSupportFact recomputes support metrics for one customer.
func BuildCustomerSupportFact(customerID string, h *CustomerHistory, computedAt time.Time) *models.CustomerSupportFact {
	f := &models.CustomerSupportFact{
		CustomerID: customerID,
		ComputedAt: computedAt,
	}

	var resolutionHours float64
	var resolvedCount, ratedCount uint64
	var satisfactionSum float64

	for _, t := range h.Tickets {
		f.TicketCount++
		if t.ResolvedAt.IsZero() {
			f.OpenTicketCount++
		} else {
			resolvedCount++
			resolutionHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
		}
		if t.Priority == "high" || t.Priority == "urgent" {
			f.HighPriorityCount++
		}
		if t.SatisfactionRating > 0 {
			ratedCount++
			satisfactionSum += t.SatisfactionRating
		}
	}

	if resolvedCount > 0 {
		f.AvgResolutionHours = resolutionHours / float64(resolvedCount)
	}
	if ratedCount > 0 {
		f.AvgSatisfaction = satisfactionSum / float64(ratedCount)
	}

	return f
}
