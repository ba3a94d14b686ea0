package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// StagingStore keeps staged rows in concurrent maps keyed by natural key.
// Inserting the same key keeps the row with the newest ingestion time,
// mirroring the ReplacingMergeTree semantics of the warehouse tables.
type StagingStore struct {
	customers *xsync.Map[string, *models.StagedCustomer]
	orders    *xsync.Map[string, *models.StagedOrder]
	items     *xsync.Map[string, *models.StagedOrderItem]
	payments  *xsync.Map[string, *models.StagedPayment]
	products  *xsync.Map[string, *models.StagedProduct]
	clicks    *xsync.Map[string, *models.StagedClickEvent]
	appEvents *xsync.Map[string, *models.StagedAppEvent]
	tickets   *xsync.Map[string, *models.StagedSupportTicket]
	reviews   *xsync.Map[string, *models.StagedReview]
	refunds   *xsync.Map[string, *models.StagedRefund]
}

func NewStagingStore() *StagingStore {
	return &StagingStore{
		customers: xsync.NewMap[string, *models.StagedCustomer](),
		orders:    xsync.NewMap[string, *models.StagedOrder](),
		items:     xsync.NewMap[string, *models.StagedOrderItem](),
		payments:  xsync.NewMap[string, *models.StagedPayment](),
		products:  xsync.NewMap[string, *models.StagedProduct](),
		clicks:    xsync.NewMap[string, *models.StagedClickEvent](),
		appEvents: xsync.NewMap[string, *models.StagedAppEvent](),
		tickets:   xsync.NewMap[string, *models.StagedSupportTicket](),
		reviews:   xsync.NewMap[string, *models.StagedReview](),
		refunds:   xsync.NewMap[string, *models.StagedRefund](),
	}
}

func replaceNewer[T any](m *xsync.Map[string, T], key string, row T, ingested func(T) time.Time) {
	m.Compute(key, func(old T, loaded bool) (T, xsync.ComputeOp) {
		if loaded && ingested(old).After(ingested(row)) {
			return old, xsync.CancelOp
		}
		return row, xsync.UpdateOp
	})
}

func (s *StagingStore) InsertStagedCustomers(_ context.Context, rows []*models.StagedCustomer) error {
	for _, r := range rows {
		replaceNewer(s.customers, r.CustomerID, r, func(v *models.StagedCustomer) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedOrders(_ context.Context, rows []*models.StagedOrder) error {
	for _, r := range rows {
		replaceNewer(s.orders, r.OrderID, r, func(v *models.StagedOrder) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedOrderItems(_ context.Context, rows []*models.StagedOrderItem) error {
	for _, r := range rows {
		key := fmt.Sprintf("%s|%d", r.OrderID, r.ItemID)
		replaceNewer(s.items, key, r, func(v *models.StagedOrderItem) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedPayments(_ context.Context, rows []*models.StagedPayment) error {
	for _, r := range rows {
		key := fmt.Sprintf("%s|%s|%.2f|%d", r.OrderID, r.PaymentType, r.Value, r.Installments)
		replaceNewer(s.payments, key, r, func(v *models.StagedPayment) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedProducts(_ context.Context, rows []*models.StagedProduct) error {
	for _, r := range rows {
		replaceNewer(s.products, r.ProductID, r, func(v *models.StagedProduct) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedClickEvents(_ context.Context, rows []*models.StagedClickEvent) error {
	for _, r := range rows {
		replaceNewer(s.clicks, r.EventID, r, func(v *models.StagedClickEvent) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedAppEvents(_ context.Context, rows []*models.StagedAppEvent) error {
	for _, r := range rows {
		replaceNewer(s.appEvents, r.EventID, r, func(v *models.StagedAppEvent) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedSupportTickets(_ context.Context, rows []*models.StagedSupportTicket) error {
	for _, r := range rows {
		replaceNewer(s.tickets, r.TicketID, r, func(v *models.StagedSupportTicket) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedReviews(_ context.Context, rows []*models.StagedReview) error {
	for _, r := range rows {
		replaceNewer(s.reviews, r.ReviewID, r, func(v *models.StagedReview) time.Time { return v.IngestedAt })
	}
	return nil
}

func (s *StagingStore) InsertStagedRefunds(_ context.Context, rows []*models.StagedRefund) error {
	for _, r := range rows {
		replaceNewer(s.refunds, r.RefundID, r, func(v *models.StagedRefund) time.Time { return v.IngestedAt })
	}
	return nil
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// customersOfOrders resolves order ids to their customers through the staged
// orders.
func (s *StagingStore) customersOfOrders(orderIDs map[string]bool, into map[string]bool) {
	for id := range orderIDs {
		if o, ok := s.orders.Load(id); ok {
			into[o.CustomerID] = true
		}
	}
}

func (s *StagingStore) AffectedCustomers(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	touchedOrders := map[string]bool{}

	s.customers.Range(func(_ string, r *models.StagedCustomer) bool {
		if r.IngestedAt.After(since) {
			set[r.CustomerID] = true
		}
		return true
	})
	s.orders.Range(func(_ string, r *models.StagedOrder) bool {
		if r.IngestedAt.After(since) {
			set[r.CustomerID] = true
		}
		return true
	})
	s.clicks.Range(func(_ string, r *models.StagedClickEvent) bool {
		if r.IngestedAt.After(since) {
			set[r.CustomerID] = true
		}
		return true
	})
	s.appEvents.Range(func(_ string, r *models.StagedAppEvent) bool {
		if r.IngestedAt.After(since) {
			set[r.CustomerID] = true
		}
		return true
	})
	s.tickets.Range(func(_ string, r *models.StagedSupportTicket) bool {
		if r.IngestedAt.After(since) {
			set[r.CustomerID] = true
		}
		return true
	})
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.payments.Range(func(_ string, r *models.StagedPayment) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.reviews.Range(func(_ string, r *models.StagedReview) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.refunds.Range(func(_ string, r *models.StagedRefund) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.customersOfOrders(touchedOrders, set)

	return sortedSet(set), nil
}

func (s *StagingStore) AffectedProducts(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	touchedOrders := map[string]bool{}

	s.products.Range(func(_ string, r *models.StagedProduct) bool {
		if r.IngestedAt.After(since) {
			set[r.ProductID] = true
		}
		return true
	})
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if r.IngestedAt.After(since) {
			set[r.ProductID] = true
		}
		return true
	})
	s.orders.Range(func(_ string, r *models.StagedOrder) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.reviews.Range(func(_ string, r *models.StagedReview) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	s.refunds.Range(func(_ string, r *models.StagedRefund) bool {
		if r.IngestedAt.After(since) {
			touchedOrders[r.OrderID] = true
		}
		return true
	})
	// Product facts read the order row itself for sale timestamps and
	// distinct buyers, so a corrected order, review or refund shifts the
	// metrics of every product in that order.
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if touchedOrders[r.OrderID] {
			set[r.ProductID] = true
		}
		return true
	})

	return sortedSet(set), nil
}

func (s *StagingStore) AffectedOrders(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	s.orders.Range(func(_ string, r *models.StagedOrder) bool {
		if r.IngestedAt.After(since) {
			set[r.OrderID] = true
		}
		return true
	})
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if r.IngestedAt.After(since) {
			set[r.OrderID] = true
		}
		return true
	})
	s.payments.Range(func(_ string, r *models.StagedPayment) bool {
		if r.IngestedAt.After(since) {
			set[r.OrderID] = true
		}
		return true
	})
	s.reviews.Range(func(_ string, r *models.StagedReview) bool {
		if r.IngestedAt.After(since) {
			set[r.OrderID] = true
		}
		return true
	})
	s.refunds.Range(func(_ string, r *models.StagedRefund) bool {
		if r.IngestedAt.After(since) {
			set[r.OrderID] = true
		}
		return true
	})
	return sortedSet(set), nil
}

func (s *StagingStore) AllCustomerIDs(ctx context.Context) ([]string, error) {
	return s.AffectedCustomers(ctx, time.Time{})
}

func (s *StagingStore) AllProductIDs(ctx context.Context) ([]string, error) {
	return s.AffectedProducts(ctx, time.Time{})
}

func (s *StagingStore) AllOrderIDs(ctx context.Context) ([]string, error) {
	return s.AffectedOrders(ctx, time.Time{})
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *StagingStore) CustomersByID(_ context.Context, ids []string) ([]*models.StagedCustomer, error) {
	set := idSet(ids)
	var out []*models.StagedCustomer
	s.customers.Range(func(_ string, r *models.StagedCustomer) bool {
		if set[r.CustomerID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (s *StagingStore) OrdersByCustomer(_ context.Context, customerIDs []string) ([]*models.StagedOrder, error) {
	set := idSet(customerIDs)
	var out []*models.StagedOrder
	s.orders.Range(func(_ string, r *models.StagedOrder) bool {
		if set[r.CustomerID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *StagingStore) OrdersByID(_ context.Context, orderIDs []string) ([]*models.StagedOrder, error) {
	set := idSet(orderIDs)
	var out []*models.StagedOrder
	s.orders.Range(func(_ string, r *models.StagedOrder) bool {
		if set[r.OrderID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *StagingStore) ItemsByOrder(_ context.Context, orderIDs []string) ([]*models.StagedOrderItem, error) {
	set := idSet(orderIDs)
	var out []*models.StagedOrderItem
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if set[r.OrderID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s *StagingStore) ItemsByProduct(_ context.Context, productIDs []string) ([]*models.StagedOrderItem, error) {
	set := idSet(productIDs)
	var out []*models.StagedOrderItem
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool {
		if set[r.ProductID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s *StagingStore) PaymentsByOrder(_ context.Context, orderIDs []string) ([]*models.StagedPayment, error) {
	set := idSet(orderIDs)
	var out []*models.StagedPayment
	s.payments.Range(func(_ string, r *models.StagedPayment) bool {
		if set[r.OrderID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].PaymentType < out[j].PaymentType
	})
	return out, nil
}

func (s *StagingStore) ProductsByID(_ context.Context, ids []string) ([]*models.StagedProduct, error) {
	set := idSet(ids)
	var out []*models.StagedProduct
	s.products.Range(func(_ string, r *models.StagedProduct) bool {
		if set[r.ProductID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *StagingStore) ClickEventsByCustomer(_ context.Context, customerIDs []string) ([]*models.StagedClickEvent, error) {
	set := idSet(customerIDs)
	var out []*models.StagedClickEvent
	s.clicks.Range(func(_ string, r *models.StagedClickEvent) bool {
		if set[r.CustomerID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (s *StagingStore) AppEventsByCustomer(_ context.Context, customerIDs []string) ([]*models.StagedAppEvent, error) {
	set := idSet(customerIDs)
	var out []*models.StagedAppEvent
	s.appEvents.Range(func(_ string, r *models.StagedAppEvent) bool {
		if set[r.CustomerID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (s *StagingStore) TicketsByCustomer(_ context.Context, customerIDs []string) ([]*models.StagedSupportTicket, error) {
	set := idSet(customerIDs)
	var out []*models.StagedSupportTicket
	s.tickets.Range(func(_ string, r *models.StagedSupportTicket) bool {
		if set[r.CustomerID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out, nil
}

func (s *StagingStore) ReviewsByOrder(_ context.Context, orderIDs []string) ([]*models.StagedReview, error) {
	set := idSet(orderIDs)
	var out []*models.StagedReview
	s.reviews.Range(func(_ string, r *models.StagedReview) bool {
		if set[r.OrderID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })
	return out, nil
}

func (s *StagingStore) RefundsByOrder(_ context.Context, orderIDs []string) ([]*models.StagedRefund, error) {
	set := idSet(orderIDs)
	var out []*models.StagedRefund
	s.refunds.Range(func(_ string, r *models.StagedRefund) bool {
		if set[r.OrderID] {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RefundID < out[j].RefundID })
	return out, nil
}

func (s *StagingStore) MaxStagedIngestedAt(_ context.Context) (time.Time, error) {
	var max time.Time
	bump := func(t time.Time) {
		if t.After(max) {
			max = t
		}
	}
	s.customers.Range(func(_ string, r *models.StagedCustomer) bool { bump(r.IngestedAt); return true })
	s.orders.Range(func(_ string, r *models.StagedOrder) bool { bump(r.IngestedAt); return true })
	s.items.Range(func(_ string, r *models.StagedOrderItem) bool { bump(r.IngestedAt); return true })
	s.payments.Range(func(_ string, r *models.StagedPayment) bool { bump(r.IngestedAt); return true })
	s.products.Range(func(_ string, r *models.StagedProduct) bool { bump(r.IngestedAt); return true })
	s.clicks.Range(func(_ string, r *models.StagedClickEvent) bool { bump(r.IngestedAt); return true })
	s.appEvents.Range(func(_ string, r *models.StagedAppEvent) bool { bump(r.IngestedAt); return true })
	s.tickets.Range(func(_ string, r *models.StagedSupportTicket) bool { bump(r.IngestedAt); return true })
	s.reviews.Range(func(_ string, r *models.StagedReview) bool { bump(r.IngestedAt); return true })
	s.refunds.Range(func(_ string, r *models.StagedRefund) bool { bump(r.IngestedAt); return true })
	return max, nil
}
