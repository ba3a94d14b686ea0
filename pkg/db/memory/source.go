// Package memory provides in-memory implementations of the store
// interfaces. They back unit tests and local development runs; production
// uses the warehouse implementations against ClickHouse.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// SourceStore is the in-memory raw source adapter. Fixture generators load
// it through the Add* methods; the pipeline only ever reads.
type SourceStore struct {
	mu sync.RWMutex

	customers []*models.RawCustomer
	orders    []*models.RawOrder
	items     []*models.RawOrderItem
	payments  []*models.RawPayment
	products  []*models.RawProduct
	clicks    []*models.RawClickEvent
	appEvents []*models.RawAppEvent
	tickets   []*models.RawSupportTicket
	reviews   []*models.RawReview
	refunds   []*models.RawRefund
}

func NewSourceStore() *SourceStore { return &SourceStore{} }

func (s *SourceStore) AddCustomers(rows ...*models.RawCustomer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = append(s.customers, rows...)
}

func (s *SourceStore) AddOrders(rows ...*models.RawOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, rows...)
}

func (s *SourceStore) AddOrderItems(rows ...*models.RawOrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, rows...)
}

func (s *SourceStore) AddPayments(rows ...*models.RawPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, rows...)
}

func (s *SourceStore) AddProducts(rows ...*models.RawProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, rows...)
}

func (s *SourceStore) AddClickEvents(rows ...*models.RawClickEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, rows...)
}

func (s *SourceStore) AddAppEvents(rows ...*models.RawAppEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appEvents = append(s.appEvents, rows...)
}

func (s *SourceStore) AddSupportTickets(rows ...*models.RawSupportTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, rows...)
}

func (s *SourceStore) AddReviews(rows ...*models.RawReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, rows...)
}

func (s *SourceStore) AddRefunds(rows ...*models.RawRefund) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds = append(s.refunds, rows...)
}

func (s *SourceStore) RawCustomers(_ context.Context, since time.Time) ([]*models.RawCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawCustomer
	for _, r := range s.customers {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawOrders(_ context.Context, since time.Time) ([]*models.RawOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawOrder
	for _, r := range s.orders {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawOrderItems(_ context.Context, since time.Time) ([]*models.RawOrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawOrderItem
	for _, r := range s.items {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawPayments(_ context.Context, since time.Time) ([]*models.RawPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawPayment
	for _, r := range s.payments {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawProducts(_ context.Context, since time.Time) ([]*models.RawProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawProduct
	for _, r := range s.products {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawClickEvents(_ context.Context, since time.Time) ([]*models.RawClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawClickEvent
	for _, r := range s.clicks {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawAppEvents(_ context.Context, since time.Time) ([]*models.RawAppEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawAppEvent
	for _, r := range s.appEvents {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawSupportTickets(_ context.Context, since time.Time) ([]*models.RawSupportTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawSupportTicket
	for _, r := range s.tickets {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawReviews(_ context.Context, since time.Time) ([]*models.RawReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawReview
	for _, r := range s.reviews {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) RawRefunds(_ context.Context, since time.Time) ([]*models.RawRefund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RawRefund
	for _, r := range s.refunds {
		if r.IngestedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SourceStore) MaxIngestedAt(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max time.Time
	for _, r := range s.customers {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.orders {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.items {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.payments {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.products {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.clicks {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.appEvents {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.tickets {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.reviews {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	for _, r := range s.refunds {
		if r.IngestedAt.After(max) {
			max = r.IngestedAt
		}
	}
	return max, nil
}
