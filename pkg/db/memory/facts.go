package memory

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// FactStore keeps aggregate facts in concurrent maps, replacing on newer
// ComputedAt like the warehouse tables do.
type FactStore struct {
	customerOrders     *xsync.Map[string, *models.CustomerOrderFact]
	customerEngagement *xsync.Map[string, *models.CustomerEngagementFact]
	customerSupport    *xsync.Map[string, *models.CustomerSupportFact]
	productSales       *xsync.Map[string, *models.ProductSalesFact]
	orderEconomics     *xsync.Map[string, *models.OrderEconomicsFact]
}

func NewFactStore() *FactStore {
	return &FactStore{
		customerOrders:     xsync.NewMap[string, *models.CustomerOrderFact](),
		customerEngagement: xsync.NewMap[string, *models.CustomerEngagementFact](),
		customerSupport:    xsync.NewMap[string, *models.CustomerSupportFact](),
		productSales:       xsync.NewMap[string, *models.ProductSalesFact](),
		orderEconomics:     xsync.NewMap[string, *models.OrderEconomicsFact](),
	}
}

func (s *FactStore) UpsertCustomerOrderFacts(_ context.Context, rows []*models.CustomerOrderFact) error {
	for _, r := range rows {
		replaceNewer(s.customerOrders, r.CustomerID, r, func(v *models.CustomerOrderFact) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FactStore) UpsertCustomerEngagementFacts(_ context.Context, rows []*models.CustomerEngagementFact) error {
	for _, r := range rows {
		replaceNewer(s.customerEngagement, r.CustomerID, r, func(v *models.CustomerEngagementFact) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FactStore) UpsertCustomerSupportFacts(_ context.Context, rows []*models.CustomerSupportFact) error {
	for _, r := range rows {
		replaceNewer(s.customerSupport, r.CustomerID, r, func(v *models.CustomerSupportFact) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FactStore) UpsertProductSalesFacts(_ context.Context, rows []*models.ProductSalesFact) error {
	for _, r := range rows {
		replaceNewer(s.productSales, r.ProductID, r, func(v *models.ProductSalesFact) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FactStore) UpsertOrderEconomics(_ context.Context, rows []*models.OrderEconomicsFact) error {
	for _, r := range rows {
		replaceNewer(s.orderEconomics, r.OrderID, r, func(v *models.OrderEconomicsFact) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FactStore) CustomerOrderFactsByID(_ context.Context, ids []string) ([]*models.CustomerOrderFact, error) {
	var out []*models.CustomerOrderFact
	for _, id := range ids {
		if f, ok := s.customerOrders.Load(id); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (s *FactStore) EngagementFactsByID(_ context.Context, ids []string) ([]*models.CustomerEngagementFact, error) {
	var out []*models.CustomerEngagementFact
	for _, id := range ids {
		if f, ok := s.customerEngagement.Load(id); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (s *FactStore) SupportFactsByID(_ context.Context, ids []string) ([]*models.CustomerSupportFact, error) {
	var out []*models.CustomerSupportFact
	for _, id := range ids {
		if f, ok := s.customerSupport.Load(id); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (s *FactStore) AllProductSalesFacts(_ context.Context) ([]*models.ProductSalesFact, error) {
	var out []*models.ProductSalesFact
	s.productSales.Range(func(_ string, f *models.ProductSalesFact) bool {
		out = append(out, f)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *FactStore) OrderEconomicsByMonth(_ context.Context, months []string) ([]*models.OrderEconomicsFact, error) {
	set := idSet(months)
	var out []*models.OrderEconomicsFact
	s.orderEconomics.Range(func(_ string, f *models.OrderEconomicsFact) bool {
		if set[f.PurchaseTs.UTC().Format("2006-01")] {
			out = append(out, f)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *FactStore) AffectedCustomerFacts(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	s.customerOrders.Range(func(_ string, f *models.CustomerOrderFact) bool {
		if f.ComputedAt.After(since) {
			set[f.CustomerID] = true
		}
		return true
	})
	s.customerEngagement.Range(func(_ string, f *models.CustomerEngagementFact) bool {
		if f.ComputedAt.After(since) {
			set[f.CustomerID] = true
		}
		return true
	})
	s.customerSupport.Range(func(_ string, f *models.CustomerSupportFact) bool {
		if f.ComputedAt.After(since) {
			set[f.CustomerID] = true
		}
		return true
	})
	return sortedSet(set), nil
}

func (s *FactStore) AffectedProductFacts(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	s.productSales.Range(func(_ string, f *models.ProductSalesFact) bool {
		if f.ComputedAt.After(since) {
			set[f.ProductID] = true
		}
		return true
	})
	return sortedSet(set), nil
}

func (s *FactStore) AffectedMonths(_ context.Context, since time.Time) ([]string, error) {
	set := map[string]bool{}
	s.orderEconomics.Range(func(_ string, f *models.OrderEconomicsFact) bool {
		if f.ComputedAt.After(since) {
			set[f.PurchaseTs.UTC().Format("2006-01")] = true
		}
		return true
	})
	return sortedSet(set), nil
}

func (s *FactStore) AllCustomerFactIDs(ctx context.Context) ([]string, error) {
	return s.AffectedCustomerFacts(ctx, time.Time{})
}

func (s *FactStore) AllMonths(ctx context.Context) ([]string, error) {
	return s.AffectedMonths(ctx, time.Time{})
}

func (s *FactStore) MaxCustomerFactComputedAt(_ context.Context) (time.Time, error) {
	var max time.Time
	bump := func(t time.Time) {
		if t.After(max) {
			max = t
		}
	}
	s.customerOrders.Range(func(_ string, f *models.CustomerOrderFact) bool { bump(f.ComputedAt); return true })
	s.customerEngagement.Range(func(_ string, f *models.CustomerEngagementFact) bool { bump(f.ComputedAt); return true })
	s.customerSupport.Range(func(_ string, f *models.CustomerSupportFact) bool { bump(f.ComputedAt); return true })
	return max, nil
}

func (s *FactStore) MaxProductFactComputedAt(_ context.Context) (time.Time, error) {
	var max time.Time
	s.productSales.Range(func(_ string, f *models.ProductSalesFact) bool {
		if f.ComputedAt.After(max) {
			max = f.ComputedAt
		}
		return true
	})
	return max, nil
}

func (s *FactStore) MaxOrderFactComputedAt(_ context.Context) (time.Time, error) {
	var max time.Time
	s.orderEconomics.Range(func(_ string, f *models.OrderEconomicsFact) bool {
		if f.ComputedAt.After(max) {
			max = f.ComputedAt
		}
		return true
	})
	return max, nil
}
