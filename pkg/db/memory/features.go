package memory

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// FeatureStore keeps the feature tables in concurrent maps. The snapshot
// getters return key-sorted copies so runs can be compared row for row.
type FeatureStore struct {
	customerOverview *xsync.Map[string, *models.CustomerOverview]
	churn            *xsync.Map[string, *models.ChurnFeatures]
	segmentation     *xsync.Map[string, *models.SegmentationFeatures]
	ltv              *xsync.Map[string, *models.LTVFeatures]
	productOverview  *xsync.Map[string, *models.ProductOverview]
	recommendation   *xsync.Map[string, *models.RecommendationFeatures]
	salesOverview    *xsync.Map[string, *models.SalesOverview]
}

func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		customerOverview: xsync.NewMap[string, *models.CustomerOverview](),
		churn:            xsync.NewMap[string, *models.ChurnFeatures](),
		segmentation:     xsync.NewMap[string, *models.SegmentationFeatures](),
		ltv:              xsync.NewMap[string, *models.LTVFeatures](),
		productOverview:  xsync.NewMap[string, *models.ProductOverview](),
		recommendation:   xsync.NewMap[string, *models.RecommendationFeatures](),
		salesOverview:    xsync.NewMap[string, *models.SalesOverview](),
	}
}

func (s *FeatureStore) UpsertCustomerOverview(_ context.Context, rows []*models.CustomerOverview) error {
	for _, r := range rows {
		replaceNewer(s.customerOverview, r.CustomerID, r, func(v *models.CustomerOverview) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertChurnFeatures(_ context.Context, rows []*models.ChurnFeatures) error {
	for _, r := range rows {
		replaceNewer(s.churn, r.CustomerID, r, func(v *models.ChurnFeatures) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertSegmentationFeatures(_ context.Context, rows []*models.SegmentationFeatures) error {
	for _, r := range rows {
		replaceNewer(s.segmentation, r.CustomerID, r, func(v *models.SegmentationFeatures) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertLTVFeatures(_ context.Context, rows []*models.LTVFeatures) error {
	for _, r := range rows {
		replaceNewer(s.ltv, r.CustomerID, r, func(v *models.LTVFeatures) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertProductOverview(_ context.Context, rows []*models.ProductOverview) error {
	for _, r := range rows {
		replaceNewer(s.productOverview, r.ProductID, r, func(v *models.ProductOverview) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertRecommendationFeatures(_ context.Context, rows []*models.RecommendationFeatures) error {
	for _, r := range rows {
		replaceNewer(s.recommendation, r.ProductID, r, func(v *models.RecommendationFeatures) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) UpsertSalesOverview(_ context.Context, rows []*models.SalesOverview) error {
	for _, r := range rows {
		replaceNewer(s.salesOverview, r.MonthBucket, r, func(v *models.SalesOverview) time.Time { return v.ComputedAt })
	}
	return nil
}

func (s *FeatureStore) SalesOverviewMonths(_ context.Context) ([]string, error) {
	set := map[string]bool{}
	s.salesOverview.Range(func(k string, _ *models.SalesOverview) bool {
		set[k] = true
		return true
	})
	return sortedSet(set), nil
}

func snapshot[T any](m *xsync.Map[string, *T], less func(a, b *T) bool) []*T {
	var out []*T
	m.Range(func(_ string, v *T) bool {
		cp := *v
		out = append(out, &cp)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *FeatureStore) CustomerOverviewRows() []*models.CustomerOverview {
	return snapshot(s.customerOverview, func(a, b *models.CustomerOverview) bool { return a.CustomerID < b.CustomerID })
}

func (s *FeatureStore) ChurnRows() []*models.ChurnFeatures {
	return snapshot(s.churn, func(a, b *models.ChurnFeatures) bool { return a.CustomerID < b.CustomerID })
}

func (s *FeatureStore) SegmentationRows() []*models.SegmentationFeatures {
	return snapshot(s.segmentation, func(a, b *models.SegmentationFeatures) bool { return a.CustomerID < b.CustomerID })
}

func (s *FeatureStore) LTVRows() []*models.LTVFeatures {
	return snapshot(s.ltv, func(a, b *models.LTVFeatures) bool { return a.CustomerID < b.CustomerID })
}

func (s *FeatureStore) ProductOverviewRows() []*models.ProductOverview {
	return snapshot(s.productOverview, func(a, b *models.ProductOverview) bool { return a.ProductID < b.ProductID })
}

func (s *FeatureStore) RecommendationRows() []*models.RecommendationFeatures {
	return snapshot(s.recommendation, func(a, b *models.RecommendationFeatures) bool { return a.ProductID < b.ProductID })
}

func (s *FeatureStore) SalesOverviewRows() []*models.SalesOverview {
	return snapshot(s.salesOverview, func(a, b *models.SalesOverview) bool { return a.MonthBucket < b.MonthBucket })
}
