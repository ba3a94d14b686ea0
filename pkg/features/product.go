package features

import (
	"time"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// ComposeProductOverviews builds the product mart from the full fact set.
// Ranks are global within their partition, so the caller always passes every
// product fact, not just the affected ones.
func ComposeProductOverviews(facts []*models.ProductSalesFact, cfg *config.Config, computedAt time.Time) []*models.ProductOverview {
	overall := make([]RankEntry, 0, len(facts))
	byCategory := map[string][]RankEntry{}
	for _, f := range facts {
		overall = append(overall, RankEntry{ID: f.ProductID, Value: f.Revenue})
		byCategory[f.Category] = append(byCategory[f.Category], RankEntry{ID: f.ProductID, Value: f.Revenue})
	}

	overallRanks := DenseRank(overall)
	categoryRanks := map[string]map[string]uint64{}
	for cat, entries := range byCategory {
		categoryRanks[cat] = DenseRank(entries)
	}

	rows := make([]*models.ProductOverview, 0, len(facts))
	for _, f := range facts {
		row := &models.ProductOverview{
			ProductID:           f.ProductID,
			Category:            f.Category,
			Subcategory:         f.Subcategory,
			UnitsSold:           f.UnitsSold,
			Revenue:             f.Revenue,
			OrderCount:          f.OrderCount,
			DistinctBuyers:      f.DistinctBuyers,
			AvgItemPrice:        f.AvgItemPrice,
			AvgReviewScore:      f.AvgReviewScore,
			CategoryRevenueRank: categoryRanks[f.Category][f.ProductID],
			OverallRevenueRank:  overallRanks[f.ProductID],
			SchemaVersion:       cfg.SchemaVersion,
			ComputedAt:          computedAt,
		}
		if f.OrderCount > 0 {
			row.RefundRate = float64(f.RefundCount) / float64(f.OrderCount)
			if row.RefundRate > 1 {
				row.RefundRate = 1
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ComposeRecommendationFeatures builds the recommender input table.
// WeightedRevenue discounts revenue by review sentiment: an unreviewed
// product carries a neutral 3.0.
func ComposeRecommendationFeatures(facts []*models.ProductSalesFact, cfg *config.Config, computedAt time.Time) []*models.RecommendationFeatures {
	popularity := make([]RankEntry, 0, len(facts))
	for _, f := range facts {
		popularity = append(popularity, RankEntry{ID: f.ProductID, Value: float64(f.UnitsSold)})
	}
	popularityRanks := DenseRank(popularity)

	rows := make([]*models.RecommendationFeatures, 0, len(facts))
	for _, f := range facts {
		score := f.AvgReviewScore
		if f.ReviewCount == 0 {
			score = 3.0
		}
		rows = append(rows, &models.RecommendationFeatures{
			ProductID:       f.ProductID,
			Category:        f.Category,
			UnitsSold:       f.UnitsSold,
			DistinctBuyers:  f.DistinctBuyers,
			AvgReviewScore:  f.AvgReviewScore,
			WeightedRevenue: f.Revenue * (score / 5.0),
			PopularityRank:  popularityRanks[f.ProductID],
			SchemaVersion:   cfg.SchemaVersion,
			ComputedAt:      computedAt,
		})
	}
	return rows
}
