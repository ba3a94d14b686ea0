package validate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

var ranAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// TestCheckerBlocking verifies blocking rules flip both Passed and Blocked
// and surface a ValidationFailure.
func TestCheckerBlocking(t *testing.T) {
	c := NewChecker("customer_overview", "run-1", ranAt)
	c.NotNull("customer_id", []string{"a", ""})

	report := c.Report()
	assert.False(t, report.Passed)
	assert.True(t, report.Blocked)
	require.Len(t, report.FailedChecks(), 1)

	var failure *ValidationFailure
	require.True(t, errors.As(c.Err(), &failure))
	assert.Equal(t, "customer_overview", failure.Table)
}

// TestCheckerNonBlocking verifies variance warnings fail the report without
// blocking it.
func TestCheckerNonBlocking(t *testing.T) {
	c := NewChecker("customer_churn_features", "run-1", ranAt)
	constant := make([]float64, 20)
	c.MinVariance("order_count", constant, 1e-6)

	report := c.Report()
	assert.False(t, report.Passed)
	assert.False(t, report.Blocked)
	assert.NoError(t, c.Err())
}

// TestCheckerSmallSampleSkipsMLChecks verifies variance and correlation
// rules are skipped below the sample floor.
func TestCheckerSmallSampleSkipsMLChecks(t *testing.T) {
	c := NewChecker("customer_churn_features", "run-1", ranAt)
	c.MinVariance("order_count", []float64{1, 1, 1}, 1e-6)
	c.MinCorrelation("days_since_last_order", []float64{1, 2}, []float64{0, 1}, 0.01)

	report := c.Report()
	assert.Empty(t, report.Checks)
	assert.True(t, report.Passed)
}

// TestCheckerRange verifies NaN and out-of-bound detection.
func TestCheckerRange(t *testing.T) {
	c := NewChecker("customer_overview", "run-1", ranAt)
	c.Range("conversion_rate", []float64{0, 0.5, 1.2}, 0, 1)

	report := c.Report()
	assert.True(t, report.Blocked)
	assert.InDelta(t, 1.0, report.Checks[0].Observed, 1e-9)
}

// TestCustomerOverviewDuplicate verifies the uniqueness rule blocks on a
// duplicated key.
func TestCustomerOverviewDuplicate(t *testing.T) {
	rows := []*models.CustomerOverview{
		{CustomerID: "cust-1"},
		{CustomerID: "cust-1"},
	}
	report, err := CustomerOverview(rows, "run-1", ranAt)

	require.Error(t, err)
	assert.True(t, report.Blocked)
}

// TestChurnFeaturesHealthy verifies a varied dataset passes every rule.
func TestChurnFeaturesHealthy(t *testing.T) {
	cfg := config.Default()
	rows := make([]*models.ChurnFeatures, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, &models.ChurnFeatures{
			CustomerID:     fmt.Sprintf("cust-%d", i),
			DaysSinceLast:  int64(10 * i),
			OrderCount:     uint64(i % 7),
			RefundRate:     0.1,
			ConversionRate: 0.2,
			ChurnFlag:      10*i > cfg.ChurnThresholdDays,
		})
	}

	report, err := ChurnFeatures(rows, cfg, "run-1", ranAt)

	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.False(t, report.Blocked)
}

// TestSegmentationFeaturesScoreBounds verifies a score outside 1..5 blocks.
func TestSegmentationFeaturesScoreBounds(t *testing.T) {
	rows := []*models.SegmentationFeatures{
		{CustomerID: "cust-1", Segment: "Champions", RecencyScore: 6, FrequencyScore: 5, MonetaryScore: 5},
	}
	report, err := SegmentationFeatures(rows, "run-1", ranAt)

	require.Error(t, err)
	assert.True(t, report.Blocked)
}

// TestProductOverviewRankPermutation verifies ranks outside 1..N block.
func TestProductOverviewRankPermutation(t *testing.T) {
	rows := []*models.ProductOverview{
		{ProductID: "p-1", OverallRevenueRank: 1},
		{ProductID: "p-2", OverallRevenueRank: 3},
	}
	report, err := ProductOverview(rows, "run-1", ranAt)

	require.Error(t, err)
	assert.True(t, report.Blocked)
}

// TestVariance verifies the population variance including the small-sample
// guard.
func TestVariance(t *testing.T) {
	assert.Zero(t, Variance([]float64{4}))
	assert.InDelta(t, 2.0, Variance([]float64{1, 2, 3, 4, 5}), 1e-9)
}

// TestPearsonCorrelation verifies the perfect, inverse and degenerate cases.
func TestPearsonCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, PearsonCorrelation(xs, []float64{2, 4, 6, 8}), 1e-9)
	assert.InDelta(t, -1.0, PearsonCorrelation(xs, []float64{8, 6, 4, 2}), 1e-9)
	assert.Zero(t, PearsonCorrelation(xs, []float64{5, 5, 5, 5}))
	assert.Zero(t, PearsonCorrelation(xs, []float64{1, 2}))
}
