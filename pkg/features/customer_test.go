package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// TestLifecycle verifies that prospects never churn and that churn requires
// going quiet past the threshold.
func TestLifecycle(t *testing.T) {
	tests := []struct {
		name          string
		orderCount    uint64
		daysSinceLast int64
		expected      string
	}{
		{name: "no orders is a prospect", orderCount: 0, daysSinceLast: -1, expected: models.LifecycleProspect},
		{name: "recent purchase is active", orderCount: 3, daysSinceLast: 10, expected: models.LifecycleActive},
		{name: "exactly at threshold is still active", orderCount: 3, daysSinceLast: 90, expected: models.LifecycleActive},
		{name: "past threshold is churned", orderCount: 3, daysSinceLast: 91, expected: models.LifecycleChurned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Lifecycle(tt.orderCount, tt.daysSinceLast, 90))
		})
	}
}

// TestDaysSinceLastOrderAnchorsToUTCDate verifies the count depends only on
// the UTC dates of the two ends, so runs at different times of the same day
// agree on recency for customers untouched between them.
func TestDaysSinceLastOrderAnchorsToUTCDate(t *testing.T) {
	f := &models.CustomerOrderFact{
		OrderCount:     1,
		LastPurchaseTs: time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC),
	}
	midnight := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(143), DaysSinceLastOrder(f, midnight))
	assert.Equal(t, int64(143), DaysSinceLastOrder(f, midnight.Add(time.Hour)))
	assert.Equal(t, int64(143), DaysSinceLastOrder(f, midnight.Add(23*time.Hour)))
	assert.Equal(t, int64(144), DaysSinceLastOrder(f, midnight.Add(24*time.Hour)))
}

// TestComposeChurnFeaturesProspect verifies a customer with engagement but
// zero orders is labeled prospect with the churn flag off.
func TestComposeChurnFeaturesProspect(t *testing.T) {
	cfg := config.Default()
	cf := CustomerFacts{
		Engagement: &models.CustomerEngagementFact{
			CustomerID:   "cust-1",
			SessionCount: 12,
		},
	}

	row := ComposeChurnFeatures("cust-1", cf, cfg, testNow, testNow)

	assert.Equal(t, models.LifecycleProspect, row.Lifecycle)
	assert.False(t, row.ChurnFlag)
	assert.Equal(t, int64(-1), row.DaysSinceLast)
	assert.Equal(t, uint64(12), row.SessionCount)
	assert.Zero(t, row.OrderCount)
}

// TestComposeChurnFeaturesChurned verifies the flag flips for a purchase
// history that went quiet.
func TestComposeChurnFeaturesChurned(t *testing.T) {
	cfg := config.Default()
	cf := CustomerFacts{
		Orders: &models.CustomerOrderFact{
			CustomerID:     "cust-2",
			OrderCount:     4,
			TotalSpend:     800,
			AvgOrderValue:  200,
			RefundCount:    1,
			LastPurchaseTs: testNow.Add(-120 * 24 * time.Hour),
		},
	}

	row := ComposeChurnFeatures("cust-2", cf, cfg, testNow, testNow)

	assert.Equal(t, models.LifecycleChurned, row.Lifecycle)
	assert.True(t, row.ChurnFlag)
	assert.Equal(t, int64(120), row.DaysSinceLast)
	assert.InDelta(t, 0.25, row.RefundRate, 1e-9)
}

// TestComposeLTVFeatures verifies active-month spans and projection math.
func TestComposeLTVFeatures(t *testing.T) {
	cfg := config.Default()
	cf := CustomerFacts{
		Orders: &models.CustomerOrderFact{
			CustomerID:      "cust-3",
			OrderCount:      3,
			TotalSpend:      600,
			RefundTotal:     100,
			FirstPurchaseTs: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			LastPurchaseTs:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	row := ComposeLTVFeatures("cust-3", cf, cfg, testNow)

	// January through March inclusive.
	require.Equal(t, uint64(3), row.ActiveMonths)
	assert.InDelta(t, 600.0, row.LifetimeValue, 1e-9)
	assert.InDelta(t, 500.0, row.RefundAdjusted, 1e-9)
	assert.InDelta(t, 200.0, row.SpendPerMonth, 1e-9)
	assert.InDelta(t, 2400.0, row.Projected12M, 1e-9)
	assert.Equal(t, "silver", row.ValueTier)
}

// TestComposeLTVFeaturesProspect verifies prospects get a zero row with the
// standard tier rather than being dropped.
func TestComposeLTVFeaturesProspect(t *testing.T) {
	row := ComposeLTVFeatures("cust-4", CustomerFacts{}, config.Default(), testNow)

	assert.Equal(t, "standard", row.ValueTier)
	assert.Zero(t, row.LifetimeValue)
	assert.Zero(t, row.ActiveMonths)
}

// TestComposeCustomerOverviewNilFacts verifies composing with no facts still
// yields a complete prospect row.
func TestComposeCustomerOverviewNilFacts(t *testing.T) {
	row := ComposeCustomerOverview("cust-5", CustomerFacts{}, config.Default(), testNow, testNow)

	assert.Equal(t, "cust-5", row.CustomerID)
	assert.Equal(t, models.LifecycleProspect, row.Lifecycle)
	assert.Equal(t, int64(-1), row.DaysSinceLast)
	assert.Zero(t, row.OrderCount)
}
