package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyaparbazaar/featurex/pkg/config"
)

// TestScore verifies the RFM bucketing against the default boundaries,
// boundary values included.
func TestScore(t *testing.T) {
	bounds := config.Default().RFM

	tests := []struct {
		name          string
		daysSinceLast int64
		orderCount    uint64
		lifetimeValue float64
		expected      Scores
	}{
		{
			name:          "recent mid-frequency silver spender",
			daysSinceLast: 10,
			orderCount:    3,
			lifetimeValue: 600,
			expected:      Scores{Recency: 5, Frequency: 2, Monetary: 3},
		},
		{
			name:          "never purchased",
			daysSinceLast: -1,
			orderCount:    0,
			lifetimeValue: 0,
			expected:      Scores{Recency: 1, Frequency: 1, Monetary: 1},
		},
		{
			name:          "top bucket on every axis",
			daysSinceLast: 30,
			orderCount:    10,
			lifetimeValue: 1000,
			expected:      Scores{Recency: 5, Frequency: 5, Monetary: 5},
		},
		{
			name:          "just past the first recency boundary",
			daysSinceLast: 31,
			orderCount:    10,
			lifetimeValue: 1000,
			expected:      Scores{Recency: 4, Frequency: 5, Monetary: 5},
		},
		{
			name:          "beyond the last recency boundary",
			daysSinceLast: 181,
			orderCount:    1,
			lifetimeValue: 100,
			expected:      Scores{Recency: 1, Frequency: 1, Monetary: 1},
		},
		{
			name:          "exactly on the lowest scoring boundaries",
			daysSinceLast: 180,
			orderCount:    2,
			lifetimeValue: 250,
			expected:      Scores{Recency: 2, Frequency: 2, Monetary: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.daysSinceLast, tt.orderCount, tt.lifetimeValue, bounds)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestSegment verifies first-match-wins resolution over the default rule
// table.
func TestSegment(t *testing.T) {
	tests := []struct {
		name     string
		scores   Scores
		expected string
	}{
		{name: "champions", scores: Scores{Recency: 5, Frequency: 5, Monetary: 5}, expected: "Champions"},
		{name: "loyal before big spender", scores: Scores{Recency: 3, Frequency: 5, Monetary: 5}, expected: "Loyal Customers"},
		{name: "big spender", scores: Scores{Recency: 3, Frequency: 2, Monetary: 5}, expected: "Big Spenders"},
		{name: "new customer", scores: Scores{Recency: 5, Frequency: 1, Monetary: 1}, expected: "New Customers"},
		{name: "potential loyalist", scores: Scores{Recency: 5, Frequency: 2, Monetary: 3}, expected: "Potential Loyalists"},
		{name: "at risk", scores: Scores{Recency: 2, Frequency: 3, Monetary: 3}, expected: "At Risk"},
		{name: "lost", scores: Scores{Recency: 1, Frequency: 2, Monetary: 2}, expected: "Lost"},
		{name: "need attention", scores: Scores{Recency: 3, Frequency: 2, Monetary: 3}, expected: "Need Attention"},
		{name: "about to sleep", scores: Scores{Recency: 2, Frequency: 2, Monetary: 1}, expected: "About To Sleep"},
		{name: "hibernating fallback", scores: Scores{Recency: 2, Frequency: 1, Monetary: 1}, expected: "Hibernating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Segment(tt.scores, DefaultSegmentRules))
		})
	}
}
