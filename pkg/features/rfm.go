// Package features derives the descriptive and ML feature rows from
// aggregate facts. Every derivation here is deterministic: bucket boundaries
// come from configuration, segment rules evaluate first-match top-down, and
// ranks carry an explicit tie-break key.
package features

import "github.com/vyaparbazaar/featurex/pkg/config"

// Scores is one customer's RFM scoring, each component in 1..5.
type Scores struct {
	Recency   uint8
	Frequency uint8
	Monetary  uint8
}

func (s Scores) Total() uint8 { return s.Recency + s.Frequency + s.Monetary }

// RecencyScore buckets days-since-last-order against the configured
// boundaries: within the first boundary scores 5, within the last scores 2,
// beyond it scores 1.
func RecencyScore(daysSinceLast int64, b config.RFMBounds) uint8 {
	switch {
	case daysSinceLast < 0:
		// Never purchased: worst recency.
		return 1
	case daysSinceLast <= int64(b.RecencyDays[0]):
		return 5
	case daysSinceLast <= int64(b.RecencyDays[1]):
		return 4
	case daysSinceLast <= int64(b.RecencyDays[2]):
		return 3
	case daysSinceLast <= int64(b.RecencyDays[3]):
		return 2
	default:
		return 1
	}
}

// FrequencyScore buckets lifetime order count, boundaries inclusive.
func FrequencyScore(orderCount uint64, b config.RFMBounds) uint8 {
	switch {
	case orderCount >= uint64(b.OrderCounts[0]):
		return 5
	case orderCount >= uint64(b.OrderCounts[1]):
		return 4
	case orderCount >= uint64(b.OrderCounts[2]):
		return 3
	case orderCount >= uint64(b.OrderCounts[3]):
		return 2
	default:
		return 1
	}
}

// MonetaryScore buckets lifetime spend, boundaries inclusive.
func MonetaryScore(lifetimeValue float64, b config.RFMBounds) uint8 {
	switch {
	case lifetimeValue >= b.LifetimeValue[0]:
		return 5
	case lifetimeValue >= b.LifetimeValue[1]:
		return 4
	case lifetimeValue >= b.LifetimeValue[2]:
		return 3
	case lifetimeValue >= b.LifetimeValue[3]:
		return 2
	default:
		return 1
	}
}

// Score computes all three components for one customer.
func Score(daysSinceLast int64, orderCount uint64, lifetimeValue float64, b config.RFMBounds) Scores {
	return Scores{
		Recency:   RecencyScore(daysSinceLast, b),
		Frequency: FrequencyScore(orderCount, b),
		Monetary:  MonetaryScore(lifetimeValue, b),
	}
}
