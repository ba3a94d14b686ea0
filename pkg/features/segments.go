package features

// SegmentRule is one row of the ordered segmentation table. Zero-valued
// bounds are unconstrained; Max bounds of 0 mean "no upper bound".
type SegmentRule struct {
	Name string

	MinRecency   uint8
	MaxRecency   uint8
	MinFrequency uint8
	MaxFrequency uint8
	MinMonetary  uint8
	MaxMonetary  uint8
	MinTotal     uint8
	MaxTotal     uint8
}

func within(v, min, max uint8) bool {
	if min > 0 && v < min {
		return false
	}
	if max > 0 && v > max {
		return false
	}
	return true
}

// Matches reports whether the rule covers the given scores.
func (r SegmentRule) Matches(s Scores) bool {
	return within(s.Recency, r.MinRecency, r.MaxRecency) &&
		within(s.Frequency, r.MinFrequency, r.MaxFrequency) &&
		within(s.Monetary, r.MinMonetary, r.MaxMonetary) &&
		within(s.Total(), r.MinTotal, r.MaxTotal)
}

// DefaultSegmentRules is the ordered rule table. Evaluation is strictly
// top-down and the first matching rule wins, so overlapping conditions are
// resolved by position, never ambiguously. The dimension-specific rules
// precede the total-band rules: a recently active low-frequency customer is
// a Potential Loyalist before any sum band is consulted.
var DefaultSegmentRules = []SegmentRule{
	{Name: "Champions", MinRecency: 4, MinFrequency: 4, MinMonetary: 4},
	{Name: "Loyal Customers", MinFrequency: 4},
	{Name: "Big Spenders", MinMonetary: 4},
	{Name: "New Customers", MinRecency: 4, MaxFrequency: 1},
	{Name: "Potential Loyalists", MinRecency: 4, MinFrequency: 2},
	{Name: "At Risk", MaxRecency: 2, MinFrequency: 3},
	{Name: "Lost", MaxRecency: 1, MaxFrequency: 2},
	{Name: "Need Attention", MinTotal: 8},
	{Name: "About To Sleep", MinTotal: 5},
	{Name: "Hibernating"},
}

// Segment resolves scores against the ordered table. The final rule is
// unconstrained, so every score combination maps to exactly one segment.
func Segment(s Scores, rules []SegmentRule) string {
	for _, r := range rules {
		if r.Matches(s) {
			return r.Name
		}
	}
	// Unreachable with a well-formed table; kept total for safety.
	return "Unsegmented"
}
