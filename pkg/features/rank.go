package features

import "sort"

// RankEntry is one candidate in a rank partition.
type RankEntry struct {
	ID    string
	Value float64
}

// DenseRank assigns dense ranks by Value descending. Ties never share a
// rank: they are broken by ID ascending, so output is bit-for-bit identical
// across runs and across any parallel partitioning of upstream work. Rank 1
// is the highest value; the next entry always gets the immediately following
// integer.
func DenseRank(entries []RankEntry) map[string]uint64 {
	sorted := make([]RankEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].ID < sorted[j].ID
	})

	ranks := make(map[string]uint64, len(sorted))
	for i, e := range sorted {
		ranks[e.ID] = uint64(i + 1)
	}
	return ranks
}
