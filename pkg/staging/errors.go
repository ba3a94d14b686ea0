package staging

import "fmt"

// MalformedRowError rejects a single raw row: the row is dropped and
// counted, never fatal on its own.
type MalformedRowError struct {
	Source string
	Key    string
	Field  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed %s row %q: field %s: %s", e.Source, e.Key, e.Field, e.Reason)
}

// DropRateExceededError fails the whole staging run once the malformed
// fraction passes the configured threshold, so a garbage batch never
// propagates downstream.
type DropRateExceededError struct {
	Dropped   uint64
	Processed uint64
	Rate      float64
	Threshold float64
}

func (e *DropRateExceededError) Error() string {
	return fmt.Sprintf("drop rate %.4f exceeds threshold %.4f (%d dropped of %d rows)",
		e.Rate, e.Threshold, e.Dropped, e.Processed)
}
