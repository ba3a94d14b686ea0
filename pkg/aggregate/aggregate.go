// Package aggregate recomputes per-entity facts from the full staged history
// of the entity. Aggregation is a pure function of its inputs: recomputing
// twice from the same staged rows yields identical facts, which is what makes
// upserts and re-runs safe.
package aggregate

import "fmt"

// AggregationError isolates a failure to one entity. The batch continues;
// the entity is retried on the next run because its staged rows remain past
// the uncommitted watermark.
type AggregationError struct {
	Entity string
	ID     string
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate %s %q: %v", e.Entity, e.ID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }
