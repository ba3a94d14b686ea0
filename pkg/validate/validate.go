// Package validate runs the post-compose checks on feature tables. Blocking
// failures stop the watermark commit for the affected table only; they never
// roll back previously committed data.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// ValidationFailure carries a report whose blocking checks failed.
type ValidationFailure struct {
	Table  string
	Report *models.ValidationReport
}

func (e *ValidationFailure) Error() string {
	failed := e.Report.FailedChecks()
	return fmt.Sprintf("validation failed for %s: %d check(s) failed", e.Table, len(failed))
}

// Checker accumulates rule outcomes for one table in one run.
type Checker struct {
	report *models.ValidationReport
}

func NewChecker(table, runID string, ranAt time.Time) *Checker {
	return &Checker{report: &models.ValidationReport{
		Table:  table,
		RunID:  runID,
		RanAt:  ranAt,
		Passed: true,
	}}
}

func (c *Checker) add(r models.CheckResult) {
	c.report.Checks = append(c.report.Checks, r)
	if !r.Passed {
		c.report.Passed = false
		if r.Blocking {
			c.report.Blocked = true
		}
	}
}

// NotNull requires every identity value to be non-empty. Always blocking.
func (c *Checker) NotNull(column string, values []string) {
	missing := 0
	for _, v := range values {
		if v == "" {
			missing++
		}
	}
	c.add(models.CheckResult{
		Rule:     "not_null",
		Column:   column,
		Passed:   missing == 0,
		Blocking: true,
		Observed: float64(missing),
		Detail:   fmt.Sprintf("%d null value(s) of %d rows", missing, len(values)),
	})
}

// Unique requires exactly one row per key. Always blocking.
func (c *Checker) Unique(column string, keys []string) {
	seen := make(map[string]bool, len(keys))
	dupes := 0
	for _, k := range keys {
		if seen[k] {
			dupes++
		}
		seen[k] = true
	}
	c.add(models.CheckResult{
		Rule:     "unique",
		Column:   column,
		Passed:   dupes == 0,
		Blocking: true,
		Observed: float64(dupes),
		Detail:   fmt.Sprintf("%d duplicate key(s) of %d rows", dupes, len(keys)),
	})
}

// Range requires every value within [lo, hi]. Blocking.
func (c *Checker) Range(column string, values []float64, lo, hi float64) {
	out := 0
	for _, v := range values {
		if v < lo || v > hi || math.IsNaN(v) {
			out++
		}
	}
	c.add(models.CheckResult{
		Rule:     "range",
		Column:   column,
		Passed:   out == 0,
		Blocking: true,
		Observed: float64(out),
		Detail:   fmt.Sprintf("%d value(s) outside [%g,%g]", out, lo, hi),
	})
}

// MinVariance warns when an ML column is near-constant and useless to a
// model. Non-blocking: a degenerate column is a data-quality smell, not a
// correctness defect. Skipped below the minimum sample size.
func (c *Checker) MinVariance(column string, values []float64, min float64) {
	if len(values) < 10 {
		return
	}
	v := Variance(values)
	c.add(models.CheckResult{
		Rule:     "min_variance",
		Column:   column,
		Passed:   v >= min,
		Blocking: false,
		Observed: v,
		Detail:   fmt.Sprintf("variance %g, floor %g", v, min),
	})
}

// MinCorrelation warns when an ML feature has no measurable relationship
// with the target. Non-blocking. Skipped below the minimum sample size.
func (c *Checker) MinCorrelation(column string, values, target []float64, min float64) {
	if len(values) < 10 {
		return
	}
	r := math.Abs(PearsonCorrelation(values, target))
	c.add(models.CheckResult{
		Rule:     "min_correlation",
		Column:   column,
		Passed:   r >= min,
		Blocking: false,
		Observed: r,
		Detail:   fmt.Sprintf("|r| %g vs target, floor %g", r, min),
	})
}

// Report finalizes and returns the accumulated report.
func (c *Checker) Report() *models.ValidationReport { return c.report }

// Err returns a ValidationFailure when any blocking check failed, else nil.
func (c *Checker) Err() error {
	if c.report.Blocked {
		return &ValidationFailure{Table: c.report.Table, Report: c.report}
	}
	return nil
}
