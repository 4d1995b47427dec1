// Package aggregate implements the exact aggregate application spec.md
// §4.2 requires for LinkAggregate/ListAggregate (MAX/MIN/SUM/AVG), plus an
// opt-in approximate AVG backed by a t-digest sketch for large columns
// (SPEC_FULL.md §11).
package aggregate

import (
	"errors"

	"github.com/caio/go-tdigest/v4"
)

// Op names an aggregate function (spec.md §3 AggrOp).
type Op int

const (
	Max Op = iota
	Min
	Sum
	Avg
)

// ErrEmpty is returned by Apply when values is empty; spec.md does not
// define aggregate-over-nothing semantics, so callers get an explicit
// error rather than a silently meaningless zero.
var ErrEmpty = errors.New("aggregate: no values to aggregate")

// Apply computes op exactly over values (spec.md §4.2: "MaxOf/MinOf/SumOf/
// AvgOf").
func Apply(op Op, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	switch op {
	case Max:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case Min:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case Sum:
		var s float64
		for _, v := range values {
			s += v
		}
		return s, nil
	case Avg:
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), nil
	default:
		return 0, errors.New("aggregate: unknown op")
	}
}

// ApproxAverage estimates AVG over a stream too large to buffer exactly,
// trading a small, bounded error for constant memory use. The query
// compiler does not call it or Apply, and Config.ApproximateAggregates is
// not consulted by any code path.
type ApproxAverage struct {
	td *tdigest.TDigest
}

// NewApproxAverage constructs a fresh sketch with the library's default
// compression.
func NewApproxAverage() (*ApproxAverage, error) {
	td, err := tdigest.New()
	if err != nil {
		return nil, err
	}
	return &ApproxAverage{td: td}, nil
}

// Add folds value into the sketch.
func (a *ApproxAverage) Add(value float64) error {
	return a.td.Add(value)
}

// Estimate returns the sketch's estimate of the mean of every value added
// so far, via the trimmed mean between the 0th and 100th percentile (i.e.
// the full-range mean).
func (a *ApproxAverage) Estimate() (float64, error) {
	return a.td.TrimmedMean(0, 1), nil
}
