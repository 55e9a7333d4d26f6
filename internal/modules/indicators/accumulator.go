// Package indicators implements IndicatorEngine: a set of duck-typed
// window accumulators, one concrete type per technical indicator, folded
// over a sliding 15h/5m window keyed by ticker.
package indicators

import "github.com/aristath/marketintel/internal/model"

// Row is the tuple shape an accumulator folds over: one candle observation.
type Row = model.Candle

// Accumulator is the duck-typed interface every indicator implements:
// build from a single row, merge another accumulator's state in, retract
// a previously-merged accumulator's state out, and compute the current
// value. The reducer API (PipelineRuntime) operates on any conforming type.
type Accumulator interface {
	Merge(other Accumulator)
	Retract(other Accumulator)
	Compute() any
}

// FromRowFunc constructs a fresh single-row accumulator of a given kind.
type FromRowFunc func(row Row) Accumulator
