// Package metricswrap decorates a hotness tracker with the hot_cells gauge
// and a sampled log line when a cell crosses the configured threshold.
package metricswrap

import (
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/geocached/internal/core/observability"
	"github.com/mohammed-shakir/geocached/internal/hotness"
)

type Sizer interface{ Size() int }

type Options struct {
	// Threshold is the decayed score at which a cell is logged as hot.
	// Zero disables the log.
	Threshold float64
	// Sample is the fraction of cells, picked by hash, that may log.
	Sample float64
	Logger  zerolog.Logger
}

type WithMetrics struct {
	inner hotness.Interface
	opts  Options
}

var _ hotness.Interface = (*WithMetrics)(nil)

func New(inner hotness.Interface, opts Options) *WithMetrics {
	return &WithMetrics{inner: inner, opts: opts}
}

func (w *WithMetrics) Inc(cell string) {
	w.inner.Inc(cell)
	if w.opts.Threshold > 0 {
		score := w.inner.Score(cell)
		if score >= w.opts.Threshold && shouldLog(w.opts.Sample, cell) {
			w.opts.Logger.Info().
				Str("event", "hotness_threshold").
				Str("cell", cell).
				Float64("score", score).
				Msg("hot cell above threshold")
		}
	}
	w.report()
}

func (w *WithMetrics) Score(cell string) float64 {
	return w.inner.Score(cell)
}

func (w *WithMetrics) Reset(cells ...string) {
	w.inner.Reset(cells...)
	w.report()
}

// Top forwards to the wrapped tracker when it can rank cells.
func (w *WithMetrics) Top(n int) []hotness.Scored {
	if r, ok := w.inner.(hotness.Ranker); ok {
		return r.Top(n)
	}
	return nil
}

func (w *WithMetrics) report() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotCells(s.Size())
	}
}

func shouldLog(sample float64, cell string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000 // 0.01 => 100/10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	return xxhash.Sum64String(cell)%denom < threshold
}
