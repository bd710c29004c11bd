// Package pricing derives a bounded price time-series from swap events
// and keeps rolling statistics over it.
package pricing

import (
	"log/slog"
	"sync"

	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/metrics"
)

const (
	// DefaultCapacity bounds the series; oldest points evict first.
	DefaultCapacity = 500

	// MinChartPoints is the floor below which filler points are
	// synthesized after backfill so charts are not empty.
	MinChartPoints = 10
)

// Aggregator maintains the price series and its statistics. Safe for
// concurrent use; stats are recomputed synchronously on every mutation
// (an O(n) scan over at most capacity points).
type Aggregator struct {
	mu       sync.RWMutex
	capacity int
	points   []domain.PricePoint
	stats    domain.PriceStatistics
	log      *slog.Logger
}

// New creates an aggregator with the given capacity. capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int, log *slog.Logger) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{capacity: capacity, log: log}
}

// SampleFromSwap derives an oriented price (base token per counter
// token) from a swap event. ok is false when the denominator is zero or
// either amount is negative; such swaps must not enter the series.
func SampleFromSwap(ev *domain.LedgerEvent) (price float64, ok bool) {
	if ev.AmountIn < 0 || ev.AmountOut < 0 {
		return 0, false
	}
	switch ev.Kind {
	case domain.KindSwapIn:
		// Counter in, base out.
		if ev.AmountIn == 0 {
			return 0, false
		}
		return ev.AmountOut / ev.AmountIn, true
	case domain.KindSwapOut:
		// Base in, counter out: invert to keep orientation consistent.
		if ev.AmountOut == 0 {
			return 0, false
		}
		return ev.AmountIn / ev.AmountOut, true
	default:
		return 0, false
	}
}

// RecordSwap appends a sample derived from a swap event. Malformed
// swaps (zero denominator) are dropped and counted, never appended, so
// no NaN or Inf can enter the series.
func (a *Aggregator) RecordSwap(ev *domain.LedgerEvent) bool {
	price, ok := SampleFromSwap(ev)
	if !ok {
		metrics.PriceSamplesDropped.Inc()
		a.log.Debug("dropping malformed swap sample",
			"kind", ev.Kind, "in", ev.AmountIn, "out", ev.AmountOut)
		return false
	}

	a.Append(domain.PricePoint{Timestamp: ev.Timestamp, Price: price})
	return true
}

// Append adds a point at the right edge, evicting from the left at
// capacity, and recomputes statistics.
func (a *Aggregator) Append(p domain.PricePoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.points = append(a.points, p)
	if len(a.points) > a.capacity {
		// Shift rather than reslice so the backing array doesn't pin
		// evicted points forever.
		copy(a.points, a.points[len(a.points)-a.capacity:])
		a.points = a.points[:a.capacity]
	}
	a.recompute()
}

// Backfill replaces the series with historical samples (oldest first),
// then pads sparse series with synthetic filler and recomputes stats.
func (a *Aggregator) Backfill(points []domain.PricePoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(points) > a.capacity {
		points = points[len(points)-a.capacity:]
	}
	a.points = append(a.points[:0], points...)
	a.fillSparse()
	a.recompute()
}

// fillSparse prepends evenly spaced synthetic points at the earliest
// known price until MinChartPoints is reached. Filler is flagged so
// consumers can tell it from real samples, and it sits leftmost so
// capacity eviction removes it first.
func (a *Aggregator) fillSparse() {
	n := len(a.points)
	if n == 0 || n >= MinChartPoints {
		return
	}

	earliest := a.points[0]
	missing := MinChartPoints - n

	// Space filler one step apart, stepping back from the earliest
	// real sample. Step size mirrors the observed sample spacing when
	// there are two or more points, else one minute.
	var step uint64 = 60
	if n >= 2 {
		if span := a.points[n-1].Timestamp - earliest.Timestamp; span > 0 {
			step = span / uint64(n-1)
		}
	}

	filler := make([]domain.PricePoint, missing, missing+n)
	for i := 0; i < missing; i++ {
		back := uint64(missing-i) * step
		ts := uint64(0)
		if earliest.Timestamp > back {
			ts = earliest.Timestamp - back
		}
		filler[i] = domain.PricePoint{Timestamp: ts, Price: earliest.Price, Synthetic: true}
	}
	a.points = append(filler, a.points...)
}

// Points returns a copy of the current series, oldest first.
func (a *Aggregator) Points() []domain.PricePoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.PricePoint, len(a.points))
	copy(out, a.points)
	return out
}

// Stats returns the statistics over the current window.
func (a *Aggregator) Stats() domain.PriceStatistics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Len returns the current series length.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.points)
}

// recompute rescans the whole series. Caller holds a.mu.
func (a *Aggregator) recompute() {
	metrics.PriceSeriesLength.Set(float64(len(a.points)))

	if len(a.points) == 0 {
		a.stats = domain.PriceStatistics{}
		return
	}

	stats := domain.PriceStatistics{
		High:        a.points[0].Price,
		Low:         a.points[0].Price,
		SampleCount: len(a.points),
	}

	var sum float64
	for _, p := range a.points {
		if p.Price > stats.High {
			stats.High = p.Price
		}
		if p.Price < stats.Low {
			stats.Low = p.Price
		}
		sum += p.Price
	}
	stats.Average = sum / float64(len(a.points))

	first := a.points[0].Price
	last := a.points[len(a.points)-1].Price
	if len(a.points) >= 2 && first != 0 {
		stats.ChangePercent = (last - first) / first * 100
	}

	a.stats = stats
}
