package pricing

import (
	"math"
	"testing"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

func swapIn(ts uint64, in, out float64) domain.LedgerEvent {
	return domain.LedgerEvent{Kind: domain.KindSwapIn, Timestamp: ts, AmountIn: in, AmountOut: out}
}

func swapOut(ts uint64, in, out float64) domain.LedgerEvent {
	return domain.LedgerEvent{Kind: domain.KindSwapOut, Timestamp: ts, AmountIn: in, AmountOut: out}
}

func TestZeroInputDropped(t *testing.T) {
	a := New(DefaultCapacity, nil)

	ev1 := swapIn(1000, 100, 50)
	ev2 := swapIn(1001, 0, 10)
	if !a.RecordSwap(&ev1) {
		t.Fatal("valid swap rejected")
	}
	if a.RecordSwap(&ev2) {
		t.Fatal("zero-input swap accepted")
	}

	points := a.Points()
	if len(points) != 1 {
		t.Fatalf("expected exactly 1 point, got %d", len(points))
	}
	if points[0].Price != 0.5 {
		t.Errorf("price = %v, want 0.5", points[0].Price)
	}

	// Nothing non-finite may ever enter the series.
	for _, p := range points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			t.Errorf("non-finite price in series: %v", p.Price)
		}
	}
}

func TestSwapOrientation(t *testing.T) {
	a := New(DefaultCapacity, nil)

	// 100 counter in -> 50 base out: 0.5 base per counter.
	in := swapIn(1, 100, 50)
	a.RecordSwap(&in)
	// 50 base in -> 100 counter out: still 0.5 base per counter.
	out := swapOut(2, 50, 100)
	a.RecordSwap(&out)

	points := a.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Price != points[1].Price {
		t.Errorf("orientation not normalized: %v vs %v", points[0].Price, points[1].Price)
	}

	// SwapOut with zero counter output has no defined price.
	bad := swapOut(3, 50, 0)
	if a.RecordSwap(&bad) {
		t.Error("zero-denominator swap-out accepted")
	}
}

func TestBoundedSeries(t *testing.T) {
	a := New(DefaultCapacity, nil)

	for i := 0; i < 600; i++ {
		ev := swapIn(uint64(i), 1, float64(i+1))
		a.RecordSwap(&ev)
	}

	points := a.Points()
	if len(points) != DefaultCapacity {
		t.Fatalf("series length = %d, want %d", len(points), DefaultCapacity)
	}
	// First surviving point is the 101st input (index 100, price 101).
	if points[0].Price != 101 {
		t.Errorf("first point price = %v, want 101 (101st input)", points[0].Price)
	}
	if points[len(points)-1].Price != 600 {
		t.Errorf("last point price = %v, want 600", points[len(points)-1].Price)
	}
	// Order preserved.
	for i := 1; i < len(points); i++ {
		if points[i].Price != points[i-1].Price+1 {
			t.Fatalf("insertion order broken at %d", i)
		}
	}
}

func TestStatistics(t *testing.T) {
	a := New(DefaultCapacity, nil)
	for i, price := range []float64{10, 20, 5, 15} {
		a.Append(domain.PricePoint{Timestamp: uint64(i), Price: price})
	}

	stats := a.Stats()
	if stats.High != 20 {
		t.Errorf("high = %v, want 20", stats.High)
	}
	if stats.Low != 5 {
		t.Errorf("low = %v, want 5", stats.Low)
	}
	if stats.Average != 12.5 {
		t.Errorf("average = %v, want 12.5", stats.Average)
	}
	if stats.ChangePercent != 50 {
		t.Errorf("changePercent = %v, want 50", stats.ChangePercent)
	}
	if stats.SampleCount != 4 {
		t.Errorf("sampleCount = %v, want 4", stats.SampleCount)
	}
}

func TestChangePercentNeedsTwoPoints(t *testing.T) {
	a := New(DefaultCapacity, nil)
	a.Append(domain.PricePoint{Timestamp: 1, Price: 42})

	if got := a.Stats().ChangePercent; got != 0 {
		t.Errorf("changePercent with 1 point = %v, want 0", got)
	}
}

func TestBackfillSynthesizesFiller(t *testing.T) {
	a := New(DefaultCapacity, nil)
	a.Backfill([]domain.PricePoint{
		{Timestamp: 10000, Price: 2.5},
		{Timestamp: 10060, Price: 3.0},
	})

	points := a.Points()
	if len(points) != MinChartPoints {
		t.Fatalf("expected %d points after filler, got %d", MinChartPoints, len(points))
	}

	synthetic := 0
	for i, p := range points {
		if p.Synthetic {
			synthetic++
			if p.Price != 2.5 {
				t.Errorf("filler price = %v, want earliest real price 2.5", p.Price)
			}
			if i >= len(points)-2 {
				t.Error("filler must precede real samples")
			}
		}
		if i > 0 && p.Timestamp < points[i-1].Timestamp {
			t.Errorf("timestamps not ascending at %d", i)
		}
	}
	if synthetic != MinChartPoints-2 {
		t.Errorf("synthetic count = %d, want %d", synthetic, MinChartPoints-2)
	}

	// Real samples keep their flag off.
	if points[len(points)-1].Synthetic || points[len(points)-2].Synthetic {
		t.Error("real samples flagged synthetic")
	}
}

func TestBackfillEmptyStaysEmpty(t *testing.T) {
	a := New(DefaultCapacity, nil)
	a.Backfill(nil)
	if a.Len() != 0 {
		t.Errorf("no known price, nothing to synthesize; len = %d", a.Len())
	}
}
