package domain

// PricePoint is one sample of the derived price series.
type PricePoint struct {
	Timestamp uint64  `json:"timestamp" db:"ts"`
	Price     float64 `json:"price" db:"price"`

	// Synthetic marks filler points generated to pad a sparse series
	// after backfill. They carry the earliest known real price.
	Synthetic bool `json:"synthetic,omitempty" db:"synthetic"`
}

// PriceStatistics summarizes the current price window. Recomputed on
// every series mutation; never updated incrementally.
type PriceStatistics struct {
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Average       float64 `json:"average"`
	ChangePercent float64 `json:"change_percent"` // (last-first)/first*100, 0 under 2 points
	SampleCount   int     `json:"sample_count"`
}
