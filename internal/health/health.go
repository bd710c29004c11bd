// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full health report.
type Report struct {
	Status          SystemStatus `json:"status"`
	LedgerReachable bool         `json:"ledger_reachable"`
	LedgerHead      uint64       `json:"ledger_head,omitempty"`
	SnapshotAgeSecs float64      `json:"snapshot_age_seconds"`
	SeriesLength    int          `json:"series_length"`
}
