package domain

import "time"

// Balances holds the two token balances of the watched account.
type Balances struct {
	TokenA float64 `json:"token_a"`
	TokenB float64 `json:"token_b"`
}

// PriceQuote is the latest pool-derived price with its fetch time.
type PriceQuote struct {
	Value       float64   `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

// PoolReserves is the current state of the swap pool, as reported by a
// point query. Price orientation is base per counter.
type PoolReserves struct {
	Base    float64 `json:"base"`
	Counter float64 `json:"counter"`
}

// RoleFlags carries ownership/permission bits the UI gates features on.
type RoleFlags struct {
	Owner    bool `json:"owner"`
	Operator bool `json:"operator"`
}

// CacheSnapshot is the cache store's unit of publication. Consumers get
// a copy and must never mutate it; only the refresh orchestrator writes.
// LastUpdated is set at write time so consumers can detect staleness.
type CacheSnapshot struct {
	Balances    Balances   `json:"balances"`
	Price       PriceQuote `json:"price"`
	LastUpdated time.Time  `json:"last_updated"`
}
