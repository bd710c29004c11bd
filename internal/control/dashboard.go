// Package control wires the derived-state core together and manages
// its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/ticketdash/internal/bus"
	"github.com/vietddude/ticketdash/internal/cache"
	"github.com/vietddude/ticketdash/internal/core/config"
	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/health"
	"github.com/vietddude/ticketdash/internal/infra/ledger"
	redisclient "github.com/vietddude/ticketdash/internal/infra/redis"
	"github.com/vietddude/ticketdash/internal/infra/storage/postgres"
	"github.com/vietddude/ticketdash/internal/lifecycle"
	"github.com/vietddude/ticketdash/internal/pricing"
	"github.com/vietddude/ticketdash/internal/refresh"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	Ledger   config.LedgerConfig
	Refresh  config.RefreshConfig
	Redis    redisclient.Config
	Database postgres.Config
}

// Dashboard is the main application struct that manages the
// derived-state core's lifecycle.
type Dashboard struct {
	cfg Config
	log *slog.Logger

	client ledger.Client
	store  *cache.Store
	agg    *pricing.Aggregator
	bus    *bus.Bus

	redisClient *redisclient.Client
	mirror      *redisclient.Mirror
	db          *postgres.DB
	ticketRepo  *postgres.TicketRepo
	priceRepo   *postgres.PriceRepo

	orch         *refresh.Orchestrator
	feed         *ledger.SwapFeed
	healthServer *health.Server
}

// NewDashboard creates a Dashboard instance with all dependencies
// initialized. Redis and Postgres are optional; left unconfigured, the
// core runs purely in memory.
func NewDashboard(cfg Config) (*Dashboard, error) {
	log := slog.Default()

	d := &Dashboard{
		cfg:    cfg,
		log:    log,
		client: ledger.NewHTTPClient(cfg.Ledger.Endpoint, cfg.Ledger.RequestTimeout.Std()),
		store:  cache.NewStore(),
		agg:    pricing.New(cfg.Refresh.SeriesCapacity, log),
		bus:    bus.New(log),
	}

	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		d.redisClient = redisClient
		d.mirror = redisclient.NewMirror(redisClient, cfg.Ledger.Account)
		log.Info("Snapshot mirroring enabled")
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		d.db = db
		d.ticketRepo = postgres.NewTicketRepo(db)
		d.priceRepo = postgres.NewPriceRepo(db)
		log.Info("Derived-state archiving enabled")
	}

	return d, nil
}

// Start resolves protocol constants, performs warm-up, and launches the
// periodic refreshers, swap feed and health server.
func (d *Dashboard) Start(ctx context.Context) error {
	// Cycle unit is a protocol constant, never hardcoded client-side.
	unit, err := d.client.CycleUnitSeconds(ctx)
	if err != nil {
		return fmt.Errorf("resolve cycle unit: %w", err)
	}
	reducer := lifecycle.NewReducer(unit, d.log)

	var mirror refresh.Mirror
	if d.mirror != nil {
		mirror = d.mirror
	}
	var archive refresh.Archive
	if d.db != nil {
		archive = &pgArchive{tickets: d.ticketRepo, prices: d.priceRepo}
	}

	d.orch = refresh.NewOrchestrator(refresh.Config{
		Account:         d.cfg.Ledger.Account,
		BalanceInterval: d.cfg.Refresh.BalanceInterval.Std(),
		PriceInterval:   d.cfg.Refresh.PriceInterval.Std(),
		LookbackBlocks:  d.cfg.Refresh.LookbackBlocks,
	}, d.client, d.store, d.agg, reducer, d.bus, mirror, archive, d.log)

	d.warmStart(ctx)

	// First full fetch before timers take over.
	d.orch.RefreshAll(ctx)
	if err := d.orch.BackfillPrices(ctx); err != nil {
		d.log.Warn("price backfill failed, charts start sparse", "error", err)
	}

	if err := d.orch.Start(ctx); err != nil {
		return err
	}

	d.feed = ledger.NewSwapFeed(d.client, d.cfg.Refresh.SwapPollIntvl.Std(), func(ev domain.LedgerEvent) {
		d.orch.OnSwapEvent(ctx, ev)
	}, d.log)
	go func() {
		if err := d.feed.Start(ctx); err != nil {
			d.log.Error("swap feed stopped", "error", err)
		}
	}()

	monitor := health.NewMonitor(d.client, d.store, d.agg)
	d.healthServer = health.NewServer(monitor, d.cfg.Port)
	go func() {
		if err := d.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("health server stopped", "error", err)
		}
	}()

	d.log.Info("Dashboard core started",
		"account", d.cfg.Ledger.Account,
		"balance_interval", d.cfg.Refresh.BalanceInterval.Std(),
		"price_interval", d.cfg.Refresh.PriceInterval.Std())
	return nil
}

// warmStart seeds stores from the mirror or archive so the first reads
// serve data while the initial fetch is still in flight. Staleness
// stays visible through the seeded snapshot's own LastUpdated.
func (d *Dashboard) warmStart(ctx context.Context) {
	if d.mirror != nil {
		if snap, err := d.mirror.LoadSnapshot(ctx); err == nil {
			d.store.Seed(snap)
			d.log.Info("Seeded snapshot from mirror", "last_updated", snap.LastUpdated)
		} else if !errors.Is(err, redisclient.ErrNotFound) {
			d.log.Warn("Loading mirrored snapshot failed", "error", err)
		}

		if points, err := d.mirror.LoadSeries(ctx); err == nil && len(points) > 0 {
			d.agg.Backfill(points)
			d.log.Info("Seeded price series from mirror", "points", len(points))
			return
		}
	}

	if d.priceRepo != nil {
		points, err := d.priceRepo.LoadRecent(ctx, d.cfg.Refresh.SeriesCapacity)
		if err != nil {
			d.log.Warn("Loading archived price series failed", "error", err)
			return
		}
		if len(points) > 0 {
			d.agg.Backfill(points)
			d.log.Info("Seeded price series from archive", "points", len(points))
		}
	}
}

// Stop shuts everything down gracefully.
func (d *Dashboard) Stop(ctx context.Context) error {
	if d.feed != nil {
		d.feed.Stop()
	}
	if d.orch != nil {
		d.orch.Stop()
	}
	if d.healthServer != nil {
		if err := d.healthServer.Stop(ctx); err != nil {
			d.log.Warn("health server shutdown failed", "error", err)
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.log.Warn("redis close failed", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.log.Warn("db close failed", "error", err)
		}
	}
	return d.client.Close()
}

// Bus exposes the broadcast bus for UI subscribers.
func (d *Dashboard) Bus() *bus.Bus {
	return d.bus
}

// Snapshot returns a copy of the current cache snapshot.
func (d *Dashboard) Snapshot() domain.CacheSnapshot {
	return d.store.Snapshot()
}

// History returns the latest reconstructed ticket lifecycle result.
func (d *Dashboard) History() lifecycle.Result {
	return d.orch.History()
}

// PriceStats returns rolling statistics over the price series.
func (d *Dashboard) PriceStats() domain.PriceStatistics {
	return d.agg.Stats()
}

// PricePoints returns a copy of the price series for charting.
func (d *Dashboard) PricePoints() []domain.PricePoint {
	return d.agg.Points()
}

// OnTransactionSuccess forwards a confirmed mutation to the refresh
// orchestrator's invalidation policy.
func (d *Dashboard) OnTransactionSuccess(ctx context.Context, txType domain.TxType) error {
	return d.orch.OnTransactionSuccess(ctx, txType)
}

// pgArchive adapts the postgres repos to the orchestrator's Archive.
type pgArchive struct {
	tickets *postgres.TicketRepo
	prices  *postgres.PriceRepo
}

func (a *pgArchive) ReplaceTickets(ctx context.Context, account string, records []domain.TicketRecord) error {
	return a.tickets.ReplaceTickets(ctx, account, records)
}

func (a *pgArchive) SavePricePoints(ctx context.Context, points []domain.PricePoint) error {
	return a.prices.SavePricePoints(ctx, points)
}
