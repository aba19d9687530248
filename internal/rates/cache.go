package rates

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ledgersync/internal/currency"
	"ledgersync/internal/logger"
)

// Cache defaults.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMinRefresh = 5 * time.Minute
	failureExtension  = 10 * time.Minute
)

// Source yields a fresh rate table.
type Source interface {
	Fetch(ctx context.Context, currencies []currency.Code) (Table, error)
}

// CacheOptions tunes a Cache. Zero values take the defaults.
type CacheOptions struct {
	TTL        time.Duration
	MinRefresh time.Duration
	Now        func() time.Time
}

// Snapshot is the cached table with its bookkeeping.
type Snapshot struct {
	Rates     Table     `json:"rates"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Fallback  bool      `json:"fallback"`
}

// Cache holds the latest table. Concurrent refreshes share one fetch.
type Cache struct {
	source Source
	opts   CacheOptions
	group  singleflight.Group
	log    *zap.SugaredLogger

	mu          sync.RWMutex
	snap        Snapshot
	lastAttempt time.Time
}

// NewCache creates a Cache over source.
func NewCache(source Source, opts CacheOptions) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MinRefresh <= 0 {
		opts.MinRefresh = DefaultMinRefresh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{source: source, opts: opts, log: logger.Named("rates")}
}

// Rates returns the cached table, refreshing it first when absent or
// expired.
func (c *Cache) Rates(ctx context.Context) Snapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap.Rates != nil && c.opts.Now().Before(snap.ExpiresAt) {
		return snap
	}
	return c.Refresh(ctx)
}

// Refresh fetches a new table unless the previous attempt was less than
// MinRefresh ago. On failure an existing table is kept and its expiry pushed
// back; with no table yet the fallback rates are served.
func (c *Cache) Refresh(ctx context.Context) Snapshot {
	v, _, _ := c.group.Do("rates", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})
	return v.(Snapshot)
}

func (c *Cache) refresh(ctx context.Context) Snapshot {
	now := c.opts.Now()

	c.mu.Lock()
	if c.snap.Rates != nil && now.Sub(c.lastAttempt) < c.opts.MinRefresh {
		snap := c.snap
		c.mu.Unlock()
		return snap
	}
	c.lastAttempt = now
	c.mu.Unlock()

	table, err := c.source.Fetch(ctx, currency.All())

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.snap = Snapshot{Rates: table, FetchedAt: now, ExpiresAt: now.Add(c.opts.TTL)}
		c.log.Infow("Rates refreshed", "pairs", len(table))
	case c.snap.Rates != nil:
		c.snap.ExpiresAt = now.Add(failureExtension)
		c.log.Warnw("Rate refresh failed, keeping previous rates", "error", err, "expires_at", c.snap.ExpiresAt)
	default:
		c.snap = Snapshot{Rates: FallbackRates(), FetchedAt: now, ExpiresAt: now.Add(failureExtension), Fallback: true}
		c.log.Warnw("Rate refresh failed, using fallback rates", "error", err)
	}
	return c.snap
}

// Convert converts amount with the cached table.
func (c *Cache) Convert(ctx context.Context, amount float64, from, to currency.Code) float64 {
	if from == to {
		return amount
	}
	return Convert(c.Rates(ctx).Rates, amount, from, to)
}
