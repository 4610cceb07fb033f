// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ban

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// # Ban Cache

// Cache answers ban checks from an in-memory snapshot of the ban table.
//
// # Concurrency
//
// Lookups take a read lock on the snapshot. Refreshes are single-flight:
// a dedicated refresh mutex ensures only one goroutine queries the store
// while every other caller answers from the current snapshot.
type Cache struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	banned  map[string]struct{}
	primed  bool
	checked time.Time

	refreshMu sync.Mutex
}

// NewCache creates a ban cache over the given store. The snapshot is loaded
// lazily on the first lookup and re-queried at most once per interval.
func NewCache(store Store, interval time.Duration, logger *slog.Logger) *Cache {
	return NewCacheWithClock(store, interval, logger, time.Now)
}

// NewCacheWithClock creates a Cache with an injected clock for tests.
func NewCacheWithClock(store Store, interval time.Duration, logger *slog.Logger, now func() time.Time) *Cache {
	return &Cache{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      now,
		banned:   make(map[string]struct{}),
	}
}

/*
IsBanned reports whether the given address is globally banned.

Description: Triggers an on-demand snapshot refresh when the current one is
older than the refresh interval, then matches the address against the
snapshot: the exact value plus, for IPv4 dotted-quad addresses, the /16 and
/24 range prefixes. Store failures never fail the check; the previous
snapshot keeps answering until the store recovers.

Parameters:
  - ctx: context.Context
  - address: Remote address of the connection being checked

Returns:
  - bool: true when the address (or an enclosing range) is banned
*/
func (cache *Cache) IsBanned(ctx context.Context, address string) bool {
	cache.maybeRefresh(ctx)

	cache.mu.RLock()
	defer cache.mu.RUnlock()

	for _, key := range lookupKeys(address) {
		if _, found := cache.banned[key]; found {
			return true
		}
	}
	return false
}

// Refresh forces an immediate snapshot reload, bypassing the interval. The
// admin surface calls this after mutating the ban table out of band.
func (cache *Cache) Refresh(ctx context.Context) error {
	cache.refreshMu.Lock()
	defer cache.refreshMu.Unlock()
	return cache.reload(ctx)
}

/*
AddBan persists a new ban and applies it to the snapshot immediately.

Description: Write-through update. The store insert happens first; only a
successful insert mutates the snapshot, so the cache never claims a ban the
table does not hold.

Parameters:
  - ctx: context.Context
  - ban: *Ban (CreatedAt is stamped if zero)

Returns:
  - error: Store failures, including apperr.Conflict for duplicates
*/
func (cache *Cache) AddBan(ctx context.Context, ban *Ban) error {
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = cache.now()
	}

	if err := cache.store.AddBan(ctx, ban); err != nil {
		return err
	}

	cache.mu.Lock()
	cache.banned[ban.Address] = struct{}{}
	cache.mu.Unlock()

	return nil
}

/*
RemoveBan deletes a ban and drops it from the snapshot immediately.

Parameters:
  - ctx: context.Context
  - address: Exact banned value to remove

Returns:
  - error: apperr.NotFound when no such ban exists, or store failures
*/
func (cache *Cache) RemoveBan(ctx context.Context, address string) error {
	if err := cache.store.RemoveBan(ctx, address); err != nil {
		return err
	}

	cache.mu.Lock()
	delete(cache.banned, address)
	cache.mu.Unlock()

	return nil
}

// maybeRefresh reloads the snapshot when it is stale. Staleness is measured
// from the last refresh ATTEMPT, successful or not, so a down store costs at
// most one query per interval instead of one per connection.
func (cache *Cache) maybeRefresh(ctx context.Context) {
	cache.mu.RLock()
	fresh := cache.primed && cache.now().Sub(cache.checked) < cache.interval
	cache.mu.RUnlock()

	if fresh {
		return
	}

	cache.refreshMu.Lock()
	defer cache.refreshMu.Unlock()

	// Double-check after acquiring the refresh lock: another goroutine may
	// have completed the reload while this one was waiting.
	cache.mu.RLock()
	fresh = cache.primed && cache.now().Sub(cache.checked) < cache.interval
	cache.mu.RUnlock()
	if fresh {
		return
	}

	if err := cache.reload(ctx); err != nil {
		cache.logger.WarnContext(ctx, "ban_cache_refresh_failed",
			slog.Any("error", err),
		)
	}
}

// reload queries the store and swaps the snapshot. Callers must hold
// refreshMu. The attempt timestamp is recorded even on failure.
func (cache *Cache) reload(ctx context.Context) error {
	attemptedAt := cache.now()

	bans, err := cache.store.ListBans(ctx)
	if err != nil {
		// Keep the stale snapshot but advance the attempt clock.
		cache.mu.Lock()
		cache.primed = true
		cache.checked = attemptedAt
		cache.mu.Unlock()
		return err
	}

	snapshot := make(map[string]struct{}, len(bans))
	for _, ban := range bans {
		snapshot[ban.Address] = struct{}{}
	}

	cache.mu.Lock()
	cache.banned = snapshot
	cache.primed = true
	cache.checked = attemptedAt
	cache.mu.Unlock()

	return nil
}

// # Address Matching

// lookupKeys expands a connection address into the snapshot keys it can
// match: the address itself and, for IPv4 dotted quads, its /16 and /24
// range prefixes. Anything that is not four dot-separated parts matches
// exactly only.
func lookupKeys(address string) []string {
	parts := strings.Split(address, ".")
	if len(parts) != 4 {
		return []string{address}
	}
	return []string{
		address,
		strings.Join(parts[:2], "."),
		strings.Join(parts[:3], "."),
	}
}
