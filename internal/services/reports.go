package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"invoicedesk/internal/cache"
	"invoicedesk/internal/core"
)

const reportCacheSize = 500

// ReportCache caches report reads per session and collapses concurrent
// identical fetches into one API call. Reports are shared API state, so a
// mutation by any session drops the cached reports of every session.
type ReportCache struct {
	yearly  *cache.LRUCache[[]core.YearlyReport]
	vendors *cache.LRUCache[[]core.VendorReport]
	group   singleflight.Group

	// gen counts invalidations. A fetch stores its result only when gen
	// is unchanged since it started.
	mu  sync.Mutex
	gen uint64
}

// NewReportCache registers its caches with m for periodic cleanup.
func NewReportCache(ttl time.Duration, m *cache.Manager) *ReportCache {
	rc := &ReportCache{
		yearly:  cache.NewLRUCache[[]core.YearlyReport](reportCacheSize, ttl),
		vendors: cache.NewLRUCache[[]core.VendorReport](reportCacheSize, ttl),
	}
	if m != nil {
		m.Register(rc.yearly)
		m.Register(rc.vendors)
	}
	return rc
}

func (rc *ReportCache) Yearly(ctx context.Context, scope string, fetch func(context.Context) ([]core.YearlyReport, error)) ([]core.YearlyReport, error) {
	key := scope + "|yearly"
	if rows, ok := rc.yearly.Get(key); ok {
		return rows, nil
	}
	gen := rc.generation()
	v, err, _ := rc.group.Do(flightKey(gen, key), func() (any, error) {
		rows, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		rc.store(gen, func() { rc.yearly.Set(key, rows) })
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.YearlyReport), nil
}

func (rc *ReportCache) Vendors(ctx context.Context, scope string, year int, fetch func(context.Context, int) ([]core.VendorReport, error)) ([]core.VendorReport, error) {
	key := scope + "|vendors|" + strconv.Itoa(year)
	if rows, ok := rc.vendors.Get(key); ok {
		return rows, nil
	}
	gen := rc.generation()
	v, err, _ := rc.group.Do(flightKey(gen, key), func() (any, error) {
		rows, err := fetch(context.WithoutCancel(ctx), year)
		if err != nil {
			return nil, err
		}
		rc.store(gen, func() { rc.vendors.Set(key, rows) })
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.VendorReport), nil
}

// Invalidate drops every cached report. Fetches already in flight finish
// for their callers but no longer populate the cache, and later callers
// start a fresh fetch instead of joining them.
func (rc *ReportCache) Invalidate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gen++
	rc.yearly.DeletePrefix("")
	rc.vendors.DeletePrefix("")
}

func (rc *ReportCache) generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gen
}

func (rc *ReportCache) store(gen uint64, set func()) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.gen == gen {
		set()
	}
}

func flightKey(gen uint64, key string) string {
	return strconv.FormatUint(gen, 10) + "#" + key
}

// Stats reports combined cache counters.
func (rc *ReportCache) Stats() cache.Stats {
	y, v := rc.yearly.Stats(), rc.vendors.Stats()
	return cache.Stats{Size: y.Size + v.Size, Hits: y.Hits + v.Hits, Misses: y.Misses + v.Misses}
}
