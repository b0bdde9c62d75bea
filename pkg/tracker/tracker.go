// Package tracker counts remote-call outcomes per provider (wikidata,
// overpass) so a run can be summarized at the end.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	APISuccess     int64
	APIFailures    int64
	Retries        int64
	CacheFallbacks int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackAPISuccess increments the success counter.
func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
}

// TrackAPIFailure increments the failure counter (after retries exhausted).
func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackRetry increments the retry counter (one per repeated attempt).
func (t *Tracker) TrackRetry(provider string) {
	atomic.AddInt64(&t.getStats(provider).Retries, 1)
}

// TrackCacheFallback increments the cache-fallback counter.
func (t *Tracker) TrackCacheFallback(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheFallbacks, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			APISuccess:     atomic.LoadInt64(&v.APISuccess),
			APIFailures:    atomic.LoadInt64(&v.APIFailures),
			Retries:        atomic.LoadInt64(&v.Retries),
			CacheFallbacks: atomic.LoadInt64(&v.CacheFallbacks),
		}
	}
	return result
}
