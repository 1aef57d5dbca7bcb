package tracker

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels used on the Prometheus counter.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeCacheMiss   = "cache_miss"
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeZeroResult  = "zero_result"
	OutcomeRateLimited = "rate_limited"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats

	requests *prometheus.CounterVec
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	CacheHits     int64
	CacheMisses   int64
	APISuccess    int64
	APIFailures   int64
	APIZeroResult int64
	RateLimited   int64
}

// New creates a new Tracker. Its Prometheus collectors are not registered; see Register.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikientity",
			Name:      "upstream_requests_total",
			Help:      "Upstream Wikidata requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}

// Register exposes the tracker's counters on reg.
func (t *Tracker) Register(reg prometheus.Registerer) error {
	return reg.Register(t.requests)
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

func (t *Tracker) inc(provider, outcome string, field *int64) {
	atomic.AddInt64(field, 1)
	t.requests.WithLabelValues(provider, outcome).Inc()
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	t.inc(provider, OutcomeCacheHit, &t.getStats(provider).CacheHits)
}

func (t *Tracker) TrackCacheMiss(provider string) {
	t.inc(provider, OutcomeCacheMiss, &t.getStats(provider).CacheMisses)
}

func (t *Tracker) TrackAPISuccess(provider string) {
	t.inc(provider, OutcomeSuccess, &t.getStats(provider).APISuccess)
}

func (t *Tracker) TrackAPIFailure(provider string) {
	t.inc(provider, OutcomeFailure, &t.getStats(provider).APIFailures)
}

// TrackAPIZero records a successful query that returned no rows.
func (t *Tracker) TrackAPIZero(provider string) {
	t.inc(provider, OutcomeZeroResult, &t.getStats(provider).APIZeroResult)
}

// TrackRateLimited records one HTTP 429 answer.
func (t *Tracker) TrackRateLimited(provider string) {
	t.inc(provider, OutcomeRateLimited, &t.getStats(provider).RateLimited)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:     atomic.LoadInt64(&v.CacheHits),
			CacheMisses:   atomic.LoadInt64(&v.CacheMisses),
			APISuccess:    atomic.LoadInt64(&v.APISuccess),
			APIFailures:   atomic.LoadInt64(&v.APIFailures),
			APIZeroResult: atomic.LoadInt64(&v.APIZeroResult),
			RateLimited:   atomic.LoadInt64(&v.RateLimited),
		}
	}
	return result
}
