package tracker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "wikidata"

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackCacheHit(provider)
	tr.TrackCacheMiss(provider)
	tr.TrackAPISuccess(provider)
	tr.TrackAPIFailure(provider)
	tr.TrackAPIZero(provider)
	tr.TrackRateLimited(provider)
	tr.TrackRateLimited(provider)

	stats = tr.Snapshot()
	pStats, ok := stats[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}

	if pStats.CacheHits != 1 {
		t.Errorf("Expected 1 CacheHit, got %d", pStats.CacheHits)
	}
	if pStats.CacheMisses != 1 {
		t.Errorf("Expected 1 CacheMiss, got %d", pStats.CacheMisses)
	}
	if pStats.APISuccess != 1 {
		t.Errorf("Expected 1 APISuccess, got %d", pStats.APISuccess)
	}
	if pStats.APIFailures != 1 {
		t.Errorf("Expected 1 APIFailure, got %d", pStats.APIFailures)
	}
	if pStats.APIZeroResult != 1 {
		t.Errorf("Expected 1 APIZeroResult, got %d", pStats.APIZeroResult)
	}
	if pStats.RateLimited != 2 {
		t.Errorf("Expected 2 RateLimited, got %d", pStats.RateLimited)
	}
}

func TestTracker_Prometheus(t *testing.T) {
	tr := New()
	reg := prometheus.NewRegistry()
	if err := tr.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tr.TrackCacheHit("wikidata")
	tr.TrackCacheHit("wikidata")
	tr.TrackAPISuccess("wikipedia")

	if got := testutil.ToFloat64(tr.requests.WithLabelValues("wikidata", OutcomeCacheHit)); got != 2 {
		t.Errorf("cache_hit counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(tr.requests.WithLabelValues("wikipedia", OutcomeSuccess)); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}

	// Double registration is rejected by the registry
	if err := tr.Register(reg); err == nil {
		t.Error("expected error registering twice")
	}
}
