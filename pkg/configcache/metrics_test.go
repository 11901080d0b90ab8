package configcache

import "testing"

func TestMetrics_Registration(t *testing.T) {
	if CacheHitsTotal == nil {
		t.Error("CacheHitsTotal not registered")
	}
	if CacheMissesTotal == nil {
		t.Error("CacheMissesTotal not registered")
	}
	if CacheSetsTotal == nil {
		t.Error("CacheSetsTotal not registered")
	}
}

func TestMetrics_CountersIncrement(t *testing.T) {
	CacheHitsTotal.Inc()
	CacheMissesTotal.Inc()
	CacheSetsTotal.Inc()
}
