package configcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_configcache_hits_total",
		Help: "Total number of configcache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_configcache_misses_total",
		Help: "Total number of configcache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actioncable_configcache_sets_total",
		Help: "Total number of configcache sets",
	})
)
