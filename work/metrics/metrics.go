package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the IPTV client backend. All collectors register
// on the default registry at init via promauto and are served on /metrics.
var (
	// UpstreamRequests counts player_api.php calls by action and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_upstream_requests_total",
		Help: "Total upstream API requests by action and status",
	}, []string{"action", "status"})

	// CacheHits counts upstream responses served from the TTL cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_cache_hits_total",
		Help: "Total upstream responses served from cache",
	})

	// CacheMisses counts upstream responses that required a network fetch.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_cache_misses_total",
		Help: "Total upstream responses fetched from the provider",
	})

	// PlaybackSessionsActive tracks live playback sessions.
	PlaybackSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamview_playback_sessions_active",
		Help: "Number of playback sessions currently registered",
	})

	// PlaybackErrors counts playback failures by error class.
	PlaybackErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_playback_errors_total",
		Help: "Total playback errors by type",
	}, []string{"type"})

	// PlaybackRetries counts manifest reload attempts across all sessions.
	PlaybackRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_playback_retries_total",
		Help: "Total playback manifest retry attempts",
	})

	// AuthAttempts counts login attempts by outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_auth_attempts_total",
		Help: "Total login attempts by result",
	}, []string{"result"})

	// ActiveProfileSwitches counts profile activations.
	ActiveProfileSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_profile_switches_total",
		Help: "Total profile activations",
	})
)
