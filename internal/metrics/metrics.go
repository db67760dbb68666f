package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PocketBase client metrics
var (
	// PocketBaseRequestDuration tracks upstream latency in seconds by method, route and status
	PocketBaseRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pocketbase_request_duration_seconds",
			Help:    "PocketBase request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// BackendOnline is 1 while the health probe reaches PocketBase
	BackendOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pocketbase_online",
			Help: "Whether the last PocketBase health check succeeded",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Leaderboard metrics
var (
	// LeaderboardRefreshDuration tracks how long a full board refresh takes
	LeaderboardRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaderboard_refresh_duration_seconds",
			Help:    "Leaderboard refresh duration in seconds by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// LeaderboardSubscribers tracks open leaderboard streams
	LeaderboardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaderboard_subscribers_current",
			Help: "Current number of leaderboard stream subscribers",
		},
	)

	// WebSocketConnectionsTotal tracks accepted WebSocket connections
	WebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connections accepted",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks API requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRateLimited tracks requests rejected by the rate limiter
	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total HTTP requests rejected by the rate limiter",
		},
	)
)

// ObservePocketBase matches pocketbase.Observer.
func ObservePocketBase(method, route string, status int, elapsed time.Duration) {
	PocketBaseRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// BreakerChanged records a transition reported by gobreaker state names.
func BreakerChanged(component string) func(from, to string) {
	return func(_, to string) {
		CircuitBreakerStateChanges.WithLabelValues(component, to).Inc()
		CircuitBreakerState.WithLabelValues(component).Set(breakerValue(to))
	}
}

func breakerValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// ObserveRefresh matches the leaderboard feed refresh hook.
func ObserveRefresh(elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LeaderboardRefreshDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// SetOnline mirrors the backend health state.
func SetOnline(online bool) {
	if online {
		BackendOnline.Set(1)
		return
	}
	BackendOnline.Set(0)
}
