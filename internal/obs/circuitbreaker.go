// Package obs holds the ambient observability stack shared by every
// backend connector: circuit breaking, Prometheus metrics, and the
// metrics HTTP server.
package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Request result labels for Prometheus metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Default circuit breaker thresholds, applied to every backend's
// breaker unless Configure sets other settings for that backend.
const (
	DefaultMinRequests     = 5
	DefaultFailureRatio    = 0.6
	DefaultOpenTimeout     = 15 * time.Second
	DefaultHalfOpenMaxReqs = 3
	DefaultCountInterval   = 10 * time.Second
)

// ServiceSettings holds circuit breaker configuration for one backend.
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

func defaultSettings() ServiceSettings {
	return ServiceSettings{
		MinRequests:     DefaultMinRequests,
		FailureRatio:    DefaultFailureRatio,
		OpenTimeout:     DefaultOpenTimeout,
		HalfOpenMaxReqs: DefaultHalfOpenMaxReqs,
		CountInterval:   DefaultCountInterval,
	}
}

// BreakerMetrics holds the Prometheus metrics shared across every
// backend's circuit breaker.
type BreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalBreakerMetrics *BreakerMetrics
	breakerMetricsOnce   sync.Once
)

func initBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		globalBreakerMetrics = &BreakerMetrics{
			state: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "sqlfed_circuit_breaker_state",
				Help: "Circuit breaker state per backend (0=closed, 1=open, 2=half_open)",
			}, []string{"backend"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sqlfed_circuit_breaker_requests_total",
				Help: "Total requests observed by each backend's circuit breaker",
			}, []string{"backend", "result"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sqlfed_circuit_breaker_failures_total",
				Help: "Total failures observed by each backend's circuit breaker",
			}, []string{"backend"}),
		}
	})
}

// RecordRequest records a request outcome for a backend's breaker.
func (m *BreakerMetrics) RecordRequest(backend string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(backend).Inc()
	}
	m.requests.WithLabelValues(backend, result).Inc()
}

// BreakerManager owns one gobreaker.CircuitBreaker per backend vendor
// type ("postgres", "sqlite", "snowflake", "odbc", "flightsql"),
// created lazily so adding a new backend never requires touching this
// package.
type BreakerManager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings map[string]ServiceSettings
	metrics  *BreakerMetrics
	passthrough bool
}

// NewBreakerManager creates a manager whose breakers use defaultSettings
// unless overridden with Configure.
func NewBreakerManager() *BreakerManager {
	initBreakerMetrics()
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: make(map[string]ServiceSettings),
		metrics:  globalBreakerMetrics,
	}
}

// NewPassthroughBreakerManager returns a manager whose breakers never
// trip, for tests that want to exercise a connector without circuit
// breaking interfering.
func NewPassthroughBreakerManager() *BreakerManager {
	initBreakerMetrics()
	return &BreakerManager{
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		settings:    make(map[string]ServiceSettings),
		metrics:     globalBreakerMetrics,
		passthrough: true,
	}
}

// Configure overrides a backend's breaker settings. Must be called
// before the backend's first Execute call.
func (m *BreakerManager) Configure(backend string, s ServiceSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[backend] = s
}

func (m *BreakerManager) breakerFor(backend string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[backend]; ok {
		return b
	}

	if m.passthrough {
		b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        backend + "_passthrough",
			MaxRequests: 1000,
			Timeout:     time.Millisecond,
			ReadyToTrip: func(gobreaker.Counts) bool { return false },
		})
		m.breakers[backend] = b
		return b
	}

	s, ok := m.settings[backend]
	if !ok {
		s = defaultSettings()
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        backend,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.metrics.state.WithLabelValues(backend).Set(stateValue(to))
		},
	})
	m.breakers[backend] = b
	m.metrics.state.WithLabelValues(backend).Set(stateValue(b.State()))
	return b
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Execute runs fn through backend's circuit breaker, recording the
// outcome in both the breaker's own tripping logic and the shared
// Prometheus counters.
func (m *BreakerManager) Execute(backend string, fn func() (any, error)) (any, error) {
	b := m.breakerFor(backend)
	result, err := b.Execute(fn)
	m.metrics.RecordRequest(backend, err == nil)
	return result, err
}

// Metrics returns the shared breaker metrics, for components that want
// to record requests that bypassed a breaker entirely (e.g. a cache
// hit in vectorsearch).
func (m *BreakerManager) Metrics() *BreakerMetrics {
	return m.metrics
}
