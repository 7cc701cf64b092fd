package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decode and fetch metrics
var (
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlfed_decode_errors_total",
		Help: "Total number of row-decode failures by error kind",
	}, []string{"kind", "backend"})

	RowsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlfed_rows_decoded_total",
		Help: "Total number of rows successfully decoded into canonical batches",
	}, []string{"backend"})

	VendorFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlfed_vendor_fetch_duration_ms",
		Help:    "Vendor round-trip latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"backend", "op"})
)

// Pool metrics
var (
	PoolConnectionsInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sqlfed_pool_connections_in_use",
		Help: "Number of connections currently checked out of a backend's pool",
	}, []string{"backend"})

	PoolConnectionsIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sqlfed_pool_connections_idle",
		Help: "Number of idle connections held by a backend's pool",
	}, []string{"backend"})
)

// Provisioning metrics
var (
	ProvisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlfed_provision_duration_seconds",
		Help:    "Duration of table provisioning operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	ProvisionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlfed_provision_errors_total",
		Help: "Total provisioning failures by operation",
	}, []string{"op"})
)

// Vector search metrics
var (
	EmbeddingCacheHitRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sqlfed_embedding_cache_hit_rate",
		Help: "Embedding cache hit rate as a ratio (0.0 to 1.0), per model",
	}, []string{"model"})

	VectorSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlfed_vector_search_duration_ms",
		Help:    "End-to-end vector search latency in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"table"})

	VectorSearchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlfed_vector_search_errors_total",
		Help: "Total vector search failures by table",
	}, []string{"table"})
)

// RecordDecodeError records a decode failure by kind and backend.
func RecordDecodeError(kind, backend string) {
	DecodeErrors.WithLabelValues(kind, backend).Inc()
}

// RecordRowsDecoded adds n successfully decoded rows for backend.
func RecordRowsDecoded(backend string, n float64) {
	RowsDecoded.WithLabelValues(backend).Add(n)
}

// RecordVendorFetch records a vendor round trip's latency.
func RecordVendorFetch(backend, op string, durationMs float64) {
	VendorFetchDuration.WithLabelValues(backend, op).Observe(durationMs)
}

// UpdatePoolConnections updates in-use/idle gauges for a backend's pool.
func UpdatePoolConnections(backend string, inUse, idle int32) {
	PoolConnectionsInUse.WithLabelValues(backend).Set(float64(inUse))
	PoolConnectionsIdle.WithLabelValues(backend).Set(float64(idle))
}

// RecordProvision records a provisioning operation's duration and
// whether it failed.
func RecordProvision(op string, durationSeconds float64, err error) {
	ProvisionDuration.WithLabelValues(op).Observe(durationSeconds)
	if err != nil {
		ProvisionErrors.WithLabelValues(op).Inc()
	}
}

// RecordVectorSearch records a vector search call's latency and outcome.
func RecordVectorSearch(table string, durationMs float64, err error) {
	VectorSearchDuration.WithLabelValues(table).Observe(durationMs)
	if err != nil {
		VectorSearchErrors.WithLabelValues(table).Inc()
	}
}

// UpdateEmbeddingCacheHitRate sets the cache hit ratio for model.
func UpdateEmbeddingCacheHitRate(model string, ratio float64) {
	EmbeddingCacheHitRate.WithLabelValues(model).Set(ratio)
}
