package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	StoredMemories      prometheus.Gauge
	MemoryOps           *prometheus.CounterVec
	UpstreamErrors      *prometheus.CounterVec
	EmbedLatency        prometheus.Histogram
	GenerateLatency     prometheus.Histogram
	SearchCandidates    prometheus.Histogram
	DimensionMismatches prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		StoredMemories: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_memories",
			Help:      "Number of memories currently persisted.",
		}),
		MemoryOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_ops_total",
			Help:      "Store operations by op and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Inference service failures by op and class.",
		}, []string{"op", "class"}),
		EmbedLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_latency_ms",
			Help:      "Embedding request latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1600, 3200, 6400},
		}),
		GenerateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_latency_ms",
			Help:      "Generation request latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		SearchCandidates: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Candidate set size per similarity query.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
		}),
		DimensionMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_dimension_mismatch_total",
			Help:      "Stored embeddings skipped during ranking for length mismatch against the query vector.",
		}),
	}
}

func (m *Metrics) ObserveEmbedLatency(d time.Duration) {
	m.EmbedLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveGenerateLatency(d time.Duration) {
	m.GenerateLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
