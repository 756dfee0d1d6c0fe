// Package metrics centralizes the Prometheus instrumentation for the
// ingestion and vectorization pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecdb_events_published_total",
		Help: "Domain events published to the bus, by topic.",
	}, []string{"topic"})

	EventPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecdb_event_publish_errors_total",
		Help: "Failed event publications, by topic.",
	}, []string{"topic"})

	FragmentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecdb_fragments_ingested_total",
		Help: "Document fragments accepted by the upload path.",
	})

	FragmentBytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecdb_fragment_bytes_ingested_total",
		Help: "Raw bytes accepted by the upload path.",
	})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vecdb_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages (parse, chunk, embed, index).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	PipelineStageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecdb_pipeline_stage_errors_total",
		Help: "Pipeline stage failures, by stage.",
	}, []string{"stage"})

	EmbeddingsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecdb_embeddings_deduplicated_total",
		Help: "Embedding requests skipped because the deterministic id already existed.",
	})

	EmbeddingProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecdb_embedding_provider_calls_total",
		Help: "Calls to the embedding provider, by outcome.",
	}, []string{"outcome"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
