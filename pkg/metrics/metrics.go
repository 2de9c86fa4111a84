// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mnemo"

var (
	memoriesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_stored_total",
			Help:      "Memory records written to the vector index",
		},
		[]string{"role"},
	)

	memoryOpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_operation_seconds",
			Help:      "Latency of memory store operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)

	documentChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_chunks_total",
			Help:      "Document chunks seen by the insight extractor, by outcome",
		},
		[]string{"outcome"},
	)

	insightsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_extracted_total",
			Help:      "Insights returned by the insight extractor",
		},
	)

	workerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Turns waiting in the memory worker queue",
		},
	)

	workerDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_dropped_total",
			Help:      "Turns dropped because the memory worker queue was full",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Chunk outcomes.
const (
	ChunkCached      = "cached"
	ChunkExtracted   = "extracted"
	ChunkEmbedFailed = "embed_failed"
	ChunkLLMFailed   = "llm_failed"
)

// RecordMemoryStored counts one stored memory record.
func RecordMemoryStored(role string) {
	memoriesStored.WithLabelValues(role).Inc()
}

// ObserveMemoryOp records the latency of a memory operation started at start.
func ObserveMemoryOp(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	memoryOpLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// RecordChunk counts one chunk with the given outcome.
func RecordChunk(outcome string) {
	documentChunks.WithLabelValues(outcome).Inc()
}

// RecordInsights counts n extracted insights.
func RecordInsights(n int) {
	insightsExtracted.Add(float64(n))
}

// SetWorkerQueueDepth reports the current worker queue length.
func SetWorkerQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}

// RecordWorkerDrop counts one dropped worker job.
func RecordWorkerDrop() {
	workerDropped.Inc()
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(method, route, status string) {
	httpRequests.WithLabelValues(method, route, status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
