// Package metrics exposes Prometheus collectors for analyses, ingest jobs,
// fallback calls and persistence writes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

const namespace = "ndachunk"

// Recorder holds the service collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	chunksPerDoc     prometheus.Histogram
	chunkTokens      *prometheus.HistogramVec
	fallbackCalls    *prometheus.CounterVec
	fallbackLatency  prometheus.Histogram
	jobs             *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	storeWrites      *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Documents chunked, by structure source and whether the quality gate re-chunked them.",
		}, []string{"source", "rechunked"}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a full chunking run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		chunksPerDoc: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunks_per_document",
			Help:      "Number of chunks produced per document.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		chunkTokens: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_tokens",
			Help:      "Token count of produced chunks, by chunk type.",
			Buckets:   []float64{25, 50, 100, 200, 300, 400, 512, 768, 1024},
		}, []string{"chunk_type"}),
		fallbackCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_requests_total",
			Help:      "Generative structure fallback calls, by outcome.",
		}, []string{"outcome"}),
		fallbackLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_duration_seconds",
			Help:      "Latency of generative structure fallback calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_total",
			Help:      "Finished ingest jobs, by final status.",
		}, []string{"status"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		storeWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Analysis persistence attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveAnalysis records one chunking run.
func (r *Recorder) ObserveAnalysis(source doctree.Source, rechunked bool, chunks []doctree.LegalChunk, d time.Duration) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(string(source), strconv.FormatBool(rechunked)).Inc()
	r.analysisDuration.Observe(d.Seconds())
	r.chunksPerDoc.Observe(float64(len(chunks)))
	for _, c := range chunks {
		r.chunkTokens.WithLabelValues(string(c.ChunkType)).Observe(float64(c.TokenCount))
	}
}

// ObserveFallback records one fallback call. Its signature matches
// structure.WithFallbackObserver.
func (r *Recorder) ObserveFallback(d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fallbackCalls.WithLabelValues(outcome).Inc()
	r.fallbackLatency.Observe(d.Seconds())
}

// JobFinished counts a job reaching a terminal status.
func (r *Recorder) JobFinished(status string) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the current ingest queue length.
func (r *Recorder) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(n))
}

// StoreWrite counts a persistence attempt.
func (r *Recorder) StoreWrite(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.storeWrites.WithLabelValues(outcome).Inc()
}
