package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_interp_active_sessions",
		Help: "Number of active capture/translate sessions",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_interp_sessions_total",
		Help: "Total number of sessions started",
	}, []string{"mode"})

	// Ingestion metrics
	FramesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_interp_frames_ingested_total",
		Help: "Total decoded audio frames appended to speaker buffers",
	})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_interp_frames_dropped_total",
		Help: "Total audio frames dropped before buffering",
	}, []string{"reason"}) // reason: "unmapped", "queue_full", "decode_error"

	// Segmentation/pipeline metrics
	UtterancesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_interp_utterances_dispatched_total",
		Help: "Total utterances flushed and handed to the pipeline",
	})

	UtterancesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_interp_utterances_rejected_total",
		Help: "Total recognizer results discarded by the hallucination filter",
	})

	RecognizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_interp_recognize_latency_seconds",
		Help:    "Speech recognition latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	TranslateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_interp_translate_latency_seconds",
		Help:    "Translation request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	TranslateRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_interp_translate_retries_total",
		Help: "Total translation attempts retried after a transient failure",
	})

	PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_interp_pipeline_errors_total",
		Help: "Total isolated per-utterance pipeline failures",
	}, []string{"stage"}) // stage: "recognize", "translate", "present", "panic"
)

// Serve exposes the Prometheus registry on addr under /metrics. It blocks,
// so callers run it in its own goroutine. A nil error is never returned.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
