package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptcheck",
		Name:      "messages_handled_total",
		Help:      "Messages consumed, by stage and disposition",
	}, []string{"stage", "disposition"})

	handleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scriptcheck",
		Name:      "message_handle_duration_seconds",
		Help:      "Time spent handling one message, by stage",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	verdictsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scriptcheck",
		Name:      "verdicts_total",
		Help:      "Final interview verdicts recorded",
	}, []string{"verdict"})

	segmentsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scriptcheck",
		Name:      "segments_analyzed_total",
		Help:      "Interview segments scored against the reference clips",
	})

	embeddingBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scriptcheck",
		Name:      "embedding_batches_total",
		Help:      "Batches sent to the embedding service",
	})
)

// ObserveHandled records one message's outcome and duration for a stage.
func ObserveHandled(stage, disposition string, elapsed time.Duration) {
	messagesHandled.WithLabelValues(stage, disposition).Inc()
	handleDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveVerdict records a finalized interview verdict and its segment count.
func ObserveVerdict(finalVerdict string, totalSegments int) {
	verdictsRecorded.WithLabelValues(finalVerdict).Inc()
	segmentsAnalyzed.Add(float64(totalSegments))
}

// ObserveEmbeddingBatch counts one request to the embedding service.
func ObserveEmbeddingBatch() {
	embeddingBatches.Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
