// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "daylog"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Recording metrics
	RecordingsTotal   prometheus.Counter
	RecordingsActive  prometheus.Gauge
	RecordingsSuccess prometheus.Counter
	RecordingsFailed  prometheus.Counter
	RecordingsSkipped prometheus.Counter
	RecordingDuration prometheus.Histogram
	AudioSecondsTotal prometheus.Counter

	// Stage metrics
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// VAD metrics
	SegmentsDetected prometheus.Counter
	SegmentsDropped  *prometheus.CounterVec

	// ASR metrics
	ASRLatency     *prometheus.HistogramVec
	ASRErrors      *prometheus.CounterVec
	ChunksProduced prometheus.Counter
	ChunksFailed   prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Event log metrics
	EventsEmitted *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Recording metrics
		RecordingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Total number of recordings picked up for processing",
		}),
		RecordingsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recordings_active",
			Help:      "Number of recordings currently being processed",
		}),
		RecordingsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_success_total",
			Help:      "Total number of recordings processed successfully",
		}),
		RecordingsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_failed_total",
			Help:      "Total number of recordings that failed processing",
		}),
		RecordingsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_skipped_total",
			Help:      "Total number of recordings skipped because output already exists",
		}),
		RecordingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_processing_seconds",
			Help:      "Wall-clock time to process one recording end to end",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		AudioSecondsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_seconds_total",
			Help:      "Total seconds of input audio processed",
		}),

		// Stage metrics
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline stage errors",
		}, []string{"stage"}),

		// VAD metrics
		SegmentsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_detected_total",
			Help:      "Total number of speech segments detected",
		}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of candidate segments dropped",
		}, []string{"reason"}),

		// ASR metrics
		ASRLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asr_latency_seconds",
			Help:      "Transcription latency per clip in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		ASRErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_errors_total",
			Help:      "Total number of transcription errors",
		}, []string{"provider"}),
		ChunksProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_produced_total",
			Help:      "Total number of transcript chunks produced",
		}),
		ChunksFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Total number of transcript chunks carrying an error",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Event log metrics
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of events written to the event log",
		}, []string{"event_type"}),
	}
}

// RecordRecordingStart records a recording entering the pipeline.
func (m *Metrics) RecordRecordingStart() {
	m.RecordingsTotal.Inc()
	m.RecordingsActive.Inc()
}

// RecordRecordingEnd records a recording leaving the pipeline.
func (m *Metrics) RecordRecordingEnd(success bool, durationSeconds float64) {
	m.RecordingsActive.Dec()
	m.RecordingDuration.Observe(durationSeconds)
	if success {
		m.RecordingsSuccess.Inc()
	} else {
		m.RecordingsFailed.Inc()
	}
}

// RecordRecordingSkipped records a recording skipped as already processed.
func (m *Metrics) RecordRecordingSkipped() {
	m.RecordingsSkipped.Inc()
}

// RecordAudioSeconds records the duration of processed input audio.
func (m *Metrics) RecordAudioSeconds(seconds float64) {
	m.AudioSecondsTotal.Add(seconds)
}

// RecordStage records a completed pipeline stage.
func (m *Metrics) RecordStage(stage string, err error, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordSegmentsDetected records speech segments passing the full cascade.
func (m *Metrics) RecordSegmentsDetected(count int) {
	m.SegmentsDetected.Add(float64(count))
}

// RecordSegmentsDropped records candidate segments dropped at one cascade
// step.
func (m *Metrics) RecordSegmentsDropped(reason string, count int) {
	if count > 0 {
		m.SegmentsDropped.WithLabelValues(reason).Add(float64(count))
	}
}

// RecordASR records a transcription attempt for one clip.
func (m *Metrics) RecordASR(provider string, err error, latencySeconds float64) {
	m.ASRLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.ASRErrors.WithLabelValues(provider).Inc()
		m.ChunksFailed.Inc()
	} else {
		m.ChunksProduced.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordEventEmitted records an event appended to the event log.
func (m *Metrics) RecordEventEmitted(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}
