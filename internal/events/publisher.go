// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"daylog/internal/observability/metrics"
)

// StageProgress is the payload published to the progress topic as a
// recording moves through the pipeline.
type StageProgress struct {
	RecordingID string  `json:"recordingId"`
	RunID       string  `json:"runId"`
	Source      string  `json:"source"`
	Stage       string  `json:"stage"`
	Status      string  `json:"status"` // started, completed, failed
	Detail      string  `json:"detail,omitempty"`
	ElapsedS    float64 `json:"elapsedS,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

// Publisher publishes pipeline progress and event records to separate Kafka topics.
type Publisher struct {
	writerProgress *kafka.Writer
	writerEvents   *kafka.Writer
	principal      string
	topicProgress  string
	topicEvents    string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicProgress string
	TopicEvents   string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka publisher with separate topics for stage progress
// and final event records.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicProgress: cfg.TopicProgress,
			topicEvents:   cfg.TopicEvents,
			enabled:       false,
			metrics:       m,
		}
	}

	// Create a custom dialer with longer timeouts for DNS resolution
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	// Writer for stage progress messages
	writerProgress := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicProgress,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	// Writer for final event records
	writerEvents := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEvents,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicProgress", cfg.TopicProgress).
		Str("topicEvents", cfg.TopicEvents).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerProgress: writerProgress,
		writerEvents:   writerEvents,
		principal:      cfg.Principal,
		topicProgress:  cfg.TopicProgress,
		topicEvents:    cfg.TopicEvents,
		enabled:        true,
		metrics:        m,
	}
}

// PublishProgress publishes a stage progress message to the progress topic.
func (p *Publisher) PublishProgress(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerProgress, p.topicProgress, "progress", key, event)
}

// PublishEvent publishes a final event record to the events topic.
func (p *Publisher) PublishEvent(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerEvents, p.topicEvents, "event", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	// Log the event
	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	// Publish to Kafka
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerProgress != nil {
		if e := p.writerProgress.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing progress writer")
			err = e
		}
	}
	if p.writerEvents != nil {
		if e := p.writerEvents.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing events writer")
			err = e
		}
	}
	return err
}
