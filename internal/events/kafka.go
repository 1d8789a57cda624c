// Package events provides EventPublisher implementations: a Kafka-backed
// publisher for production and an in-memory publisher for tests and
// single-process runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// DefaultTopicPrefix is prepended to the lowercased event type to form the
// topic name.
const DefaultTopicPrefix = "ml-pipeline"

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchBytes   int64         `mapstructure:"batch_bytes"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// KafkaPublisher publishes domain events to Kafka, one topic per event type.
// The message key is the aggregate ID, so all events of one pipeline land on
// one ordered partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher. The writer batches and compresses
// with LZ4; topics are auto-created on first publish.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchBytes := cfg.BatchBytes
	if batchBytes <= 0 {
		batchBytes = 1 << 20
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			Compression:            kafka.Lz4,
			BatchSize:              batchSize,
			BatchBytes:             batchBytes,
			BatchTimeout:           batchTimeout,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		prefix: prefix,
		logger: logger.With("component", "kafka-publisher"),
	}
}

// Publish implements core.EventPublisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event *core.DomainEvent) error {
	msg, err := p.buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to %s: %w", msg.Topic, err)
	}
	p.logger.Debug("event published",
		"topic", msg.Topic,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
	)
	return nil
}

// buildMessage maps a domain event onto the wire contract: topic
// <prefix>-<lowercased type>, key = aggregate id, value = flat JSON,
// headers mirroring the envelope, native timestamp = occurred_on.
func (p *KafkaPublisher) buildMessage(event *core.DomainEvent) (kafka.Message, error) {
	body, err := json.Marshal(event.Serialize())
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serializing %s: %w", event.EventType, err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "event_id", Value: []byte(event.EventID)},
		{Key: "aggregate_id", Value: []byte(event.AggregateID)},
		{Key: "version", Value: []byte(strconv.Itoa(event.Version))},
		{Key: "occurred_on", Value: []byte(event.OccurredOn.Format(time.RFC3339Nano))},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(event.CorrelationID)})
	}
	if event.CausationID != "" {
		headers = append(headers, kafka.Header{Key: "causation_id", Value: []byte(event.CausationID)})
	}

	return kafka.Message{
		Topic:   p.prefix + "-" + strings.ToLower(event.EventType),
		Key:     []byte(event.AggregateID),
		Value:   body,
		Headers: headers,
		Time:    event.OccurredOn,
	}, nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
