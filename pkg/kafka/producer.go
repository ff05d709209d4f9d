// Package kafka publishes branch lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/wisercms/wiser-api/pkg/metrics"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// Producer writes branch events to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

var compressionCodecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
	"none":   0,
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression, ok := compressionCodecs[cfg.Compression]
	if !ok {
		compression = kafka.Snappy
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchSize:              cfg.BatchSize,
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:            compression,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
		topic:  cfg.Topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// BranchEvent describes a branch lifecycle change (created, merged).
type BranchEvent struct {
	EventType  string          `json:"event_type"`
	TenantID   uint64          `json:"tenant_id"`
	BranchID   uint64          `json:"branch_id"`
	BranchName string          `json:"branch_name"`
	Database   string          `json:"database"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// PublishBranchEvent publishes one branch lifecycle event, keyed by branch id
// so events for the same branch stay ordered within a partition.
func (p *Producer) PublishBranchEvent(ctx context.Context, event *BranchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishBranchEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   fmt.Appendf(nil, "%d", event.BranchID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: fmt.Appendf(nil, "%d", event.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "error").Inc()
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish branch event")
		return err
	}

	metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "success").Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"branch_id":  event.BranchID,
	}).Debug("Published branch event")

	return nil
}
