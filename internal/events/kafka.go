package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/relief-hub/internal/config"
	"github.com/mr1hm/relief-hub/internal/models"
)

const EventReportCreated = "report.created"

// KafkaSink publishes newly stored reports to a Kafka topic for downstream
// consumers. It is not a replay source for real-time clients.
type KafkaSink struct {
	writer *kafkago.Writer
}

// NewKafkaSink returns nil when no brokers are configured.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, r *models.Report) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func serializeToMessage(r *models.Report) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventReportCreated)},
			{Key: "severity", Value: []byte(r.Severity)},
			{Key: "created_at", Value: []byte(r.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
