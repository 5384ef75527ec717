package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tradepulse/paper-engine/internal/models"
)

// Producer publishes engine cycle reports for downstream alerting.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the reports topic
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// PublishCycleReport publishes a cycle summary keyed by stage.
func (p *Producer) PublishCycleReport(ctx context.Context, report *models.CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle report: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(report.Stage),
		Value: payload,
		Time:  report.FinishedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish cycle report: %w", err)
	}
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
