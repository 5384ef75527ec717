package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tradepulse/paper-engine/internal/models"
)

// SignalRepository defines the interface for signal database operations
type SignalRepository interface {
	CreateSignal(ctx context.Context, s *models.TradingSignal) (bool, error)
}

// SignalEvent is the envelope the signal source publishes for each new
// trading signal.
type SignalEvent struct {
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Timestamp string          `json:"timestamp"`
	Data      SignalEventData `json:"data"`
}

// SignalEventData is the signal payload inside a SignalEvent
type SignalEventData struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	AssetClass     string  `json:"asset_class"`
	Direction      string  `json:"direction"`
	Confidence     float64 `json:"confidence"`
	SentimentScore float64 `json:"sentiment_score"`
	GeneratedAt    string  `json:"generated_at"`
}

// SignalsConsumer ingests trading signals from the signal source topic and
// stores them with status=active for the next execution cycle.
type SignalsConsumer struct {
	reader *kafka.Reader
	repo   SignalRepository
	maxAge time.Duration
}

// NewSignalsConsumer creates a new Kafka consumer for signal events. Signals
// older than maxAge on arrival are stored already expired rather than
// active.
func NewSignalsConsumer(brokers []string, topic, groupID string, repo SignalRepository, maxAge time.Duration) *SignalsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-signals",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &SignalsConsumer{
		reader: reader,
		repo:   repo,
		maxAge: maxAge,
	}
}

// Start begins consuming messages from Kafka
func (c *SignalsConsumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka signals consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			// The reader is closed by Close during shutdown.
			log.Println("Signals consumer shutting down...")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading signal message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing signal message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *SignalsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event SignalEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal signal event: %w", err)
	}

	if event.EventType != "SIGNAL_CREATED" {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	signal, err := c.convertSignalData(event.Data)
	if err != nil {
		return fmt.Errorf("invalid signal payload: %w", err)
	}

	// The insert is idempotent on the signal id, so redelivered messages
	// are harmless.
	created, err := c.repo.CreateSignal(ctx, signal)
	if err != nil {
		return fmt.Errorf("failed to store signal %s: %w", signal.ID, err)
	}
	if !created {
		log.Printf("Signal %s already known, skipping", signal.ID)
		return nil
	}

	log.Printf("Stored signal %s: %s %s confidence=%.2f status=%s",
		signal.ID, signal.Direction, signal.Symbol, signal.Confidence, signal.Status)
	return nil
}

// convertSignalData validates the payload and builds the signal row.
func (c *SignalsConsumer) convertSignalData(data SignalEventData) (*models.TradingSignal, error) {
	if data.ID == "" || data.Symbol == "" {
		return nil, fmt.Errorf("missing id or symbol")
	}
	if data.Confidence < 0 || data.Confidence > 1 {
		return nil, fmt.Errorf("confidence %f out of range", data.Confidence)
	}
	if data.SentimentScore < -1 || data.SentimentScore > 1 {
		return nil, fmt.Errorf("sentiment score %f out of range", data.SentimentScore)
	}

	direction := models.SignalDirection(data.Direction)
	if direction != models.DirectionBuy && direction != models.DirectionSell {
		return nil, fmt.Errorf("invalid direction %q", data.Direction)
	}

	// An empty asset_class is allowed and resolved by symbol suffix later.
	class := models.AssetClass(data.AssetClass)
	if class != "" && class != models.AssetEquity && class != models.AssetCrypto {
		return nil, fmt.Errorf("invalid asset_class %q", data.AssetClass)
	}

	generatedAt, err := time.Parse(time.RFC3339, data.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid generated_at %q: %w", data.GeneratedAt, err)
	}

	signal := &models.TradingSignal{
		ID:             data.ID,
		Symbol:         data.Symbol,
		AssetClass:     class,
		Direction:      direction,
		Confidence:     data.Confidence,
		SentimentScore: data.SentimentScore,
		GeneratedAt:    generatedAt,
		Status:         models.SignalActive,
	}

	// Stale on arrival: store it terminal so the coordinator never sees it.
	if c.maxAge > 0 && time.Since(generatedAt) > c.maxAge {
		signal.Status = models.SignalExpired
		signal.RejectionReason = models.ReasonSignalExpired
	}

	return signal, nil
}

// Close closes the Kafka consumer
func (c *SignalsConsumer) Close() error {
	return c.reader.Close()
}
