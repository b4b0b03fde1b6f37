package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/estampa/internal/models"
)

// errMalformedMessage marks a record that can never decode; it is skipped
// without retry.
var errMalformedMessage = errors.New("malformed message")

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps a Kafka consumer
type Consumer struct {
	reader  messageReader
	handler MessageHandler
}

// MessageHandler processes generation events
type MessageHandler interface {
	HandleMessage(ctx context.Context, evt *models.GenerationEvent) error
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // manual commits
		StartOffset:    kafka.FirstOffset,
	})

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Kafka consumer initialized")

	return &Consumer{
		reader:  reader,
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. A message whose handler keeps failing
// is retried with exponential backoff and skipped after maxRetriesSkip
// attempts. A message that does not decode is committed and skipped at once.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("Starting Kafka consumer")

	const (
		maxRetries     = 10
		baseDelay      = 1 * time.Second
		maxDelay       = 5 * time.Minute
		maxRetriesSkip = 50
	)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("Failed to fetch message")
				continue
			}

			var lastErr error
			for attempt := 0; attempt < maxRetriesSkip; attempt++ {
				if err := c.processMessage(ctx, msg); err != nil {
					if errors.Is(err, errMalformedMessage) {
						log.Warn().
							Err(err).
							Str("topic", msg.Topic).
							Int("partition", msg.Partition).
							Int64("offset", msg.Offset).
							Msg("Skipping malformed message")
						lastErr = nil
						if err := c.reader.CommitMessages(ctx, msg); err != nil {
							log.Error().Err(err).Msg("Failed to commit malformed message")
						}
						break
					}
					lastErr = err

					log.Error().
						Err(err).
						Str("topic", msg.Topic).
						Int("partition", msg.Partition).
						Int64("offset", msg.Offset).
						Int("attempt", attempt+1).
						Int("max_retries", maxRetriesSkip).
						Msg("Failed to process message - will retry")

					delay := baseDelay * time.Duration(1<<uint(min(attempt, maxRetries)))
					if delay > maxDelay {
						delay = maxDelay
					}

					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
						continue
					}
				}
				lastErr = nil
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					log.Error().Err(err).Msg("Failed to commit message")
				}
				break
			}

			if lastErr != nil {
				log.Error().
					Err(lastErr).
					Str("topic", msg.Topic).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Message processing failed after all retries - skipping message")

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					log.Error().Err(err).Msg("Failed to commit skipped message")
				}
			}
		}
	}
}

// processMessage processes a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var evt models.GenerationEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("%w: failed to unmarshal: %v", errMalformedMessage, err)
	}

	if err := c.handler.HandleMessage(ctx, &evt); err != nil {
		return fmt.Errorf("handler error: %w", err)
	}

	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}

// LogHandler writes each generation event to the structured log.
type LogHandler struct{}

// HandleMessage implements MessageHandler.
func (LogHandler) HandleMessage(_ context.Context, evt *models.GenerationEvent) error {
	e := log.Info()
	if evt.Outcome != models.OutcomeSucceeded {
		e = log.Warn()
	}
	e.Str("request_id", evt.RequestID.String()).
		Str("outcome", evt.Outcome).
		Str("model", evt.Model).
		Int("prompt_length", evt.PromptLength).
		Int64("duration_ms", evt.DurationMs).
		Str("error", evt.Error).
		Time("finished_at", evt.FinishedAt).
		Msg("Generation event")
	return nil
}
