package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"
	"recipebox/popularity-worker/internal/app/popularity/entity"
	"recipebox/popularity-worker/internal/app/popularity/service"

	"github.com/segmentio/kafka-go"
)

const (
	serviceName = "popularity-worker"

	processAttempts     = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// KafkaConsumer читает INGREDIENTS_SEARCHED из топика ingredient_events
type KafkaConsumer struct {
	reader        *kafka.Reader
	topic         string
	groupID       string
	popularitySvc service.PopularityServiceInterface
	retryBackoff  time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

func NewKafkaConsumer(
	brokers []string,
	topic string,
	groupID string,
	minBytes int,
	maxBytes int,
	popularitySvc service.PopularityServiceInterface,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	return &KafkaConsumer{
		reader:        reader,
		topic:         topic,
		groupID:       groupID,
		popularitySvc: popularitySvc,
		retryBackoff:  defaultRetryBackoff,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start запускает consumer в отдельной горутине
func (c *KafkaConsumer) Start(ctx context.Context) {
	logger.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("Starting Kafka consumer")
	go c.consume(ctx)
}

func (c *KafkaConsumer) Stop() {
	logger.Info().Msg("Stopping Kafka consumer...")
	close(c.stopChan)
	<-c.doneChan
	c.reader.Close()
	logger.Info().Msg("Kafka consumer stopped")
}

func (c *KafkaConsumer) consume(ctx context.Context) {
	defer close(c.doneChan)

	for {
		select {
		case <-c.stopChan:
			return
		default:
			readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			message, err := c.reader.FetchMessage(readCtx)
			cancel()

			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// таймаут чтения на пустом топике - штатная ситуация
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}

				logger.Error().Err(err).Msg("Error fetching message")
				metrics.RecordKafkaError(serviceName, c.topic, "consume")
				time.Sleep(time.Second)
				continue
			}

			start := time.Now()
			if err := c.processWithRetry(ctx, message); err != nil {
				if ctx.Err() != nil {
					return
				}
				// reader группы читает дальше, без коммита событие все равно потеряется
				// до перезапуска, поэтому после всех попыток оно пропускается явно
				logger.Error().Err(err).
					Int("partition", message.Partition).
					Int64("offset", message.Offset).
					Int("attempts", processAttempts).
					Msg("Dropping ingredient search event after retries")
				metrics.PopularityEventsProcessed.WithLabelValues("failed").Inc()
			} else {
				metrics.PopularityEventsProcessed.WithLabelValues("success").Inc()
				metrics.RecordKafkaMessageConsumed(serviceName, c.topic, c.groupID, time.Since(start))
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				logger.Error().Err(err).Msg("Error committing message")
			}
		}
	}
}

// processWithRetry повторяет обработку с растущей паузой, пока не кончатся попытки
func (c *KafkaConsumer) processWithRetry(ctx context.Context, message kafka.Message) error {
	var err error
	for attempt := 1; attempt <= processAttempts; attempt++ {
		if err = c.processMessage(ctx, message); err == nil {
			return nil
		}
		if attempt == processAttempts {
			break
		}

		logger.Warn().Err(err).
			Int64("offset", message.Offset).
			Int("attempt", attempt).
			Msg("Retrying ingredient search event")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopChan:
			return err
		case <-time.After(c.retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func (c *KafkaConsumer) processMessage(ctx context.Context, message kafka.Message) error {
	var event entity.IngredientSearchEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		// битое сообщение не исправится при повторе
		logger.Warn().Err(err).
			Int64("offset", message.Offset).
			Msg("Skipping malformed ingredient search event")
		return nil
	}

	logger.Debug().
		Str("event_type", event.EventType).
		Int("ingredients", len(event.IngredientIDs)).
		Int64("offset", message.Offset).
		Int("partition", message.Partition).
		Msg("Received ingredient search event")

	if err := c.popularitySvc.RecordSearch(ctx, &event); err != nil {
		return fmt.Errorf("failed to process ingredient search event: %w", err)
	}

	return nil
}

func (c *KafkaConsumer) GetStats() kafka.ReaderStats {
	return c.reader.Stats()
}
