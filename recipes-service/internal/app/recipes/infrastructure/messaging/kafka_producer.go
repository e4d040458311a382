package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"

	"github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"
)

const serviceName = "recipes-service"

// messageWriter - часть kafka.Writer, которой пользуется продюсер
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BreakerConfig - настройки circuit breaker вокруг записи в Kafka
type BreakerConfig struct {
	FailureThreshold uint32        // подряд неудачных записей до размыкания
	Timeout          time.Duration // сколько цепь разомкнута до пробного запроса
	MaxRequests      uint32        // пробных запросов в half-open
}

var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	Timeout:          30 * time.Second,
	MaxRequests:      1,
}

// KafkaProducer публикует события поиска по ингредиентам.
// При недоступном брокере breaker сразу отклоняет запись вместо ожидания таймаута.
type KafkaProducer struct {
	writer  messageWriter
	topic   string
	breaker *gobreaker.CircuitBreaker[interface{}]
}

func NewKafkaProducer(brokers []string, topic string, cfg BreakerConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaProducer(writer, topic, cfg)
}

func newKafkaProducer(writer messageWriter, topic string, cfg BreakerConfig) *KafkaProducer {
	return &KafkaProducer{
		writer:  writer,
		topic:   topic,
		breaker: newCircuitBreaker(topic, cfg),
	}
}

func newCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Kafka producer circuit breaker state changed")
		},
	}

	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

func (p *KafkaProducer) PublishMessage(ctx context.Context, key string, value []byte) error {
	timer := metrics.NewKafkaProduceTimer(serviceName, p.topic)

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, message)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordKafkaError(serviceName, p.topic, "breaker_open")
			return fmt.Errorf("kafka producer unavailable: %w", err)
		}
		timer.Error()
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	timer.Success()
	return nil
}

// State - состояние breaker для health check
func (p *KafkaProducer) State() string {
	return p.breaker.State().String()
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
