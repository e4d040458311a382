package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	messages []kafka.Message
	calls    int
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishMessage_Success(t *testing.T) {
	writer := &fakeWriter{}
	producer := newKafkaProducer(writer, "ingredient_events", DefaultBreakerConfig)

	err := producer.PublishMessage(context.Background(), "user-1", []byte(`{"event_type":"INGREDIENTS_SEARCHED"}`))

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "user-1", string(writer.messages[0].Key))
	assert.JSONEq(t, `{"event_type":"INGREDIENTS_SEARCHED"}`, string(writer.messages[0].Value))
	assert.Equal(t, "closed", producer.State())
}

func TestPublishMessage_BreakerOpensAfterFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	producer := newKafkaProducer(writer, "ingredient_events", BreakerConfig{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		MaxRequests:      1,
	})

	for i := 0; i < 3; i++ {
		err := producer.PublishMessage(context.Background(), "k", []byte("v"))
		assert.ErrorContains(t, err, "failed to write message to kafka")
	}
	assert.Equal(t, "open", producer.State())

	err := producer.PublishMessage(context.Background(), "k", []byte("v"))

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	// при разомкнутой цепи брокер не вызывается
	assert.Equal(t, 3, writer.calls)
}

func TestPublishMessage_BreakerRecovers(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	producer := newKafkaProducer(writer, "ingredient_events", BreakerConfig{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
		MaxRequests:      1,
	})

	require.Error(t, producer.PublishMessage(context.Background(), "k", []byte("v")))
	assert.Equal(t, "open", producer.State())

	time.Sleep(20 * time.Millisecond)
	writer.mu.Lock()
	writer.err = nil
	writer.mu.Unlock()

	require.NoError(t, producer.PublishMessage(context.Background(), "k", []byte("v")))
	assert.Equal(t, "closed", producer.State())
}

func TestClose(t *testing.T) {
	writer := &fakeWriter{}
	producer := newKafkaProducer(writer, "ingredient_events", DefaultBreakerConfig)

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}
