package infrastructure

import (
	"context"
	"time"
)

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
// Используется для dependency injection и упрощения тестирования
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// ResponseCache - key/value кэш ответов API с TTL и полной инвалидацией.
// Промах кэша - (nil, false, nil).
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error

	// Fetch - Get, а при промахе один вызов load на ключ и Set результата.
	// Второе значение true, если ответ взят из кэша.
	Fetch(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) ([]byte, bool, error)
}

// RateGovernor решает, пропустить ли запрос identifier для класса операций
type RateGovernor interface {
	Allow(ctx context.Context, identifier, class string) (*Decision, error)
}

// Decision - результат проверки лимита, поля идут в заголовки X-RateLimit-*
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int       // секунд до освобождения слота, 0 если разрешено
	Reset      time.Time // момент, когда окно полностью освободится
}
