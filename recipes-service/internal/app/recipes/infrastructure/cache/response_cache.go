package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"recipebox/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	serviceName   = "recipes-service"
	DefaultPrefix = "recipes:cache:"
	scanBatch     = 200

	// generationKey лежит под префиксом, но InvalidateAll его не удаляет
	generationKey = "gen"
	loadTimeout   = 10 * time.Second
)

// setIfGenerationScript пишет ответ, только если поколение не менялось с начала загрузки
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
    return 0
end
if tonumber(ARGV[3]) > 0 then
    redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
    redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// ResponseCache хранит сериализованные ответы API в Redis.
// Все ключи живут под общим префиксом, InvalidateAll удаляет их SCAN-ом
// и увеличивает поколение: загрузка, начатая до записи, в кэш уже не попадет.
type ResponseCache struct {
	client *redis.Client
	prefix string
	group  singleflight.Group
}

func NewResponseCache(client *redis.Client, prefix string) *ResponseCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ResponseCache{
		client: client,
		prefix: prefix,
	}
}

// Key строит ключ из пространства имен и параметров запроса.
// url.Values.Encode сортирует параметры, поэтому порядок в query string не важен.
func Key(namespace string, params url.Values) string {
	sum := sha256.Sum256([]byte(params.Encode()))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, namespace(key))
			return nil, false, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}

	metrics.RecordCacheHit(serviceName, namespace(key))
	return data, true, nil
}

func (c *ResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to cache response: %w", err)
	}

	return nil
}

// InvalidateAll удаляет все закэшированные ответы.
// Поколение увеличивается до удаления ключей. SCAN вместо KEYS, чтобы не блокировать Redis.
func (c *ResponseCache) InvalidateAll(ctx context.Context) error {
	if err := c.bumpGeneration(ctx); err != nil {
		return err
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpScan)
	defer timer.ObserveDuration()

	genKey := c.prefix + generationKey
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			metrics.RecordRedisError(serviceName, metrics.RedisOpScan)
			return fmt.Errorf("failed to scan cached responses: %w", err)
		}

		toDelete := keys[:0]
		for _, k := range keys {
			if k != genKey {
				toDelete = append(toDelete, k)
			}
		}

		if len(toDelete) > 0 {
			if err := c.client.Del(ctx, toDelete...).Err(); err != nil {
				metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
				return fmt.Errorf("failed to delete cached responses: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *ResponseCache) bumpGeneration(ctx context.Context) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpIncr)
	defer timer.ObserveDuration()

	if err := c.client.Incr(ctx, c.prefix+generationKey).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpIncr)
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// generation возвращает текущее поколение, "0" если InvalidateAll еще не вызывался
func (c *ResponseCache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, c.prefix+generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return "", fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

func (c *ResponseCache) setIfGeneration(ctx context.Context, key, gen string, value []byte, ttl time.Duration) (bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpEval)
	defer timer.ObserveDuration()

	stored, err := setIfGenerationScript.Run(ctx, c.client,
		[]string{c.prefix + generationKey, c.prefix + key},
		gen, value, ttl.Milliseconds(),
	).Int()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpEval)
		return false, fmt.Errorf("failed to cache response: %w", err)
	}
	return stored == 1, nil
}

// Fetch отдает ответ из кэша, а при промахе вызывает load один раз на ключ
// для всех одновременных запросов и кэширует результат.
// Ошибка чтения Redis не мешает ответу: load вызывается как при промахе.
//
// Поколение входит в ключ singleflight, поэтому запрос после InvalidateAll
// не присоединяется к загрузке, начатой до записи. Общая загрузка идет
// на контексте без отмены: отключение первого клиента не роняет остальных.
func (c *ResponseCache) Fetch(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}

	gen, genErr := c.generation(ctx)

	ch := c.group.DoChan(key+"@"+gen, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		data, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		// без поколения не пишем: нельзя проверить, не было ли записи во время загрузки
		if genErr == nil {
			// кэш вторичен, ошибку записи не пробрасываем
			_, _ = c.setIfGeneration(loadCtx, key, gen, data, ttl)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
