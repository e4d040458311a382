package repository

import (
	"context"
	"fmt"
	"strconv"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PopularityKey - hash ingredient_id -> число поисков с последнего сброса
const PopularityKey = "ingredient:popularity"

// HGETALL и DEL одним скриптом: инкременты после чтения попадут уже в новый hash
var drainScript = redis.NewScript(`
local values = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return values
`)

type counterStore struct {
	client *redis.Client
	key    string
}

func NewCounterStore(client *redis.Client) CounterStore {
	return &counterStore{client: client, key: PopularityKey}
}

func (s *counterStore) Increment(ctx context.Context, ingredientIDs []uuid.UUID) error {
	if len(ingredientIDs) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpHIncrBy)
	defer timer.ObserveDuration()

	pipe := s.client.Pipeline()
	for _, id := range ingredientIDs {
		pipe.HIncrBy(ctx, s.key, id.String(), 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpHIncrBy)
		return fmt.Errorf("failed to increment popularity counters: %w", err)
	}

	return nil
}

func (s *counterStore) Drain(ctx context.Context) (map[uuid.UUID]int64, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpEval)
	defer timer.ObserveDuration()

	raw, err := drainScript.Run(ctx, s.client, []string{s.key}).StringSlice()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpEval)
		return nil, fmt.Errorf("failed to drain popularity counters: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		id, err := uuid.Parse(raw[i])
		if err != nil {
			logger.Warn().Str("field", raw[i]).Msg("Skipping malformed popularity counter")
			continue
		}
		n, err := strconv.ParseInt(raw[i+1], 10, 64)
		if err != nil {
			logger.Warn().Str("field", raw[i]).Str("value", raw[i+1]).Msg("Skipping malformed popularity counter")
			continue
		}
		counts[id] += n
	}

	return counts, nil
}

func (s *counterStore) Restore(ctx context.Context, counts map[uuid.UUID]int64) error {
	if len(counts) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpHIncrBy)
	defer timer.ObserveDuration()

	pipe := s.client.Pipeline()
	for id, n := range counts {
		pipe.HIncrBy(ctx, s.key, id.String(), n)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpHIncrBy)
		return fmt.Errorf("failed to restore popularity counters: %w", err)
	}

	return nil
}
