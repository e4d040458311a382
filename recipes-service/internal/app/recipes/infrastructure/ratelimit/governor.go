package ratelimit

import (
	"context"
	"fmt"
	"time"

	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName  = "recipes-service"
	keyPrefix    = "rate:"
	GeneralClass = "general"
)

// Rule - не больше Requests запросов за скользящее окно Window
type Rule struct {
	Requests int
	Window   time.Duration
}

// slidingWindowScript атомарно чистит окно, проверяет лимит и регистрирует запрос.
// Возвращает {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	count = count + 1
	allowed = 1
end

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end

return {allowed, count, oldest}
`)

// Governor - sliding window лимитер в Redis, общий для всех реплик сервиса.
// Окно хранится в ZSET по ключу rate:<class>:<identifier>, score - время запроса в мс.
type Governor struct {
	client *redis.Client
	rules  map[string]Rule
	now    func() time.Time
}

func NewGovernor(client *redis.Client, rules map[string]Rule) *Governor {
	return &Governor{
		client: client,
		rules:  rules,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// Rule возвращает правило класса, для неизвестного класса - general
func (g *Governor) Rule(class string) (Rule, bool) {
	if rule, ok := g.rules[class]; ok {
		return rule, true
	}
	rule, ok := g.rules[GeneralClass]
	return rule, ok
}

// Allow регистрирует запрос identifier в классе class и решает, пропускать ли его.
// Отклоненный запрос в окно не попадает.
func (g *Governor) Allow(ctx context.Context, identifier, class string) (*infrastructure.Decision, error) {
	rule, ok := g.Rule(class)
	if !ok || rule.Requests <= 0 || rule.Window <= 0 {
		return &infrastructure.Decision{Allowed: true}, nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpEval)
	defer timer.ObserveDuration()

	now := g.now()
	nowMs := now.UnixMilli()
	windowMs := rule.Window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, g.client,
		[]string{keyPrefix + class + ":" + identifier},
		nowMs, windowMs, rule.Requests, fmt.Sprintf("%d-%s", nowMs, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpEval)
		metrics.RecordRateGovernorDecision(class, "error")
		return nil, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	allowed, count, oldestMs := res[0] == 1, int(res[1]), res[2]
	reset := time.UnixMilli(oldestMs + windowMs)

	decision := &infrastructure.Decision{
		Allowed:   allowed,
		Limit:     rule.Requests,
		Remaining: rule.Requests - count,
		Reset:     reset,
	}

	if allowed {
		metrics.RecordRateGovernorDecision(class, "allowed")
		return decision, nil
	}

	// слот освобождается, когда самый старый запрос выходит из окна
	decision.Remaining = 0
	decision.RetryAfter = retryAfterSeconds(reset.Sub(now))
	metrics.RecordRateGovernorDecision(class, "denied")

	return decision, nil
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
