package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP
// =============================================================================

// HttpRequestsTotal - все HTTP запросы
// Labels: service, method, path (шаблон маршрута gin), status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - latency запросов, от 1ms до 10s
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database
// =============================================================================

var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "table"},
)

var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis (кеш ответов, rate governor, счетчики популярности)
// =============================================================================

var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka
// =============================================================================

var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

var KafkaMessagesConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_consumed_total",
		Help: "Total number of Kafka messages consumed",
	},
	[]string{"service", "topic", "group"},
)

var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

var KafkaConsumeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_consume_duration_seconds",
		Help:    "Duration of Kafka message processing",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - operation: produce, consume, breaker_open
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Business метрики recipebox
// =============================================================================

// --- Recipes Service ---

// RecipeRatings - попытки оценить рецепт
// result: success, conflict, not_found, invalid, error
var RecipeRatings = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recipes_ratings_total",
		Help: "Total number of recipe rating attempts",
	},
	[]string{"result"},
)

// RecipeRatingValue - распределение принятых оценок
var RecipeRatingValue = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "recipes_rating_value",
		Help:    "Distribution of accepted recipe ratings",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
)

// IngredientSearches - поиск рецептов по ингредиентам
// result: matched, empty, invalid
var IngredientSearches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recipes_ingredient_searches_total",
		Help: "Total number of find-by-ingredients searches",
	},
	[]string{"result"},
)

var RecipesCreated = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "recipes_created_total",
		Help: "Total number of recipes created",
	},
)

// RateGovernorDecisions - решения rate governor
// decision: allowed, rejected, fail_open
var RateGovernorDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_governor_decisions_total",
		Help: "Total number of rate governor admission decisions",
	},
	[]string{"class", "decision"},
)

// --- Popularity Worker ---

// PopularityEventsProcessed - status: success, failed
var PopularityEventsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "popularity_events_processed_total",
		Help: "Total number of ingredient popularity events processed",
	},
	[]string{"status"},
)

var PopularityFlushedIngredients = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "popularity_flushed_ingredients_total",
		Help: "Total number of ingredient counters flushed to PostgreSQL",
	},
)

// RatingAuditRepairs - рецепты, у которых агрегат рейтинга разошелся с таблицей оценок
var RatingAuditRepairs = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rating_audit_repairs_total",
		Help: "Total number of recipe rating aggregates repaired by the audit job",
	},
)
