package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	MongoDB   MongoDBConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Ranker    RankerConfig
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8084)
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int // Размер пула для gorm и pgxpool
}

// RedisConfig - Redis используется для кеша ответов и sliding window лимитов
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MongoDBConfig struct {
	URI      string // URI подключения к MongoDB (история просмотров)
	Database string
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик для INGREDIENTS_SEARCHED
}

type JWTConfig struct {
	Secret string // Должен совпадать с секретом сервиса, выпускающего токены
}

type CacheConfig struct {
	ListTTL time.Duration // TTL для списков (recipes, ingredients, find-by-ingredients)
	ItemTTL time.Duration // TTL для отдельных сущностей
}

// RateLimitRule - N запросов за окно Window
type RateLimitRule struct {
	Requests int
	Window   time.Duration
}

type RateLimitConfig struct {
	Rules map[string]RateLimitRule // ключ - класс операции (recipes_list, recipes_rate, ...)

	// Глобальный token bucket на процесс, 0 - выключен
	GlobalRPS   float64
	GlobalBurst int
}

type RankerConfig struct {
	Limit int // Максимум рецептов в ответе find-by-ingredients
}

// DefaultRateLimits - лимиты по умолчанию, переопределяются RATE_LIMIT_<CLASS>=requests/seconds
var DefaultRateLimits = map[string]string{
	"recipes_list":      "100/60",
	"recipes_search":    "60/60",
	"recipes_get":       "200/60",
	"recipes_write":     "10/60",
	"recipes_rate":      "10/60",
	"ingredients_list":  "100/60",
	"ingredients_get":   "200/60",
	"ingredients_write": "10/60",
	"general":           "1000/60",
}

func Load() (*Config, error) {
	rules := make(map[string]RateLimitRule, len(DefaultRateLimits))
	for class, def := range DefaultRateLimits {
		raw := getEnv("RATE_LIMIT_"+strings.ToUpper(class), def)
		rule, err := ParseRateLimitRule(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit for %s: %w", class, err)
		}
		rules[class] = rule
	}

	globalRPS, err := strconv.ParseFloat(getEnv("GLOBAL_RATE_LIMIT_RPS", "500"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GLOBAL_RATE_LIMIT_RPS: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8084"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "recipes_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "recipes_history"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "ingredient_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		Cache: CacheConfig{
			ListTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 900)) * time.Second,
			ItemTTL: time.Duration(getEnvInt("CACHE_ITEM_TTL_SECONDS", 3600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Rules:       rules,
			GlobalRPS:   globalRPS,
			GlobalBurst: getEnvInt("GLOBAL_RATE_LIMIT_BURST", 1000),
		},
		Ranker: RankerConfig{
			Limit: getEnvInt("RANKER_LIMIT", 50),
		},
	}, nil
}

// ParseRateLimitRule разбирает строку вида "100/60" (запросов / секунд)
func ParseRateLimitRule(raw string) (RateLimitRule, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 {
		return RateLimitRule{}, fmt.Errorf("expected <requests>/<seconds>, got %q", raw)
	}

	requests, err := strconv.Atoi(parts[0])
	if err != nil || requests <= 0 {
		return RateLimitRule{}, fmt.Errorf("invalid request count %q", parts[0])
	}

	seconds, err := strconv.Atoi(parts[1])
	if err != nil || seconds <= 0 {
		return RateLimitRule{}, fmt.Errorf("invalid window %q", parts[1])
	}

	return RateLimitRule{Requests: requests, Window: time.Duration(seconds) * time.Second}, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL возвращает строку подключения в формате postgres:// для pgxpool
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.MaxConns,
	)
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
