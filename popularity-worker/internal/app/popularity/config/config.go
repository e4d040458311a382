package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config содержит настройки Popularity Worker
// Worker читает события поиска из Kafka, копит счетчики в Redis и сбрасывает их в PostgreSQL
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	CronSchedule CronScheduleConfig
	Audit        AuditConfig
}

// ServerConfig - порт health/metrics сервера
type ServerConfig struct {
	Port string
}

// DatabaseConfig - та же БД, что у recipes-service
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig - подписка на ingredient_events
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// CronScheduleConfig - расписания в формате cron с секундами
type CronScheduleConfig struct {
	FlushPopularity string // сброс счетчиков Redis в ingredient_popularity
	AuditRatings    string // сверка average_rating/total_votes с recipe_ratings
}

type AuditConfig struct {
	BatchSize int // Максимум рецептов, чинимых за один запуск
}

func Load() (*Config, error) {
	batchSize := getEnvInt("AUDIT_BATCH_SIZE", 500)
	if batchSize <= 0 {
		return nil, fmt.Errorf("AUDIT_BATCH_SIZE must be positive, got %d", batchSize)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8085"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "recipes_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 1), // Отдельная БД для счетчиков популярности
		},
		Kafka: KafkaConfig{
			Brokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:    getEnv("KAFKA_TOPIC", "ingredient_events"),
			GroupID:  getEnv("KAFKA_GROUP_ID", "popularity-worker-group"),
			MinBytes: getEnvInt("KAFKA_MIN_BYTES", 1),
			MaxBytes: getEnvInt("KAFKA_MAX_BYTES", 10e6),
		},
		CronSchedule: CronScheduleConfig{
			FlushPopularity: getEnv("CRON_FLUSH_POPULARITY", "0 */5 * * * *"),
			AuditRatings:    getEnv("CRON_AUDIT_RATINGS", "0 0 * * * *"),
		},
		Audit: AuditConfig{
			BatchSize: batchSize,
		},
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
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
