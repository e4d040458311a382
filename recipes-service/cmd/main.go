package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/config"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/handler"
	"recipebox/recipes-service/internal/app/recipes/infrastructure/cache"
	"recipebox/recipes-service/internal/app/recipes/infrastructure/messaging"
	"recipebox/recipes-service/internal/app/recipes/infrastructure/ratelimit"
	"recipebox/recipes-service/internal/app/recipes/repository"
	"recipebox/recipes-service/internal/app/recipes/service"
)

const serviceName = "recipes-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init(serviceName, logLevel)

	logstashAddr := os.Getenv("LOGSTASH_ADDR")
	if logstashAddr != "" {
		if err := logger.InitLogstash(logstashAddr, serviceName, logLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", logstashAddr).Msg("Connected to Logstash")
		}
	}

	ctx := context.Background()

	// === POSTGRESQL (GORM) ===
	// Рецепты, оценки, кладовая пользователя
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	if err := migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Info().Str("database", cfg.Database.DBName).Msg("Connected to PostgreSQL")

	// === POSTGRESQL (PGX) ===
	// Справочник ингредиентов работает напрямую через pgxpool
	pool, err := connectPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pgx pool")
	}
	defer pool.Close()

	// === REDIS ===
	// Кеш ответов и sliding window лимиты
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("address", cfg.Redis.Address()).Msg("Connected to Redis")

	// === MONGODB ===
	// История просмотров рецептов
	mongoClient, err := connectMongoDB(cfg.MongoDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	logger.Info().Str("database", cfg.MongoDB.Database).Msg("Connected to MongoDB")

	mongoDB := mongoClient.Database(cfg.MongoDB.Database)

	// === KAFKA ===
	// INGREDIENTS_SEARCHED читает popularity-worker
	kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, messaging.DefaultBreakerConfig)
	defer kafkaProducer.Close()
	logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Initialized Kafka producer")

	recipeRepo := repository.NewRecipeRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	ingredientRepo := repository.NewIngredientRepository(pool)
	pantryRepo := repository.NewDefaultIngredientRepository(db)
	viewRepo := repository.NewRecipeViewRepository(mongoDB)

	recipeService := service.NewRecipeService(recipeRepo, ingredientRepo, kafkaProducer)
	ratingService := service.NewRatingService(recipeRepo, ratingRepo)
	ingredientService := service.NewIngredientService(ingredientRepo)
	pantryService := service.NewPantryService(pantryRepo)
	viewService := service.NewRecipeViewService(viewRepo)

	responseCache := cache.NewResponseCache(redisClient, cache.DefaultPrefix)
	governor := ratelimit.NewGovernor(redisClient, governorRules(cfg.RateLimit))

	var globalLimiter *rate.Limiter
	if cfg.RateLimit.GlobalRPS > 0 {
		globalLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.GlobalRPS), cfg.RateLimit.GlobalBurst)
	}

	ttl := handler.CacheTTL{List: cfg.Cache.ListTTL, Item: cfg.Cache.ItemTTL}

	router := handler.SetupRoutes(handler.RouterDeps{
		RecipeHandler:     handler.NewRecipeHandler(recipeService, ratingService, viewService, responseCache, ttl, cfg.Ranker.Limit),
		IngredientHandler: handler.NewIngredientHandler(ingredientService, pantryService, responseCache, ttl),
		AuthMiddleware:    handler.NewAuthMiddleware(cfg.JWT.Secret),
		Governor:          governor,
		GlobalLimiter:     globalLimiter,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Recipes Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Recipes Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Recipes Service stopped gracefully")
}

func governorRules(cfg config.RateLimitConfig) map[string]ratelimit.Rule {
	rules := make(map[string]ratelimit.Rule, len(cfg.Rules))
	for class, rule := range cfg.Rules {
		rules[class] = ratelimit.Rule{Requests: rule.Requests, Window: rule.Window}
	}
	return rules
}

// connectDB открывает gorm поверх pgx драйвера с retry для запуска в Docker
func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.NewGormLogger(gormlogger.Warn, 200*time.Millisecond),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(cfg.MaxConns)
				sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to PostgreSQL, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.Ingredient{},
		&entity.Recipe{},
		&entity.RecipeIngredient{},
		&entity.RecipeRating{},
		&entity.UserDefaultIngredient{},
	); err != nil {
		return err
	}

	// Имя ингредиента уникально без учета регистра, gorm теги такой индекс не выражают
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_ingredients_name_lower ON ingredients (LOWER(name))`).Error
}

func connectPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	for i := 0; i < 10; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		logger.Warn().Int("attempt", i+1).Msg("Failed to connect to Redis, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to Redis after 10 attempts")
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, clientOptions)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = client.Ping(pingCtx, nil)
			pingCancel()
			if err == nil {
				return client, nil
			}
		}

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}
