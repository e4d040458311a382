package repository

import (
	"context"
	"time"

	"recipebox/popularity-worker/internal/app/popularity/entity"

	"github.com/google/uuid"
)

const serviceName = "popularity-worker"

// CounterStore - счетчики поисков в Redis между сбросами в PostgreSQL
type CounterStore interface {
	// Increment увеличивает счетчик каждого ингредиента на 1
	Increment(ctx context.Context, ingredientIDs []uuid.UUID) error

	// Drain забирает накопленные счетчики и обнуляет их атомарно
	Drain(ctx context.Context) (map[uuid.UUID]int64, error)

	// Restore возвращает счетчики обратно, если сброс в БД не удался
	Restore(ctx context.Context, counts map[uuid.UUID]int64) error
}

// PopularityRepository - таблица ingredient_popularity
type PopularityRepository interface {
	// Upsert прибавляет счетчики к сохраненным значениям
	Upsert(ctx context.Context, counts map[uuid.UUID]int64, searchedAt time.Time) error

	// Top возвращает самые популярные ингредиенты
	Top(ctx context.Context, limit int) ([]entity.IngredientPopularity, error)
}

// RatingAuditRepository - сверка агрегата рейтинга рецептов с таблицей оценок
type RatingAuditRepository interface {
	FindDrifted(ctx context.Context, limit int) ([]entity.RatingDrift, error)

	// Repair пересчитывает агрегат под блокировкой строки рецепта
	Repair(ctx context.Context, recipeID uuid.UUID) (*entity.RatingSummary, error)
}
