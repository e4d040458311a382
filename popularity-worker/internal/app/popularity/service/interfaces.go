package service

import (
	"context"

	"recipebox/popularity-worker/internal/app/popularity/entity"
)

// PopularityServiceInterface интерфейс для учета популярности ингредиентов
type PopularityServiceInterface interface {
	// RecordSearch учитывает одно событие поиска в счетчиках Redis
	RecordSearch(ctx context.Context, event *entity.IngredientSearchEvent) error

	// Flush переносит счетчики из Redis в PostgreSQL, возвращает число ингредиентов
	Flush(ctx context.Context) (int, error)

	Top(ctx context.Context, limit int) ([]entity.IngredientPopularity, error)
}

// RatingAuditServiceInterface интерфейс для сверки агрегата рейтинга
type RatingAuditServiceInterface interface {
	// Audit чинит рецепты с разошедшимся агрегатом, возвращает число исправленных
	Audit(ctx context.Context) (int, error)
}
