package repository

import (
	"context"

	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
)

const serviceName = "recipes-service"

// RecipeRepository интерфейс для работы с рецептами в PostgreSQL (gorm)
type RecipeRepository interface {
	// Create создает рецепт вместе с ингредиентами в одной транзакции
	Create(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error

	// GetByID получает рецепт без ингредиентов
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)

	// GetDetail получает рецепт с ингредиентами и их названиями
	GetDetail(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)

	// Update обновляет поля рецепта; ingredients == nil оставляет ингредиенты как есть
	Update(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error

	// Delete удаляет рецепт, оценки и ингредиенты удаляются каскадно
	Delete(ctx context.Context, id uuid.UUID) error

	// List фильтрует, сортирует и пагинирует рецепты, возвращает страницу и общее количество
	List(ctx context.Context, query entity.RecipeListQuery) ([]entity.Recipe, int64, error)

	// FindByIngredients ранжирует рецепты по числу совпавших ингредиентов
	FindByIngredients(ctx context.Context, ingredientIDs []uuid.UUID, limit int) ([]entity.RankedRecipe, error)
}

// RatingRepository интерфейс для оценок рецептов
type RatingRepository interface {
	// Exists проверяет, оценивал ли пользователь рецепт
	Exists(ctx context.Context, recipeID, userID uuid.UUID) (bool, error)

	// Rate сохраняет оценку и пересчитывает average_rating/total_votes атомарно
	Rate(ctx context.Context, rating *entity.RecipeRating) (*entity.RatingSummary, error)
}

// IngredientRepository интерфейс справочника ингредиентов (pgxpool)
type IngredientRepository interface {
	Create(ctx context.Context, ingredient *entity.Ingredient) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Ingredient, error)
	GetByName(ctx context.Context, name string) (*entity.Ingredient, error)
	List(ctx context.Context, query entity.IngredientListQuery) ([]entity.Ingredient, int64, error)

	// FindMissing возвращает id из списка, которых нет в справочнике, в исходном порядке
	FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

// DefaultIngredientRepository интерфейс "кладовой" пользователя
type DefaultIngredientRepository interface {
	List(ctx context.Context, userID uuid.UUID, page, limit int) ([]entity.UserDefaultIngredient, int64, error)
	Add(ctx context.Context, item *entity.UserDefaultIngredient) error
	Remove(ctx context.Context, userID, ingredientID uuid.UUID) error
}

// RecipeViewRepository интерфейс истории просмотров в MongoDB
type RecipeViewRepository interface {
	Record(ctx context.Context, view *entity.RecipeView) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]entity.RecipeView, int64, error)
}
