package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns - белый список полей сортировки, ключ приходит из query string
var sortColumns = map[string]string{
	entity.SortByName:      "name",
	entity.SortByRating:    "average_rating",
	entity.SortByPrepTime:  "preparation_time_minutes",
	entity.SortByCreatedAt: "created_at",
}

type recipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository создает новый репозиторий рецептов
func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) Create(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "recipes")
	defer timer.ObserveDuration()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return insertIngredients(tx, recipe.ID, ingredients)
	})
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return err
	}

	recipe.Ingredients = ingredients
	return nil
}

func (r *recipeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipes")
	defer timer.ObserveDuration()

	var recipe entity.Recipe
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	return &recipe, nil
}

func (r *recipeRepository) GetDetail(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipes")
	defer timer.ObserveDuration()

	var recipe entity.Recipe
	err := r.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Ingredients.Ingredient").
		Where("id = ?", id).
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe detail: %w", err)
	}

	return &recipe, nil
}

// Update обновляет поля рецепта и, если передан список, заменяет ингредиенты целиком.
// Производные поля рейтинга не трогаем - их пишет только RatingRepository.Rate.
func (r *recipeRepository) Update(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, "recipes")
	defer timer.ObserveDuration()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Recipe{}).
			Where("id = ?", recipe.ID).
			Updates(map[string]interface{}{
				"name":                     recipe.Name,
				"preparation_time_minutes": recipe.PreparationTimeMinutes,
				"complexity_level":         recipe.ComplexityLevel,
				"steps":                    recipe.Steps,
				"updated_at":               time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update recipe: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRecipeNotFound
		}

		if ingredients == nil {
			return nil
		}

		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&entity.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("failed to remove recipe ingredients: %w", err)
		}
		return insertIngredients(tx, recipe.ID, ingredients)
	})
	if err != nil {
		if !errors.Is(err, ErrRecipeNotFound) {
			metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		}
		return err
	}

	return nil
}

func (r *recipeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpDelete, "recipes")
	defer timer.ObserveDuration()

	// recipe_ingredients и recipe_ratings удаляются через ON DELETE CASCADE (связи Ingredients и Ratings)
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Recipe{})
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpDelete)
		return fmt.Errorf("failed to delete recipe: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecipeNotFound
	}

	return nil
}

func (r *recipeRepository) List(ctx context.Context, query entity.RecipeListQuery) ([]entity.Recipe, int64, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipes")
	defer timer.ObserveDuration()

	filters := func(db *gorm.DB) *gorm.DB {
		if query.Complexity != nil {
			db = db.Where("complexity_level = ?", *query.Complexity)
		}
		if query.AuthorID != nil {
			db = db.Where("author_id = ?", *query.AuthorID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entity.Recipe{}).Scopes(filters).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	recipes := make([]entity.Recipe, 0)
	if total == 0 {
		return recipes, 0, nil
	}

	column, desc := resolveSort(query.SortBy, query.SortOrder)
	err := r.db.WithContext(ctx).
		Scopes(filters).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	return recipes, total, nil
}

// FindByIngredients считает DISTINCT ingredient_id, чтобы дубли связей не завышали ранг.
// При равном числе совпадений выше более новые рецепты, затем по id.
func (r *recipeRepository) FindByIngredients(ctx context.Context, ingredientIDs []uuid.UUID, limit int) ([]entity.RankedRecipe, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipe_ingredients")
	defer timer.ObserveDuration()

	ranked := make([]entity.RankedRecipe, 0)
	err := r.db.WithContext(ctx).
		Table("recipes").
		Select("recipes.*, COUNT(DISTINCT recipe_ingredients.ingredient_id) AS match_count").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = recipes.id").
		Where("recipe_ingredients.ingredient_id IN ?", ingredientIDs).
		Group("recipes.id").
		Order("match_count DESC, recipes.created_at DESC, recipes.id ASC").
		Limit(limit).
		Find(&ranked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find recipes by ingredients: %w", err)
	}

	return ranked, nil
}

// resolveSort возвращает колонку и направление.
// Неизвестное поле - created_at desc, неизвестное направление - desc.
func resolveSort(sortBy string, order entity.SortOrder) (string, bool) {
	column, ok := sortColumns[sortBy]
	if !ok {
		return "created_at", true
	}
	return column, order != entity.SortAsc
}

func insertIngredients(tx *gorm.DB, recipeID uuid.UUID, ingredients []entity.RecipeIngredient) error {
	if len(ingredients) == 0 {
		return nil
	}

	for i := range ingredients {
		if ingredients[i].ID == uuid.Nil {
			ingredients[i].ID = uuid.New()
		}
		ingredients[i].RecipeID = recipeID
	}

	if err := tx.Omit(clause.Associations).Create(&ingredients).Error; err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrUnknownIngredientRef
		}
		return fmt.Errorf("failed to create recipe ingredients: %w", err)
	}

	return nil
}
