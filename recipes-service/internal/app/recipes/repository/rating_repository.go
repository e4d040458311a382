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

// aggregateRatingsSelect округляет среднее на стороне PostgreSQL (numeric, половина от нуля).
// Тем же выражением пользуется сверка агрегата в popularity-worker.
const aggregateRatingsSelect = "COUNT(*) AS total, COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average"

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository создает репозиторий оценок
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

// Exists - быстрая предварительная проверка.
// Корректность обеспечивает UNIQUE(user_id, recipe_id), а не этот запрос.
func (r *ratingRepository) Exists(ctx context.Context, recipeID, userID uuid.UUID) (bool, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipe_ratings")
	defer timer.ObserveDuration()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.RecipeRating{}).
		Where("recipe_id = ? AND user_id = ?", recipeID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing rating: %w", err)
	}

	return count > 0, nil
}

// Rate в одной транзакции:
//  1. блокирует строку рецепта (FOR UPDATE), чтобы параллельные оценки одного рецепта
//     пересчитывали агрегат последовательно и видели все закоммиченные строки;
//  2. вставляет оценку, дубликат отсекается unique constraint;
//  3. пересчитывает количество и округленное среднее по всем оценкам рецепта;
//  4. записывает average_rating/total_votes.
//
// Любая ошибка (включая отмену ctx) откатывает транзакцию целиком.
func (r *ratingRepository) Rate(ctx context.Context, rating *entity.RecipeRating) (*entity.RatingSummary, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpTx, "recipe_ratings")
	defer timer.ObserveDuration()

	if rating.ID == uuid.Nil {
		rating.ID = uuid.New()
	}

	var summary entity.RatingSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked entity.Recipe
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", rating.RecipeID).
			First(&locked).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipeNotFound
			}
			return fmt.Errorf("failed to lock recipe: %w", err)
		}

		if err := tx.Create(rating).Error; err != nil {
			switch pgCode(err) {
			case pgUniqueViolation:
				return ErrDuplicateRating
			case pgCheckViolation:
				return ErrRatingOutOfRange
			case pgForeignKeyViolation:
				return ErrRecipeNotFound
			}
			return fmt.Errorf("failed to insert rating: %w", err)
		}

		var agg struct {
			Total   int64
			Average float64
		}
		err = tx.Model(&entity.RecipeRating{}).
			Select(aggregateRatingsSelect).
			Where("recipe_id = ?", rating.RecipeID).
			Scan(&agg).Error
		if err != nil {
			return fmt.Errorf("failed to aggregate ratings: %w", err)
		}

		summary = entity.RatingSummary{
			AverageRating: agg.Average,
			TotalVotes:    int(agg.Total),
		}

		result := tx.Model(&entity.Recipe{}).
			Where("id = ?", rating.RecipeID).
			Updates(map[string]interface{}{
				"average_rating": summary.AverageRating,
				"total_votes":    summary.TotalVotes,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update recipe rating: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRecipeNotFound
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateRating) && !errors.Is(err, ErrRecipeNotFound) {
			metrics.RecordDbError(serviceName, metrics.DbOpTx)
		}
		return nil, err
	}

	return &summary, nil
}
