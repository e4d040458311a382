package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/metrics"
	"recipebox/popularity-worker/internal/app/popularity/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRecipeNotFound = errors.New("recipe not found")

// aggregateRatingsSelect должен совпадать с выражением агрегатора recipes-service
// и с ROUND в findDriftedSQL
const aggregateRatingsSelect = "COUNT(*) AS total, COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average"

// Сравнение идет с тем же округленным средним, которое пишет агрегатор
const findDriftedSQL = `SELECT r.id AS recipe_id,
       r.average_rating AS stored_average,
       r.total_votes AS stored_votes,
       COALESCE(s.average, 0) AS actual_average,
       COALESCE(s.total, 0) AS actual_votes
FROM recipes r
LEFT JOIN (
    SELECT recipe_id, COUNT(*) AS total, ROUND(AVG(rating)::numeric, 2) AS average
    FROM recipe_ratings
    GROUP BY recipe_id
) s ON s.recipe_id = r.id
WHERE r.total_votes <> COALESCE(s.total, 0)
   OR r.average_rating <> COALESCE(s.average, 0)
ORDER BY r.id
LIMIT ?`

type recipeRow struct {
	ID uuid.UUID
}

func (recipeRow) TableName() string {
	return "recipes"
}

type ratingAuditRepository struct {
	db *gorm.DB
}

func NewRatingAuditRepository(db *gorm.DB) RatingAuditRepository {
	return &ratingAuditRepository{db: db}
}

func (r *ratingAuditRepository) FindDrifted(ctx context.Context, limit int) ([]entity.RatingDrift, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "recipes")
	defer timer.ObserveDuration()

	var drifted []entity.RatingDrift
	if err := r.db.WithContext(ctx).Raw(findDriftedSQL, limit).Scan(&drifted).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to find drifted recipes: %w", err)
	}

	return drifted, nil
}

func (r *ratingAuditRepository) Repair(ctx context.Context, recipeID uuid.UUID) (*entity.RatingSummary, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpTx, "recipes")
	defer timer.ObserveDuration()

	var summary entity.RatingSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked recipeRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", recipeID).
			First(&locked).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipeNotFound
			}
			return fmt.Errorf("failed to lock recipe: %w", err)
		}

		var agg struct {
			Total   int64
			Average float64
		}
		err = tx.Table("recipe_ratings").
			Select(aggregateRatingsSelect).
			Where("recipe_id = ?", recipeID).
			Scan(&agg).Error
		if err != nil {
			return fmt.Errorf("failed to aggregate ratings: %w", err)
		}

		summary = entity.RatingSummary{
			AverageRating: agg.Average,
			TotalVotes:    int(agg.Total),
		}

		err = tx.Table("recipes").
			Where("id = ?", recipeID).
			Updates(map[string]interface{}{
				"average_rating": summary.AverageRating,
				"total_votes":    summary.TotalVotes,
				"updated_at":     time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update recipe rating: %w", err)
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRecipeNotFound) {
			metrics.RecordDbError(serviceName, metrics.DbOpTx)
		}
		return nil, err
	}

	return &summary, nil
}
