package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"recipebox/pkg/metrics"
	"recipebox/popularity-worker/internal/app/popularity/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type popularityRepository struct {
	db *gorm.DB
}

func NewPopularityRepository(db *gorm.DB) PopularityRepository {
	return &popularityRepository{db: db}
}

// Upsert пишет все счетчики одним INSERT ... ON CONFLICT
func (r *popularityRepository) Upsert(ctx context.Context, counts map[uuid.UUID]int64, searchedAt time.Time) error {
	if len(counts) == 0 {
		return nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "ingredient_popularity")
	defer timer.ObserveDuration()

	rows := make([]entity.IngredientPopularity, 0, len(counts))
	for id, n := range counts {
		rows = append(rows, entity.IngredientPopularity{
			IngredientID:   id,
			SearchCount:    n,
			LastSearchedAt: searchedAt,
		})
	}
	// строки по возрастанию id, как и блокировки в ON CONFLICT
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].IngredientID[:], rows[j].IngredientID[:]) < 0
	})

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ingredient_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"search_count":     gorm.Expr("ingredient_popularity.search_count + EXCLUDED.search_count"),
				"last_searched_at": gorm.Expr("GREATEST(ingredient_popularity.last_searched_at, EXCLUDED.last_searched_at)"),
			}),
		}).
		Create(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return fmt.Errorf("failed to upsert ingredient popularity: %w", err)
	}

	return nil
}

func (r *popularityRepository) Top(ctx context.Context, limit int) ([]entity.IngredientPopularity, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "ingredient_popularity")
	defer timer.ObserveDuration()

	var top []entity.IngredientPopularity
	err := r.db.WithContext(ctx).
		Order("search_count DESC").
		Order("ingredient_id").
		Limit(limit).
		Find(&top).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to get popular ingredients: %w", err)
	}

	return top, nil
}
