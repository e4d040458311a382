package service

import (
	"context"
	"errors"
	"fmt"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"
	"recipebox/popularity-worker/internal/app/popularity/repository"
)

// RatingAuditService восстанавливает average_rating/total_votes из recipe_ratings,
// если их поменяли в обход агрегатора
type RatingAuditService struct {
	repo      repository.RatingAuditRepository
	batchSize int
}

func NewRatingAuditService(repo repository.RatingAuditRepository, batchSize int) *RatingAuditService {
	return &RatingAuditService{repo: repo, batchSize: batchSize}
}

func (s *RatingAuditService) Audit(ctx context.Context) (int, error) {
	drifted, err := s.repo.FindDrifted(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	repaired := 0
	var failed int
	for _, d := range drifted {
		summary, err := s.repo.Repair(ctx, d.RecipeID)
		if err != nil {
			// рецепт удалили между выборкой и починкой
			if errors.Is(err, repository.ErrRecipeNotFound) {
				continue
			}
			failed++
			logger.Error().Err(err).Str("recipe_id", d.RecipeID.String()).Msg("Failed to repair recipe rating")
			continue
		}

		repaired++
		logger.Warn().
			Str("recipe_id", d.RecipeID.String()).
			Float64("stored_average", d.StoredAverage).
			Int("stored_votes", d.StoredVotes).
			Float64("average_rating", summary.AverageRating).
			Int("total_votes", summary.TotalVotes).
			Msg("Repaired drifted recipe rating")
	}

	metrics.RatingAuditRepairs.Add(float64(repaired))

	if failed > 0 {
		return repaired, fmt.Errorf("failed to repair %d of %d recipes", failed, len(drifted))
	}

	return repaired, nil
}
