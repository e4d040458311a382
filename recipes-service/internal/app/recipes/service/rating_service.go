package service

import (
	"context"
	"errors"
	"fmt"

	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"

	"github.com/google/uuid"
)

// RatingService - агрегатор оценок: одна оценка на пользователя,
// среднее и количество голосов пересчитываются в той же транзакции, что и вставка
type RatingService struct {
	recipeRepo repository.RecipeRepository
	ratingRepo repository.RatingRepository
}

func NewRatingService(recipeRepo repository.RecipeRepository, ratingRepo repository.RatingRepository) *RatingService {
	return &RatingService{
		recipeRepo: recipeRepo,
		ratingRepo: ratingRepo,
	}
}

// Rate сохраняет оценку и возвращает новые average_rating/total_votes.
// Exists - только быстрый отказ; гонку двух одинаковых запросов разрешает unique constraint.
func (s *RatingService) Rate(ctx context.Context, recipeID, userID uuid.UUID, value int) (*entity.RatingSummary, error) {
	if value < entity.MinRating || value > entity.MaxRating {
		metrics.RecordRating("invalid")
		return nil, ErrInvalidRating
	}

	if _, err := s.recipeRepo.GetByID(ctx, recipeID); err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			metrics.RecordRating("not_found")
			return nil, ErrRecipeNotFound
		}
		metrics.RecordRating("error")
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	exists, err := s.ratingRepo.Exists(ctx, recipeID, userID)
	if err != nil {
		metrics.RecordRating("error")
		return nil, fmt.Errorf("failed to check rating: %w", err)
	}
	if exists {
		metrics.RecordRating("conflict")
		return nil, ErrAlreadyRated
	}

	summary, err := s.ratingRepo.Rate(ctx, &entity.RecipeRating{
		RecipeID: recipeID,
		UserID:   userID,
		Rating:   value,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateRating):
			metrics.RecordRating("conflict")
			return nil, ErrAlreadyRated
		case errors.Is(err, repository.ErrRecipeNotFound):
			metrics.RecordRating("not_found")
			return nil, ErrRecipeNotFound
		case errors.Is(err, repository.ErrRatingOutOfRange):
			metrics.RecordRating("invalid")
			return nil, ErrInvalidRating
		}
		metrics.RecordRating("error")
		return nil, fmt.Errorf("failed to rate recipe: %w", err)
	}

	metrics.RecordRating("success")
	metrics.RecipeRatingValue.Observe(float64(value))

	return summary, nil
}
