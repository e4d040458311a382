package service

import (
	"context"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"
)

const recordViewTimeout = 3 * time.Second

// RecipeViewService - история просмотров рецептов в MongoDB
type RecipeViewService struct {
	viewRepo repository.RecipeViewRepository
}

func NewRecipeViewService(viewRepo repository.RecipeViewRepository) *RecipeViewService {
	return &RecipeViewService{viewRepo: viewRepo}
}

// RecordAsync пишет просмотр в фоне, ошибки только логируются
func (s *RecipeViewService) RecordAsync(userID string, recipe *entity.RecipeDetail) <-chan struct{} {
	done := make(chan struct{})

	view := &entity.RecipeView{
		UserID:     userID,
		RecipeID:   recipe.ID.String(),
		RecipeName: recipe.Name,
		ViewedAt:   time.Now().UTC(),
	}

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), recordViewTimeout)
		defer cancel()

		if err := s.viewRepo.Record(ctx, view); err != nil {
			logger.Warn().Err(err).
				Str("user_id", userID).
				Str("recipe_id", view.RecipeID).
				Msg("Failed to record recipe view")
		}
	}()

	return done
}

func (s *RecipeViewService) ListByUser(ctx context.Context, userID string, page, limit int) (*entity.RecipeViewListResult, error) {
	if err := validatePage(page, limit); err != nil {
		return nil, err
	}

	views, total, err := s.viewRepo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipe views: %w", err)
	}

	return &entity.RecipeViewListResult{
		Data:       views,
		Pagination: entity.NewPagination(page, limit, total),
	}, nil
}
