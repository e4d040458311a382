package service

import (
	"context"
	"errors"
	"fmt"

	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"

	"github.com/google/uuid"
)

// PantryService - ингредиенты "по умолчанию" пользователя
type PantryService struct {
	pantryRepo repository.DefaultIngredientRepository
}

func NewPantryService(pantryRepo repository.DefaultIngredientRepository) *PantryService {
	return &PantryService{pantryRepo: pantryRepo}
}

func (s *PantryService) List(ctx context.Context, userID uuid.UUID, page, limit int) (*entity.DefaultIngredientListResult, error) {
	if err := validatePage(page, limit); err != nil {
		return nil, err
	}

	items, total, err := s.pantryRepo.List(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list default ingredients: %w", err)
	}

	data := make([]entity.DefaultIngredientItem, 0, len(items))
	for _, item := range items {
		out := entity.DefaultIngredientItem{
			IngredientID: item.IngredientID,
			CreatedAt:    item.CreatedAt,
		}
		if item.Ingredient != nil {
			out.Name = item.Ingredient.Name
			out.UnitType = item.Ingredient.UnitType
		}
		data = append(data, out)
	}

	return &entity.DefaultIngredientListResult{
		Data:       data,
		Pagination: entity.NewPagination(page, limit, total),
	}, nil
}

func (s *PantryService) Add(ctx context.Context, userID, ingredientID uuid.UUID) error {
	err := s.pantryRepo.Add(ctx, &entity.UserDefaultIngredient{
		UserID:       userID,
		IngredientID: ingredientID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDefaultIngredientExists):
			return ErrPantryDuplicate
		case errors.Is(err, repository.ErrUnknownIngredientRef):
			return &UnknownIngredientsError{IDs: []uuid.UUID{ingredientID}}
		}
		return fmt.Errorf("failed to add default ingredient: %w", err)
	}

	return nil
}

func (s *PantryService) Remove(ctx context.Context, userID, ingredientID uuid.UUID) error {
	if err := s.pantryRepo.Remove(ctx, userID, ingredientID); err != nil {
		if errors.Is(err, repository.ErrDefaultIngredientNotFound) {
			return ErrPantryItemNotFound
		}
		return fmt.Errorf("failed to remove default ingredient: %w", err)
	}

	return nil
}
