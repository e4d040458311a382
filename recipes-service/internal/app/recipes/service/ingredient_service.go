package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"

	"github.com/google/uuid"
)

// IngredientService - справочник ингредиентов
type IngredientService struct {
	ingredientRepo repository.IngredientRepository
}

func NewIngredientService(ingredientRepo repository.IngredientRepository) *IngredientService {
	return &IngredientService{ingredientRepo: ingredientRepo}
}

func (s *IngredientService) List(ctx context.Context, query entity.IngredientListQuery) (*entity.IngredientListResult, error) {
	if err := validatePage(query.Page, query.Limit); err != nil {
		return nil, err
	}

	ingredients, total, err := s.ingredientRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}

	return &entity.IngredientListResult{
		Data:       ingredients,
		Pagination: entity.NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *IngredientService) Get(ctx context.Context, id uuid.UUID) (*entity.Ingredient, error) {
	ingredient, err := s.ingredientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrIngredientNotFound) {
			return nil, ErrIngredientNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}

	return ingredient, nil
}

// Create добавляет ингредиент; имя уникально без учета регистра
func (s *IngredientService) Create(ctx context.Context, req *entity.CreateIngredientRequest) (*entity.Ingredient, error) {
	name := strings.TrimSpace(req.Name)

	// Проверяем существование до вставки, уникальный индекс страхует от гонки
	if _, err := s.ingredientRepo.GetByName(ctx, name); err == nil {
		return nil, ErrIngredientExists
	} else if !errors.Is(err, repository.ErrIngredientNotFound) {
		return nil, fmt.Errorf("failed to check ingredient name: %w", err)
	}

	ingredient := &entity.Ingredient{
		ID:        uuid.New(),
		Name:      name,
		UnitType:  req.UnitType,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.ingredientRepo.Create(ctx, ingredient); err != nil {
		if errors.Is(err, repository.ErrIngredientAlreadyExists) {
			return nil, ErrIngredientExists
		}
		return nil, fmt.Errorf("failed to create ingredient: %w", err)
	}

	return ingredient, nil
}
