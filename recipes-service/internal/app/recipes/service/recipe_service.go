package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"
	"recipebox/recipes-service/internal/app/recipes/repository"

	"github.com/google/uuid"
)

// DefaultRankerLimit - потолок выдачи поиска по ингредиентам
const DefaultRankerLimit = 50

const publishTimeout = 5 * time.Second

// RecipeService - листинг, поиск по ингредиентам и CRUD рецептов.
// Публикация событий в Kafka не влияет на ответ.
type RecipeService struct {
	recipeRepo     repository.RecipeRepository
	ingredientRepo repository.IngredientRepository
	publisher      infrastructure.MessagePublisher
}

func NewRecipeService(
	recipeRepo repository.RecipeRepository,
	ingredientRepo repository.IngredientRepository,
	publisher infrastructure.MessagePublisher,
) *RecipeService {
	return &RecipeService{
		recipeRepo:     recipeRepo,
		ingredientRepo: ingredientRepo,
		publisher:      publisher,
	}
}

// List фильтрует, сортирует и пагинирует рецепты
func (s *RecipeService) List(ctx context.Context, query entity.RecipeListQuery) (*entity.RecipeListResult, error) {
	if err := validatePage(query.Page, query.Limit); err != nil {
		return nil, err
	}
	if query.Complexity != nil && !query.Complexity.Valid() {
		return nil, ErrInvalidComplexity
	}

	recipes, total, err := s.recipeRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	items := make([]entity.RecipeListItem, 0, len(recipes))
	for i := range recipes {
		items = append(items, entity.NewRecipeListItem(&recipes[i]))
	}

	return &entity.RecipeListResult{
		Data:       items,
		Pagination: entity.NewPagination(query.Page, query.Limit, total),
	}, nil
}

// FindByIngredients ранжирует рецепты по числу совпавших ингредиентов.
// Все неизвестные id возвращаются одной ошибкой UnknownIngredientsError.
func (s *RecipeService) FindByIngredients(ctx context.Context, ingredientIDs []uuid.UUID, limit int, userID *uuid.UUID) (*entity.RecipeListResult, error) {
	ids := dedupe(ingredientIDs)
	if len(ids) == 0 {
		metrics.IngredientSearches.WithLabelValues("invalid").Inc()
		return nil, ErrNoIngredients
	}

	missing, err := s.ingredientRepo.FindMissing(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to validate ingredients: %w", err)
	}
	if len(missing) > 0 {
		metrics.IngredientSearches.WithLabelValues("invalid").Inc()
		return nil, &UnknownIngredientsError{IDs: missing}
	}

	if limit <= 0 {
		limit = DefaultRankerLimit
	}

	ranked, err := s.recipeRepo.FindByIngredients(ctx, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipes by ingredients: %w", err)
	}

	items := make([]entity.RecipeListItem, 0, len(ranked))
	for i := range ranked {
		item := entity.NewRecipeListItem(&ranked[i].Recipe)
		matchCount := ranked[i].MatchCount
		item.MatchCount = &matchCount
		items = append(items, item)
	}

	if len(items) == 0 {
		metrics.IngredientSearches.WithLabelValues("empty").Inc()
	} else {
		metrics.IngredientSearches.WithLabelValues("matched").Inc()
		s.publishSearchEvent(ids, userID, len(items))
	}

	// поиск не пагинируется: одна страница размером с выдачу
	return &entity.RecipeListResult{
		Data:       items,
		Pagination: entity.NewPagination(1, len(items), int64(len(items))),
	}, nil
}

// Get возвращает рецепт с шагами и ингредиентами
func (s *RecipeService) Get(ctx context.Context, id uuid.UUID) (*entity.RecipeDetail, error) {
	recipe, err := s.recipeRepo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	return entity.NewRecipeDetail(recipe), nil
}

// Create проверяет ингредиенты и создает рецепт вместе со связями
func (s *RecipeService) Create(ctx context.Context, authorID uuid.UUID, req *entity.CreateRecipeRequest) (*entity.RecipeDetail, error) {
	if !req.ComplexityLevel.Valid() {
		return nil, ErrInvalidComplexity
	}

	ingredients, err := s.buildIngredients(ctx, req.Ingredients)
	if err != nil {
		return nil, err
	}

	recipe := &entity.Recipe{
		ID:                     uuid.New(),
		Name:                   req.Name,
		PreparationTimeMinutes: req.PreparationTimeMinutes,
		ComplexityLevel:        req.ComplexityLevel,
		Steps:                  entity.RecipeSteps(req.Steps),
		AuthorID:               authorID,
	}

	if err := s.recipeRepo.Create(ctx, recipe, ingredients); err != nil {
		if errors.Is(err, repository.ErrUnknownIngredientRef) {
			return nil, ErrInvalidIngredientID
		}
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	metrics.RecipesCreated.Inc()

	return s.Get(ctx, recipe.ID)
}

// Update - частичное обновление, доступно только автору
func (s *RecipeService) Update(ctx context.Context, id, userID uuid.UUID, req *entity.UpdateRecipeRequest) (*entity.RecipeDetail, error) {
	recipe, err := s.recipeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if recipe.AuthorID != userID {
		return nil, ErrNotRecipeAuthor
	}

	if req.Name != nil {
		recipe.Name = *req.Name
	}
	if req.PreparationTimeMinutes != nil {
		recipe.PreparationTimeMinutes = *req.PreparationTimeMinutes
	}
	if req.ComplexityLevel != nil {
		if !req.ComplexityLevel.Valid() {
			return nil, ErrInvalidComplexity
		}
		recipe.ComplexityLevel = *req.ComplexityLevel
	}
	if req.Steps != nil {
		recipe.Steps = entity.RecipeSteps(req.Steps)
	}

	var ingredients []entity.RecipeIngredient
	if req.Ingredients != nil {
		ingredients, err = s.buildIngredients(ctx, req.Ingredients)
		if err != nil {
			return nil, err
		}
	}

	if err := s.recipeRepo.Update(ctx, recipe, ingredients); err != nil {
		switch {
		case errors.Is(err, repository.ErrRecipeNotFound):
			return nil, ErrRecipeNotFound
		case errors.Is(err, repository.ErrUnknownIngredientRef):
			return nil, ErrInvalidIngredientID
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete удаляет рецепт автора вместе с оценками и ингредиентами
func (s *RecipeService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	recipe, err := s.recipeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return ErrRecipeNotFound
		}
		return fmt.Errorf("failed to get recipe: %w", err)
	}

	if recipe.AuthorID != userID {
		return ErrNotRecipeAuthor
	}

	if err := s.recipeRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return ErrRecipeNotFound
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	return nil
}

func (s *RecipeService) buildIngredients(ctx context.Context, reqs []entity.RecipeIngredientRequest) ([]entity.RecipeIngredient, error) {
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.IngredientID)
	}

	missing, err := s.ingredientRepo.FindMissing(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to validate ingredients: %w", err)
	}
	if len(missing) > 0 {
		return nil, &UnknownIngredientsError{IDs: missing}
	}

	ingredients := make([]entity.RecipeIngredient, 0, len(reqs))
	for _, r := range reqs {
		ingredients = append(ingredients, entity.RecipeIngredient{
			IngredientID:             r.IngredientID,
			Amount:                   r.Amount,
			IsOptional:               r.IsOptional,
			SubstituteRecommendation: r.SubstituteRecommendation,
		})
	}

	return ingredients, nil
}

// publishSearchEvent отправляет INGREDIENTS_SEARCHED в отдельной горутине.
// Контекст запроса к этому моменту может быть отменен, поэтому свой таймаут.
func (s *RecipeService) publishSearchEvent(ids []uuid.UUID, userID *uuid.UUID, resultCount int) {
	if s.publisher == nil {
		return
	}

	event := entity.IngredientSearchEvent{
		EventType:     entity.EventIngredientsSearched,
		IngredientIDs: ids,
		UserID:        userID,
		ResultCount:   resultCount,
		Timestamp:     time.Now().UTC(),
	}

	key := ids[0].String()
	if userID != nil {
		key = userID.String()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to marshal ingredient search event")
			return
		}

		if err := s.publisher.PublishMessage(ctx, key, data); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to publish ingredient search event")
		}
	}()
}

func validatePage(page, limit int) error {
	if page < 1 || limit < 1 || limit > entity.MaxLimit {
		return ErrInvalidPagination
	}
	return nil
}

// dedupe убирает повторы, сохраняя порядок первого вхождения
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
