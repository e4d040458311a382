package mocks

import (
	"context"
	"sync"

	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRecipeRepository мок для RecipeRepository
type MockRecipeRepository struct {
	mock.Mock
}

func (m *MockRecipeRepository) Create(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error {
	args := m.Called(ctx, recipe, ingredients)
	return args.Error(0)
}

func (m *MockRecipeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Recipe), args.Error(1)
}

func (m *MockRecipeRepository) GetDetail(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Recipe), args.Error(1)
}

func (m *MockRecipeRepository) Update(ctx context.Context, recipe *entity.Recipe, ingredients []entity.RecipeIngredient) error {
	args := m.Called(ctx, recipe, ingredients)
	return args.Error(0)
}

func (m *MockRecipeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRecipeRepository) List(ctx context.Context, query entity.RecipeListQuery) ([]entity.Recipe, int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Recipe), args.Get(1).(int64), args.Error(2)
}

func (m *MockRecipeRepository) FindByIngredients(ctx context.Context, ingredientIDs []uuid.UUID, limit int) ([]entity.RankedRecipe, error) {
	args := m.Called(ctx, ingredientIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RankedRecipe), args.Error(1)
}

// MockRatingRepository мок для RatingRepository
type MockRatingRepository struct {
	mock.Mock
}

func (m *MockRatingRepository) Exists(ctx context.Context, recipeID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, recipeID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRatingRepository) Rate(ctx context.Context, rating *entity.RecipeRating) (*entity.RatingSummary, error) {
	args := m.Called(ctx, rating)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingSummary), args.Error(1)
}

// MockIngredientRepository мок для IngredientRepository
type MockIngredientRepository struct {
	mock.Mock
}

func (m *MockIngredientRepository) Create(ctx context.Context, ingredient *entity.Ingredient) error {
	args := m.Called(ctx, ingredient)
	return args.Error(0)
}

func (m *MockIngredientRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Ingredient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Ingredient), args.Error(1)
}

func (m *MockIngredientRepository) GetByName(ctx context.Context, name string) (*entity.Ingredient, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Ingredient), args.Error(1)
}

func (m *MockIngredientRepository) List(ctx context.Context, query entity.IngredientListQuery) ([]entity.Ingredient, int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Ingredient), args.Get(1).(int64), args.Error(2)
}

func (m *MockIngredientRepository) FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockDefaultIngredientRepository мок для DefaultIngredientRepository
type MockDefaultIngredientRepository struct {
	mock.Mock
}

func (m *MockDefaultIngredientRepository) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]entity.UserDefaultIngredient, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.UserDefaultIngredient), args.Get(1).(int64), args.Error(2)
}

func (m *MockDefaultIngredientRepository) Add(ctx context.Context, item *entity.UserDefaultIngredient) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDefaultIngredientRepository) Remove(ctx context.Context, userID, ingredientID uuid.UUID) error {
	args := m.Called(ctx, userID, ingredientID)
	return args.Error(0)
}

// MockRecipeViewRepository мок для RecipeViewRepository
type MockRecipeViewRepository struct {
	mock.Mock
}

func (m *MockRecipeViewRepository) Record(ctx context.Context, view *entity.RecipeView) error {
	args := m.Called(ctx, view)
	return args.Error(0)
}

func (m *MockRecipeViewRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]entity.RecipeView, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.RecipeView), args.Get(1).(int64), args.Error(2)
}

// MockMessagePublisher собирает опубликованные сообщения.
// Done закрывается после первой публикации, если задан.
type MockMessagePublisher struct {
	mock.Mock
	mu       sync.Mutex
	Messages [][]byte
	Done     chan struct{}
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, value)
	first := len(m.Messages) == 1
	m.mu.Unlock()

	args := m.Called(ctx, key, value)

	if first && m.Done != nil {
		close(m.Done)
	}
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return nil
}

func (m *MockMessagePublisher) Published() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.Messages))
	copy(out, m.Messages)
	return out
}
