package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"
	"recipebox/recipes-service/internal/app/recipes/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===================== IngredientService =====================

func TestIngredientCreate_Success(t *testing.T) {
	repo := new(mocks.MockIngredientRepository)
	service := NewIngredientService(repo)

	repo.On("GetByName", mock.Anything, "Basil").Return(nil, repository.ErrIngredientNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Ingredient")).Return(nil)

	ingredient, err := service.Create(context.Background(), &entity.CreateIngredientRequest{Name: " Basil ", UnitType: entity.UnitGrams})

	require.NoError(t, err)
	assert.Equal(t, "Basil", ingredient.Name)
	assert.NotEqual(t, uuid.Nil, ingredient.ID)
}

func TestIngredientCreate_DuplicateName(t *testing.T) {
	repo := new(mocks.MockIngredientRepository)
	service := NewIngredientService(repo)

	repo.On("GetByName", mock.Anything, "basil").Return(&entity.Ingredient{ID: uuid.New(), Name: "Basil"}, nil)

	_, err := service.Create(context.Background(), &entity.CreateIngredientRequest{Name: "basil", UnitType: entity.UnitGrams})

	assert.ErrorIs(t, err, ErrIngredientExists)
	assert.ErrorIs(t, err, ErrConflict)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngredientCreate_RaceOnUniqueIndex(t *testing.T) {
	repo := new(mocks.MockIngredientRepository)
	service := NewIngredientService(repo)

	repo.On("GetByName", mock.Anything, "Salt").Return(nil, repository.ErrIngredientNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrIngredientAlreadyExists)

	_, err := service.Create(context.Background(), &entity.CreateIngredientRequest{Name: "Salt", UnitType: entity.UnitGrams})

	assert.ErrorIs(t, err, ErrIngredientExists)
}

func TestIngredientGet_NotFound(t *testing.T) {
	repo := new(mocks.MockIngredientRepository)
	service := NewIngredientService(repo)
	id := uuid.New()

	repo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrIngredientNotFound)

	_, err := service.Get(context.Background(), id)

	assert.ErrorIs(t, err, ErrIngredientNotFound)
}

func TestIngredientList(t *testing.T) {
	repo := new(mocks.MockIngredientRepository)
	service := NewIngredientService(repo)
	query := entity.IngredientListQuery{Page: 2, Limit: 2, Search: "pe"}

	repo.On("List", mock.Anything, query).Return([]entity.Ingredient{{Name: "Pepper"}}, int64(3), nil)

	result, err := service.List(context.Background(), query)

	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 2, result.Pagination.TotalPages)
}

// ===================== PantryService =====================

func TestPantryList(t *testing.T) {
	repo := new(mocks.MockDefaultIngredientRepository)
	service := NewPantryService(repo)
	userID := uuid.New()
	ingredientID := uuid.New()

	repo.On("List", mock.Anything, userID, 1, 10).Return([]entity.UserDefaultIngredient{
		{UserID: userID, IngredientID: ingredientID, Ingredient: &entity.Ingredient{ID: ingredientID, Name: "Eggs", UnitType: entity.UnitPieces}},
	}, int64(1), nil)

	result, err := service.List(context.Background(), userID, 1, 10)

	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Eggs", result.Data[0].Name)
	assert.Equal(t, entity.UnitPieces, result.Data[0].UnitType)
	assert.Equal(t, 1, result.Pagination.TotalPages)
}

func TestPantryAdd_Errors(t *testing.T) {
	userID, ingredientID := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"duplicate", repository.ErrDefaultIngredientExists, ErrPantryDuplicate},
		{"unknown ingredient", repository.ErrUnknownIngredientRef, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockDefaultIngredientRepository)
			service := NewPantryService(repo)
			repo.On("Add", mock.Anything, mock.AnythingOfType("*entity.UserDefaultIngredient")).Return(tt.repoErr)

			err := service.Add(context.Background(), userID, ingredientID)

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPantryRemove_NotFound(t *testing.T) {
	repo := new(mocks.MockDefaultIngredientRepository)
	service := NewPantryService(repo)
	userID, ingredientID := uuid.New(), uuid.New()

	repo.On("Remove", mock.Anything, userID, ingredientID).Return(repository.ErrDefaultIngredientNotFound)

	err := service.Remove(context.Background(), userID, ingredientID)

	assert.ErrorIs(t, err, ErrPantryItemNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ===================== RecipeViewService =====================

func TestRecordAsync(t *testing.T) {
	repo := new(mocks.MockRecipeViewRepository)
	service := NewRecipeViewService(repo)
	recipe := &entity.RecipeDetail{ID: uuid.New(), Name: "Borscht"}

	repo.On("Record", mock.Anything, mock.MatchedBy(func(v *entity.RecipeView) bool {
		return v.UserID == "user-1" && v.RecipeID == recipe.ID.String() && v.RecipeName == "Borscht"
	})).Return(errors.New("mongo unavailable"))

	select {
	case <-service.RecordAsync("user-1", recipe):
	case <-time.After(2 * time.Second):
		t.Fatal("view was not recorded")
	}

	repo.AssertExpectations(t)
}

func TestListViews(t *testing.T) {
	repo := new(mocks.MockRecipeViewRepository)
	service := NewRecipeViewService(repo)

	repo.On("ListByUser", mock.Anything, "user-1", 1, 20).Return([]entity.RecipeView{{UserID: "user-1"}}, int64(1), nil)

	result, err := service.ListByUser(context.Background(), "user-1", 1, 20)

	require.NoError(t, err)
	assert.Len(t, result.Data, 1)

	_, err = service.ListByUser(context.Background(), "user-1", 0, 20)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}
