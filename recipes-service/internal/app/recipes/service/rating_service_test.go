package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/repository"
	"recipebox/recipes-service/internal/app/recipes/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryRatingStore - потокобезопасный аналог таблицы recipe_ratings
// с уникальностью (user_id, recipe_id) и пересчетом агрегата
type memoryRatingStore struct {
	mu      sync.Mutex
	ratings map[uuid.UUID]map[uuid.UUID]int
}

func newMemoryRatingStore() *memoryRatingStore {
	return &memoryRatingStore{ratings: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (m *memoryRatingStore) Exists(_ context.Context, recipeID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ratings[recipeID][userID]
	return ok, nil
}

func (m *memoryRatingStore) Rate(_ context.Context, rating *entity.RecipeRating) (*entity.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUser, ok := m.ratings[rating.RecipeID]
	if !ok {
		byUser = make(map[uuid.UUID]int)
		m.ratings[rating.RecipeID] = byUser
	}
	if _, dup := byUser[rating.UserID]; dup {
		return nil, repository.ErrDuplicateRating
	}
	byUser[rating.UserID] = rating.Rating

	sum := 0
	for _, v := range byUser {
		sum += v
	}
	return &entity.RatingSummary{
		AverageRating: math.Round(float64(sum)/float64(len(byUser))*100) / 100,
		TotalVotes:    len(byUser),
	}, nil
}

func existingRecipe(recipeRepo *mocks.MockRecipeRepository, recipeID uuid.UUID) {
	recipeRepo.On("GetByID", mock.Anything, recipeID).Return(&entity.Recipe{ID: recipeID}, nil)
}

func TestRate_Scenario(t *testing.T) {
	recipeRepo := new(mocks.MockRecipeRepository)
	store := newMemoryRatingStore()
	service := NewRatingService(recipeRepo, store)

	ctx := context.Background()
	recipeID := uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	existingRecipe(recipeRepo, recipeID)

	summary, err := service.Rate(ctx, recipeID, u1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, summary.AverageRating)
	assert.Equal(t, 1, summary.TotalVotes)

	summary, err = service.Rate(ctx, recipeID, u2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary.AverageRating)
	assert.Equal(t, 2, summary.TotalVotes)

	summary, err = service.Rate(ctx, recipeID, u1, 4)
	assert.ErrorIs(t, err, ErrAlreadyRated)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "user has already rated this recipe", err.Error())
	assert.Nil(t, summary)

	// состояние не изменилось
	summary, err = service.Rate(ctx, recipeID, uuid.New(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary.AverageRating)
	assert.Equal(t, 3, summary.TotalVotes)
}

func TestRate_Boundaries(t *testing.T) {
	tests := []struct {
		value   int
		wantErr bool
	}{
		{0, true},
		{6, true},
		{-1, true},
		{1, false},
		{5, false},
	}

	for _, tt := range tests {
		recipeRepo := new(mocks.MockRecipeRepository)
		ratingRepo := new(mocks.MockRatingRepository)
		service := NewRatingService(recipeRepo, ratingRepo)
		recipeID, userID := uuid.New(), uuid.New()

		if !tt.wantErr {
			existingRecipe(recipeRepo, recipeID)
			ratingRepo.On("Exists", mock.Anything, recipeID, userID).Return(false, nil)
			ratingRepo.On("Rate", mock.Anything, mock.AnythingOfType("*entity.RecipeRating")).
				Return(&entity.RatingSummary{AverageRating: float64(tt.value), TotalVotes: 1}, nil)
		}

		summary, err := service.Rate(context.Background(), recipeID, userID, tt.value)

		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRating, "value %d", tt.value)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, summary)
			// до хранилища запрос не доходит
			recipeRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
			ratingRepo.AssertNotCalled(t, "Rate", mock.Anything, mock.Anything)
		} else {
			assert.NoError(t, err, "value %d", tt.value)
			assert.Equal(t, float64(tt.value), summary.AverageRating)
		}
	}
}

func TestRate_RecipeNotFound(t *testing.T) {
	recipeRepo := new(mocks.MockRecipeRepository)
	ratingRepo := new(mocks.MockRatingRepository)
	service := NewRatingService(recipeRepo, ratingRepo)

	recipeID := uuid.New()
	recipeRepo.On("GetByID", mock.Anything, recipeID).Return(nil, repository.ErrRecipeNotFound)

	summary, err := service.Rate(context.Background(), recipeID, uuid.New(), 4)

	assert.ErrorIs(t, err, ErrRecipeNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, summary)
	ratingRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
}

func TestRate_DuplicateFromConstraint(t *testing.T) {
	recipeRepo := new(mocks.MockRecipeRepository)
	ratingRepo := new(mocks.MockRatingRepository)
	service := NewRatingService(recipeRepo, ratingRepo)

	recipeID, userID := uuid.New(), uuid.New()
	existingRecipe(recipeRepo, recipeID)
	// пре-чек проиграл гонку, вставку отсек unique constraint
	ratingRepo.On("Exists", mock.Anything, recipeID, userID).Return(false, nil)
	ratingRepo.On("Rate", mock.Anything, mock.Anything).Return(nil, repository.ErrDuplicateRating)

	_, err := service.Rate(context.Background(), recipeID, userID, 2)

	assert.ErrorIs(t, err, ErrAlreadyRated)
}

func TestRate_RepositoryError(t *testing.T) {
	recipeRepo := new(mocks.MockRecipeRepository)
	ratingRepo := new(mocks.MockRatingRepository)
	service := NewRatingService(recipeRepo, ratingRepo)

	recipeID, userID := uuid.New(), uuid.New()
	existingRecipe(recipeRepo, recipeID)
	ratingRepo.On("Exists", mock.Anything, recipeID, userID).Return(false, nil)
	ratingRepo.On("Rate", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := service.Rate(context.Background(), recipeID, userID, 2)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "failed to rate recipe")
}

func TestRate_ConcurrentDuplicates(t *testing.T) {
	recipeRepo := new(mocks.MockRecipeRepository)
	store := newMemoryRatingStore()
	service := NewRatingService(recipeRepo, store)

	recipeID, userID := uuid.New(), uuid.New()
	existingRecipe(recipeRepo, recipeID)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Rate(context.Background(), recipeID, userID, 4)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyRated):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	summary, err := service.Rate(context.Background(), recipeID, uuid.New(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalVotes)
	assert.Equal(t, 3.0, summary.AverageRating)
}
