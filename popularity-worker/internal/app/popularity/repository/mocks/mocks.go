package mocks

import (
	"context"
	"time"

	"recipebox/popularity-worker/internal/app/popularity/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCounterStore мок для CounterStore
type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) Increment(ctx context.Context, ingredientIDs []uuid.UUID) error {
	args := m.Called(ctx, ingredientIDs)
	return args.Error(0)
}

func (m *MockCounterStore) Drain(ctx context.Context) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int64), args.Error(1)
}

func (m *MockCounterStore) Restore(ctx context.Context, counts map[uuid.UUID]int64) error {
	args := m.Called(ctx, counts)
	return args.Error(0)
}

// MockPopularityRepository мок для PopularityRepository
type MockPopularityRepository struct {
	mock.Mock
}

func (m *MockPopularityRepository) Upsert(ctx context.Context, counts map[uuid.UUID]int64, searchedAt time.Time) error {
	args := m.Called(ctx, counts, searchedAt)
	return args.Error(0)
}

func (m *MockPopularityRepository) Top(ctx context.Context, limit int) ([]entity.IngredientPopularity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.IngredientPopularity), args.Error(1)
}

// MockRatingAuditRepository мок для RatingAuditRepository
type MockRatingAuditRepository struct {
	mock.Mock
}

func (m *MockRatingAuditRepository) FindDrifted(ctx context.Context, limit int) ([]entity.RatingDrift, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RatingDrift), args.Error(1)
}

func (m *MockRatingAuditRepository) Repair(ctx context.Context, recipeID uuid.UUID) (*entity.RatingSummary, error) {
	args := m.Called(ctx, recipeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingSummary), args.Error(1)
}
