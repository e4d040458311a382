package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/popularity-worker/internal/app/popularity/entity"
	"recipebox/popularity-worker/internal/app/popularity/repository"

	"github.com/google/uuid"
)

const MaxTopLimit = 100

var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

type PopularityService struct {
	counters repository.CounterStore
	repo     repository.PopularityRepository
	now      func() time.Time
}

func NewPopularityService(counters repository.CounterStore, repo repository.PopularityRepository) *PopularityService {
	return &PopularityService{
		counters: counters,
		repo:     repo,
		now:      time.Now,
	}
}

// RecordSearch учитывает каждый ингредиент события один раз.
// Чужие типы событий пропускаются без ошибки, чтобы offset закоммитился.
func (s *PopularityService) RecordSearch(ctx context.Context, event *entity.IngredientSearchEvent) error {
	if event.EventType != entity.EventIngredientsSearched {
		logger.Debug().Str("event_type", event.EventType).Msg("Skipping unsupported event")
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(event.IngredientIDs))
	ids := make([]uuid.UUID, 0, len(event.IngredientIDs))
	for _, id := range event.IngredientIDs {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil
	}

	if err := s.counters.Increment(ctx, ids); err != nil {
		return fmt.Errorf("failed to record ingredient search: %w", err)
	}

	return nil
}

// Flush забирает счетчики из Redis; при ошибке записи возвращает их обратно
func (s *PopularityService) Flush(ctx context.Context) (int, error) {
	counts, err := s.counters.Drain(ctx)
	if err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}

	if err := s.repo.Upsert(ctx, counts, s.now().UTC()); err != nil {
		if restoreErr := s.counters.Restore(ctx, counts); restoreErr != nil {
			// счетчики этого окна потеряны
			logger.Error().Err(restoreErr).
				Int("ingredients", len(counts)).
				Msg("Failed to restore popularity counters after flush failure")
		}
		return 0, err
	}

	return len(counts), nil
}

func (s *PopularityService) Top(ctx context.Context, limit int) ([]entity.IngredientPopularity, error) {
	if limit < 1 || limit > MaxTopLimit {
		return nil, ErrInvalidLimit
	}
	return s.repo.Top(ctx, limit)
}
