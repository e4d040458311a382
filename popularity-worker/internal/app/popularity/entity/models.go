package entity

import (
	"time"

	"github.com/google/uuid"
)

const EventIngredientsSearched = "INGREDIENTS_SEARCHED"

// IngredientSearchEvent - событие из топика ingredient_events
type IngredientSearchEvent struct {
	EventType     string      `json:"event_type"`
	IngredientIDs []uuid.UUID `json:"ingredient_ids"`
	UserID        *uuid.UUID  `json:"user_id,omitempty"`
	ResultCount   int         `json:"result_count"`
	Timestamp     time.Time   `json:"timestamp"`
}

// IngredientPopularity - сколько раз ингредиент участвовал в поиске
type IngredientPopularity struct {
	IngredientID   uuid.UUID `json:"ingredient_id" gorm:"type:uuid;primaryKey"`
	SearchCount    int64     `json:"search_count" gorm:"not null"`
	LastSearchedAt time.Time `json:"last_searched_at" gorm:"not null"`
}

func (IngredientPopularity) TableName() string {
	return "ingredient_popularity"
}

// RatingDrift - рецепт, у которого сохраненный агрегат не совпадает с recipe_ratings
type RatingDrift struct {
	RecipeID      uuid.UUID `gorm:"column:recipe_id"`
	StoredAverage float64   `gorm:"column:stored_average"`
	StoredVotes   int       `gorm:"column:stored_votes"`
	ActualAverage float64   `gorm:"column:actual_average"`
	ActualVotes   int       `gorm:"column:actual_votes"`
}

// RatingSummary - пересчитанный агрегат
type RatingSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalVotes    int     `json:"total_votes"`
}
