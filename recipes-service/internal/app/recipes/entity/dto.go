package entity

import (
	"time"

	"github.com/google/uuid"
)

// Границы пагинации для всех списков
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Поля сортировки рецептов
const (
	SortByName      = "name"
	SortByRating    = "rating"
	SortByPrepTime  = "prep_time"
	SortByCreatedAt = "created_at"
)

// RecipeListQuery - параметры листинга рецептов.
// Неизвестные SortBy/SortOrder не ошибка: откат на created_at desc.
type RecipeListQuery struct {
	Page       int
	Limit      int
	Complexity *ComplexityLevel
	AuthorID   *uuid.UUID
	SortBy     string
	SortOrder  SortOrder
}

type IngredientListQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string // name, unit_type, created_at
	SortOrder SortOrder
}

type CreateRecipeRequest struct {
	Name                   string                    `json:"name" validate:"required,min=1,max=255"`
	PreparationTimeMinutes int                       `json:"preparation_time_minutes" validate:"required,gt=0"`
	ComplexityLevel        ComplexityLevel           `json:"complexity_level" validate:"required,oneof=easy medium hard"`
	Steps                  []RecipeStep              `json:"steps" validate:"required,min=1,dive"`
	Ingredients            []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
}

// UpdateRecipeRequest - частичное обновление, nil поля не меняются.
// Ingredients != nil заменяет список ингредиентов целиком.
type UpdateRecipeRequest struct {
	Name                   *string                   `json:"name" validate:"omitempty,min=1,max=255"`
	PreparationTimeMinutes *int                      `json:"preparation_time_minutes" validate:"omitempty,gt=0"`
	ComplexityLevel        *ComplexityLevel          `json:"complexity_level" validate:"omitempty,oneof=easy medium hard"`
	Steps                  []RecipeStep              `json:"steps" validate:"omitempty,min=1,dive"`
	Ingredients            []RecipeIngredientRequest `json:"ingredients" validate:"omitempty,min=1,dive"`
}

type RecipeIngredientRequest struct {
	IngredientID             uuid.UUID `json:"ingredient_id" validate:"required"`
	Amount                   float64   `json:"amount" validate:"required,gt=0"`
	IsOptional               bool      `json:"is_optional"`
	SubstituteRecommendation *string   `json:"substitute_recommendation" validate:"omitempty,max=500"`
}

type RateRecipeRequest struct {
	Rating int `json:"rating"`
}

type CreateIngredientRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=100"`
	UnitType UnitType `json:"unit_type" validate:"required,oneof=ml g szt"`
}

type AddDefaultIngredientRequest struct {
	IngredientID uuid.UUID `json:"ingredient_id" validate:"required"`
}

// Pagination - конверт пагинации, общий для всех списков
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// TotalPages - ceil(total/limit), для пустого результата 0 страниц.
// Одно правило и для листинга, и для поиска по ингредиентам.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func NewPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: TotalPages(total, limit),
	}
}

// RecipeListItem - рецепт в списке, MatchCount заполнен только для поиска по ингредиентам
type RecipeListItem struct {
	ID                     uuid.UUID       `json:"id"`
	Name                   string          `json:"name"`
	PreparationTimeMinutes int             `json:"preparation_time_minutes"`
	ComplexityLevel        ComplexityLevel `json:"complexity_level"`
	AuthorID               uuid.UUID       `json:"author_id"`
	AverageRating          float64         `json:"average_rating"`
	TotalVotes             int             `json:"total_votes"`
	MatchCount             *int            `json:"match_count,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func NewRecipeListItem(r *Recipe) RecipeListItem {
	return RecipeListItem{
		ID:                     r.ID,
		Name:                   r.Name,
		PreparationTimeMinutes: r.PreparationTimeMinutes,
		ComplexityLevel:        r.ComplexityLevel,
		AuthorID:               r.AuthorID,
		AverageRating:          r.AverageRating,
		TotalVotes:             r.TotalVotes,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// RankedRecipe - строка результата ранжирования
type RankedRecipe struct {
	Recipe
	MatchCount int `gorm:"column:match_count"`
}

type RecipeListResult struct {
	Data       []RecipeListItem `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

type RecipeIngredientDetail struct {
	ID                       uuid.UUID `json:"id"`
	IngredientID             uuid.UUID `json:"ingredient_id"`
	Name                     string    `json:"name"`
	UnitType                 UnitType  `json:"unit_type"`
	Amount                   float64   `json:"amount"`
	IsOptional               bool      `json:"is_optional"`
	SubstituteRecommendation *string   `json:"substitute_recommendation,omitempty"`
}

type RecipeDetail struct {
	ID                     uuid.UUID                `json:"id"`
	Name                   string                   `json:"name"`
	PreparationTimeMinutes int                      `json:"preparation_time_minutes"`
	ComplexityLevel        ComplexityLevel          `json:"complexity_level"`
	Steps                  RecipeSteps              `json:"steps"`
	AuthorID               uuid.UUID                `json:"author_id"`
	AverageRating          float64                  `json:"average_rating"`
	TotalVotes             int                      `json:"total_votes"`
	Ingredients            []RecipeIngredientDetail `json:"ingredients"`
	CreatedAt              time.Time                `json:"created_at"`
	UpdatedAt              time.Time                `json:"updated_at"`
}

func NewRecipeDetail(r *Recipe) *RecipeDetail {
	detail := &RecipeDetail{
		ID:                     r.ID,
		Name:                   r.Name,
		PreparationTimeMinutes: r.PreparationTimeMinutes,
		ComplexityLevel:        r.ComplexityLevel,
		Steps:                  r.Steps.Sorted(),
		AuthorID:               r.AuthorID,
		AverageRating:          r.AverageRating,
		TotalVotes:             r.TotalVotes,
		Ingredients:            make([]RecipeIngredientDetail, 0, len(r.Ingredients)),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}

	for _, ri := range r.Ingredients {
		item := RecipeIngredientDetail{
			ID:                       ri.ID,
			IngredientID:             ri.IngredientID,
			Amount:                   ri.Amount,
			IsOptional:               ri.IsOptional,
			SubstituteRecommendation: ri.SubstituteRecommendation,
		}
		if ri.Ingredient != nil {
			item.Name = ri.Ingredient.Name
			item.UnitType = ri.Ingredient.UnitType
		}
		detail.Ingredients = append(detail.Ingredients, item)
	}

	return detail
}

type IngredientListResult struct {
	Data       []Ingredient `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

type DefaultIngredientItem struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	UnitType     UnitType  `json:"unit_type"`
	CreatedAt    time.Time `json:"created_at"`
}

type DefaultIngredientListResult struct {
	Data       []DefaultIngredientItem `json:"data"`
	Pagination Pagination              `json:"pagination"`
}

type RecipeViewListResult struct {
	Data       []RecipeView `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

type ErrorResponse struct {
	Error      string   `json:"error"`
	InvalidIDs []string `json:"invalid_ids,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
