package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComplexityLevel - сложность рецепта
type ComplexityLevel string

const (
	ComplexityEasy   ComplexityLevel = "easy"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHard   ComplexityLevel = "hard"
)

func (c ComplexityLevel) Valid() bool {
	switch c {
	case ComplexityEasy, ComplexityMedium, ComplexityHard:
		return true
	}
	return false
}

// UnitType - единица измерения ингредиента
type UnitType string

const (
	UnitMilliliters UnitType = "ml"
	UnitGrams       UnitType = "g"
	UnitPieces      UnitType = "szt"
)

// Границы оценки, продублированы CHECK constraint в recipe_ratings
const (
	MinRating = 1
	MaxRating = 5
)

// Recipe - корень агрегата: ингредиенты и оценки удаляются вместе с ним.
// AverageRating и TotalVotes пишет только агрегатор оценок.
type Recipe struct {
	ID                     uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	Name                   string             `json:"name" gorm:"type:varchar(255);not null"`
	PreparationTimeMinutes int                `json:"preparation_time_minutes" gorm:"not null;check:preparation_time_minutes > 0"`
	ComplexityLevel        ComplexityLevel    `json:"complexity_level" gorm:"type:varchar(10);not null"`
	Steps                  RecipeSteps        `json:"steps" gorm:"type:jsonb;not null"`
	AuthorID               uuid.UUID          `json:"author_id" gorm:"type:uuid;not null;index"`
	AverageRating          float64            `json:"average_rating" gorm:"type:decimal(3,2);not null;default:0"`
	TotalVotes             int                `json:"total_votes" gorm:"not null;default:0;check:total_votes >= 0"`
	CreatedAt              time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
	Ingredients            []RecipeIngredient `json:"ingredients,omitempty" gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Ratings                []RecipeRating     `json:"-" gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// RecipeStep - шаг приготовления
type RecipeStep struct {
	Step        int    `json:"step" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,min=1,max=2000"`
}

// RecipeSteps хранится в колонке jsonb
type RecipeSteps []RecipeStep

func (s RecipeSteps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *RecipeSteps) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*s = RecipeSteps{}
		return nil
	default:
		return fmt.Errorf("unsupported type for recipe steps: %T", value)
	}
	return json.Unmarshal(data, s)
}

// RecipeIngredient - связь рецепта с ингредиентом, заменяется целиком при update
type RecipeIngredient struct {
	ID                       uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID                 uuid.UUID   `json:"recipe_id" gorm:"type:uuid;not null;index"`
	IngredientID             uuid.UUID   `json:"ingredient_id" gorm:"type:uuid;not null;index"`
	Amount                   float64     `json:"amount" gorm:"not null;check:amount > 0"`
	IsOptional               bool        `json:"is_optional" gorm:"not null;default:false"`
	SubstituteRecommendation *string     `json:"substitute_recommendation,omitempty" gorm:"type:text"`
	CreatedAt                time.Time   `json:"created_at" gorm:"autoCreateTime"`
	Ingredient               *Ingredient `json:"-" gorm:"foreignKey:IngredientID"`
}

func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// RecipeRating - одна оценка пользователя, UNIQUE(user_id, recipe_id)
type RecipeRating struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uq_recipe_ratings_user_recipe"`
	RecipeID  uuid.UUID `json:"recipe_id" gorm:"type:uuid;not null;uniqueIndex:uq_recipe_ratings_user_recipe;index"`
	Rating    int       `json:"rating" gorm:"type:smallint;not null;check:rating BETWEEN 1 AND 5"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (RecipeRating) TableName() string {
	return "recipe_ratings"
}

// RatingSummary - производные поля рецепта после пересчета
type RatingSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalVotes    int     `json:"total_votes"`
}

// Ingredient - справочник ингредиентов, имя уникально без учета регистра
type Ingredient struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	UnitType  UnitType  `json:"unit_type" gorm:"type:varchar(10);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}

// UserDefaultIngredient - ингредиент из "кладовой" пользователя
type UserDefaultIngredient struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uq_user_default_ingredient"`
	IngredientID uuid.UUID   `json:"ingredient_id" gorm:"type:uuid;not null;uniqueIndex:uq_user_default_ingredient"`
	CreatedAt    time.Time   `json:"created_at" gorm:"autoCreateTime"`
	Ingredient   *Ingredient `json:"-" gorm:"foreignKey:IngredientID"`
}

func (UserDefaultIngredient) TableName() string {
	return "user_default_ingredients"
}

// RecipeView - запись истории просмотров в MongoDB
type RecipeView struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"user_id" bson:"user_id"`
	RecipeID   string             `json:"recipe_id" bson:"recipe_id"`
	RecipeName string             `json:"recipe_name" bson:"recipe_name"`
	ViewedAt   time.Time          `json:"viewed_at" bson:"viewed_at"`
}

// IngredientSearchEvent публикуется в Kafka после успешного find-by-ingredients
type IngredientSearchEvent struct {
	EventType     string      `json:"event_type"` // INGREDIENTS_SEARCHED
	IngredientIDs []uuid.UUID `json:"ingredient_ids"`
	UserID        *uuid.UUID  `json:"user_id,omitempty"`
	ResultCount   int         `json:"result_count"`
	Timestamp     time.Time   `json:"timestamp"`
}

const EventIngredientsSearched = "INGREDIENTS_SEARCHED"

// Sorted возвращает копию шагов, упорядоченную по номеру шага
func (s RecipeSteps) Sorted() RecipeSteps {
	out := make(RecipeSteps, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}
