package entity

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		limit int
		want  int
	}{
		{"empty result has zero pages", 0, 10, 0},
		{"exact multiple", 20, 10, 2},
		{"partial last page", 21, 10, 3},
		{"single item", 1, 100, 1},
		{"limit equals total", 7, 7, 1},
		{"zero limit", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPages(tt.total, tt.limit))
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(3, 10, 21)

	assert.Equal(t, Pagination{Page: 3, Limit: 10, TotalItems: 21, TotalPages: 3}, p)
}

func TestComplexityLevel_Valid(t *testing.T) {
	assert.True(t, ComplexityEasy.Valid())
	assert.True(t, ComplexityMedium.Valid())
	assert.True(t, ComplexityHard.Valid())
	assert.False(t, ComplexityLevel("extreme").Valid())
	assert.False(t, ComplexityLevel("").Valid())
}

func TestRecipeSteps_ValueAndScan(t *testing.T) {
	steps := RecipeSteps{{Step: 1, Description: "Boil water"}, {Step: 2, Description: "Add pasta"}}

	value, err := steps.Value()
	require.NoError(t, err)

	var scanned RecipeSteps
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, steps, scanned)

	var fromString RecipeSteps
	require.NoError(t, fromString.Scan(`[{"step":1,"description":"Mix"}]`))
	assert.Len(t, fromString, 1)
}

func TestRecipeSteps_ValueNil(t *testing.T) {
	var steps RecipeSteps

	value, err := steps.Value()

	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)
}

func TestRecipeSteps_ScanUnsupported(t *testing.T) {
	var steps RecipeSteps

	err := steps.Scan(42)

	assert.Error(t, err)
}

func TestRecipeSteps_Sorted(t *testing.T) {
	steps := RecipeSteps{{Step: 3, Description: "c"}, {Step: 1, Description: "a"}, {Step: 2, Description: "b"}}

	sorted := steps.Sorted()

	assert.Equal(t, []int{1, 2, 3}, []int{sorted[0].Step, sorted[1].Step, sorted[2].Step})
	assert.Equal(t, 3, steps[0].Step, "original slice must not be reordered")
}

func TestNewRecipeDetail_JoinsIngredientNames(t *testing.T) {
	ingredientID := uuid.New()
	recipe := &Recipe{
		ID:    uuid.New(),
		Name:  "Pancakes",
		Steps: RecipeSteps{{Step: 2, Description: "Fry"}, {Step: 1, Description: "Mix"}},
		Ingredients: []RecipeIngredient{
			{
				ID:           uuid.New(),
				IngredientID: ingredientID,
				Amount:       250,
				Ingredient:   &Ingredient{ID: ingredientID, Name: "Milk", UnitType: UnitMilliliters},
			},
		},
	}

	detail := NewRecipeDetail(recipe)

	require.Len(t, detail.Ingredients, 1)
	assert.Equal(t, "Milk", detail.Ingredients[0].Name)
	assert.Equal(t, UnitMilliliters, detail.Ingredients[0].UnitType)
	assert.Equal(t, 1, detail.Steps[0].Step)
}

// AutoMigrate создает FK дочерней таблицы из связей, зарегистрированных в ее схеме
func TestRecipeChildrenCascadeOnDelete(t *testing.T) {
	cache := &sync.Map{}
	_, err := schema.Parse(&Recipe{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, child := range []interface{}{&RecipeRating{}, &RecipeIngredient{}} {
		childSchema, err := schema.Parse(child, cache, schema.NamingStrategy{})
		require.NoError(t, err)

		var fk *schema.Constraint
		for _, rel := range childSchema.Relationships.Relations {
			if c := rel.ParseConstraint(); c != nil && c.Schema == childSchema && c.ReferenceSchema.Table == "recipes" {
				fk = c
			}
		}

		require.NotNil(t, fk, "no foreign key from %s to recipes", childSchema.Table)
		assert.Equal(t, "CASCADE", fk.OnDelete, childSchema.Table)
		require.Len(t, fk.ForeignKeys, 1)
		assert.Equal(t, "recipe_id", fk.ForeignKeys[0].DBName)
	}
}
