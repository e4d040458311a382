package handler

import (
	"context"
	"net/http"

	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"
	"recipebox/recipes-service/internal/app/recipes/infrastructure/cache"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	ingredientsDefaultLimit = 20
	pantryDefaultLimit      = 50
)

type IngredientServiceInterface interface {
	List(ctx context.Context, query entity.IngredientListQuery) (*entity.IngredientListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Ingredient, error)
	Create(ctx context.Context, req *entity.CreateIngredientRequest) (*entity.Ingredient, error)
}

type PantryServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, page, limit int) (*entity.DefaultIngredientListResult, error)
	Add(ctx context.Context, userID, ingredientID uuid.UUID) error
	Remove(ctx context.Context, userID, ingredientID uuid.UUID) error
}

type IngredientHandler struct {
	ingredientService IngredientServiceInterface
	pantryService     PantryServiceInterface
	cache             infrastructure.ResponseCache
	ttl               CacheTTL
	validator         *validator.Validate
}

func NewIngredientHandler(
	ingredientService IngredientServiceInterface,
	pantryService PantryServiceInterface,
	responseCache infrastructure.ResponseCache,
	ttl CacheTTL,
) *IngredientHandler {
	return &IngredientHandler{
		ingredientService: ingredientService,
		pantryService:     pantryService,
		cache:             responseCache,
		ttl:               ttl,
		validator:         validator.New(),
	}
}

// ListIngredients GET /api/ingredients
func (h *IngredientHandler) ListIngredients(c *gin.Context) {
	page, limit, ok := parsePage(c, ingredientsDefaultLimit)
	if !ok {
		return
	}

	query := entity.IngredientListQuery{
		Page:      page,
		Limit:     limit,
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sortBy", "name"),
		SortOrder: entity.SortOrder(c.DefaultQuery("sortOrder", string(entity.SortAsc))),
	}

	key := cache.Key("ingredients:list", c.Request.URL.Query())
	serveCached(c, h.cache, key, h.ttl.List, func(ctx context.Context) (interface{}, error) {
		return h.ingredientService.List(ctx, query)
	})
}

// GetIngredient GET /api/ingredients/:id
func (h *IngredientHandler) GetIngredient(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "ingredient")
	if !ok {
		return
	}

	key := cache.Key("ingredients:get:"+id.String(), nil)
	serveCached(c, h.cache, key, h.ttl.Item, func(ctx context.Context) (interface{}, error) {
		return h.ingredientService.Get(ctx, id)
	})
}

// CreateIngredient POST /api/ingredients
func (h *IngredientHandler) CreateIngredient(c *gin.Context) {
	var req entity.CreateIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	ingredient, err := h.ingredientService.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	invalidateCache(c, h.cache)
	c.JSON(http.StatusCreated, ingredient)
}

// ListPantry GET /api/users/me/default-ingredients
func (h *IngredientHandler) ListPantry(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	page, limit, ok := parsePage(c, pantryDefaultLimit)
	if !ok {
		return
	}

	items, err := h.pantryService.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// AddToPantry POST /api/users/me/default-ingredients
func (h *IngredientHandler) AddToPantry(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req entity.AddDefaultIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	if err := h.pantryService.Add(c.Request.Context(), userID, req.IngredientID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entity.SuccessResponse{Message: "Ingredient added to defaults"})
}

// RemoveFromPantry DELETE /api/users/me/default-ingredients/:ingredient_id
func (h *IngredientHandler) RemoveFromPantry(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ingredientID, ok := parseIDParam(c, "ingredient_id", "ingredient")
	if !ok {
		return
	}

	if err := h.pantryService.Remove(c.Request.Context(), userID, ingredientID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
