package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"
	"recipebox/recipes-service/internal/app/recipes/infrastructure/cache"
	"recipebox/recipes-service/internal/app/recipes/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type RecipeServiceInterface interface {
	List(ctx context.Context, query entity.RecipeListQuery) (*entity.RecipeListResult, error)
	FindByIngredients(ctx context.Context, ingredientIDs []uuid.UUID, limit int, userID *uuid.UUID) (*entity.RecipeListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.RecipeDetail, error)
	Create(ctx context.Context, authorID uuid.UUID, req *entity.CreateRecipeRequest) (*entity.RecipeDetail, error)
	Update(ctx context.Context, id, userID uuid.UUID, req *entity.UpdateRecipeRequest) (*entity.RecipeDetail, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type RatingServiceInterface interface {
	Rate(ctx context.Context, recipeID, userID uuid.UUID, value int) (*entity.RatingSummary, error)
}

type RecipeViewServiceInterface interface {
	RecordAsync(userID string, recipe *entity.RecipeDetail) <-chan struct{}
	ListByUser(ctx context.Context, userID string, page, limit int) (*entity.RecipeViewListResult, error)
}

// CacheTTL - время жизни закэшированных ответов
type CacheTTL struct {
	List time.Duration
	Item time.Duration
}

type RecipeHandler struct {
	recipeService RecipeServiceInterface
	ratingService RatingServiceInterface
	viewService   RecipeViewServiceInterface
	cache         infrastructure.ResponseCache
	ttl           CacheTTL
	rankerLimit   int
	validator     *validator.Validate
}

func NewRecipeHandler(
	recipeService RecipeServiceInterface,
	ratingService RatingServiceInterface,
	viewService RecipeViewServiceInterface,
	responseCache infrastructure.ResponseCache,
	ttl CacheTTL,
	rankerLimit int,
) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		ratingService: ratingService,
		viewService:   viewService,
		cache:         responseCache,
		ttl:           ttl,
		rankerLimit:   rankerLimit,
		validator:     validator.New(),
	}
}

// ListRecipes GET /api/recipes
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, limit, ok := parsePage(c, entity.DefaultLimit)
	if !ok {
		return
	}

	query := entity.RecipeListQuery{
		Page:      page,
		Limit:     limit,
		SortBy:    c.DefaultQuery("sortBy", entity.SortByCreatedAt),
		SortOrder: entity.SortOrder(c.DefaultQuery("sortOrder", string(entity.SortDesc))),
	}

	if raw := c.Query("complexity"); raw != "" {
		complexity := entity.ComplexityLevel(raw)
		query.Complexity = &complexity
	}

	if raw := c.Query("authorId"); raw != "" {
		authorID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid author ID"})
			return
		}
		query.AuthorID = &authorID
	}

	key := cache.Key("recipes:list", c.Request.URL.Query())
	serveCached(c, h.cache, key, h.ttl.List, func(ctx context.Context) (interface{}, error) {
		return h.recipeService.List(ctx, query)
	})
}

// FindByIngredients GET /api/recipes/find-by-ingredients?ingredientIds=a,b,c
func (h *RecipeHandler) FindByIngredients(c *gin.Context) {
	ids, invalid := parseIDList(c.Query("ingredientIds"))
	if len(invalid) > 0 {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{
			Error:      "Invalid ingredient IDs",
			InvalidIDs: invalid,
		})
		return
	}
	if len(ids) == 0 {
		writeError(c, service.ErrNoIngredients)
		return
	}

	var userID *uuid.UUID
	if id, ok := currentUserID(c); ok {
		userID = &id
	}

	key := cache.Key("recipes:search", c.Request.URL.Query())
	serveCached(c, h.cache, key, h.ttl.List, func(ctx context.Context) (interface{}, error) {
		return h.recipeService.FindByIngredients(ctx, ids, h.rankerLimit, userID)
	})
}

// GetRecipe GET /api/recipes/:id
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "recipe")
	if !ok {
		return
	}

	key := cache.Key("recipes:get:"+id.String(), nil)
	data, ok := serveCached(c, h.cache, key, h.ttl.Item, func(ctx context.Context) (interface{}, error) {
		return h.recipeService.Get(ctx, id)
	})
	if !ok {
		return
	}

	userID := c.GetString(userIDKey)
	if userID == "" || h.viewService == nil {
		return
	}

	var detail entity.RecipeDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		logger.Warn().Err(err).Str("recipe_id", id.String()).Msg("Failed to decode cached recipe for view history")
		return
	}
	h.viewService.RecordAsync(userID, &detail)
}

// CreateRecipe POST /api/recipes
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req entity.CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	recipe, err := h.recipeService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	invalidateCache(c, h.cache)
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe PUT /api/recipes/:id
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c, "id", "recipe")
	if !ok {
		return
	}

	var req entity.UpdateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	recipe, err := h.recipeService.Update(c.Request.Context(), id, userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	invalidateCache(c, h.cache)
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe DELETE /api/recipes/:id
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c, "id", "recipe")
	if !ok {
		return
	}

	if err := h.recipeService.Delete(c.Request.Context(), id, userID); err != nil {
		writeError(c, err)
		return
	}

	invalidateCache(c, h.cache)
	c.Status(http.StatusNoContent)
}

// RateRecipe POST /api/recipes/:id/rating
func (h *RecipeHandler) RateRecipe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c, "id", "recipe")
	if !ok {
		return
	}

	// 4.5 или "5" не разбираются в int - это тот же невалидный рейтинг
	var req entity.RateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidRating)
		return
	}

	summary, err := h.ratingService.Rate(c.Request.Context(), id, userID, req.Rating)
	if err != nil {
		writeError(c, err)
		return
	}

	invalidateCache(c, h.cache)
	c.JSON(http.StatusOK, summary)
}

// RecipeViews GET /api/users/me/recipe-views
func (h *RecipeHandler) RecipeViews(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	page, limit, ok := parsePage(c, entity.DefaultLimit)
	if !ok {
		return
	}

	views, err := h.viewService.ListByUser(c.Request.Context(), userID.String(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// parseIDList разбирает список id через запятую, пустые элементы пропускаются
func parseIDList(raw string) ([]uuid.UUID, []string) {
	var (
		ids     []uuid.UUID
		invalid []string
	)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}
