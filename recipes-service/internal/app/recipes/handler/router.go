package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"
)

// Классы операций для rate governor
const (
	ClassRecipesList      = "recipes_list"
	ClassRecipesSearch    = "recipes_search"
	ClassRecipesGet       = "recipes_get"
	ClassRecipesWrite     = "recipes_write"
	ClassRecipesRate      = "recipes_rate"
	ClassIngredientsList  = "ingredients_list"
	ClassIngredientsGet   = "ingredients_get"
	ClassIngredientsWrite = "ingredients_write"
	ClassGeneral          = "general"
)

type RouterDeps struct {
	RecipeHandler     *RecipeHandler
	IngredientHandler *IngredientHandler
	AuthMiddleware    *AuthMiddleware
	Governor          infrastructure.RateGovernor
	GlobalLimiter     *rate.Limiter
}

func SetupRoutes(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware("recipes-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "recipes-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if deps.GlobalLimiter != nil {
		api.Use(GlobalRateLimit(deps.GlobalLimiter))
	}

	auth := deps.AuthMiddleware
	limit := func(class string) gin.HandlerFunc {
		return RateLimit(deps.Governor, class)
	}

	recipes := api.Group("/recipes")
	{
		rh := deps.RecipeHandler

		recipes.GET("", auth.Optional(), limit(ClassRecipesList), rh.ListRecipes)
		recipes.GET("/find-by-ingredients", auth.Optional(), limit(ClassRecipesSearch), rh.FindByIngredients)
		recipes.GET("/:id", auth.Optional(), limit(ClassRecipesGet), rh.GetRecipe)

		recipes.POST("", auth.Authenticate(), limit(ClassRecipesWrite), rh.CreateRecipe)
		recipes.PUT("/:id", auth.Authenticate(), limit(ClassRecipesWrite), rh.UpdateRecipe)
		recipes.DELETE("/:id", auth.Authenticate(), limit(ClassRecipesWrite), rh.DeleteRecipe)
		recipes.POST("/:id/rating", auth.Authenticate(), limit(ClassRecipesRate), rh.RateRecipe)
	}

	ingredients := api.Group("/ingredients")
	{
		ih := deps.IngredientHandler

		ingredients.GET("", auth.Optional(), limit(ClassIngredientsList), ih.ListIngredients)
		ingredients.GET("/:id", auth.Optional(), limit(ClassIngredientsGet), ih.GetIngredient)
		ingredients.POST("", auth.Authenticate(), limit(ClassIngredientsWrite), ih.CreateIngredient)
	}

	me := api.Group("/users/me")
	me.Use(auth.Authenticate(), limit(ClassGeneral))
	{
		me.GET("/default-ingredients", deps.IngredientHandler.ListPantry)
		me.POST("/default-ingredients", deps.IngredientHandler.AddToPantry)
		me.DELETE("/default-ingredients/:ingredient_id", deps.IngredientHandler.RemoveFromPantry)
		me.GET("/recipe-views", deps.RecipeHandler.RecipeViews)
	}

	return router
}
