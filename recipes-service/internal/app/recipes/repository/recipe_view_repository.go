package repository

import (
	"context"
	"fmt"
	"time"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type recipeViewRepository struct {
	collection *mongo.Collection
}

// NewRecipeViewRepository создает репозиторий истории просмотров.
// Индекс (user_id, viewed_at desc) покрывает выборку истории пользователя.
func NewRecipeViewRepository(db *mongo.Database) RecipeViewRepository {
	collection := db.Collection("recipe_views")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "viewed_at", Value: -1},
		},
		Options: options.Index().SetName("user_viewed_at_idx"),
	}

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		// индекс мог уже существовать, работа продолжается
		logger.Warn().Err(err).Msg("Failed to create index on recipe_views")
	}

	return &recipeViewRepository{collection: collection}
}

func (r *recipeViewRepository) Record(ctx context.Context, view *entity.RecipeView) error {
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, view)
	if err != nil {
		return fmt.Errorf("failed to record recipe view: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		view.ID = oid
	}

	return nil
}

func (r *recipeViewRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]entity.RecipeView, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count recipe views: %w", err)
	}

	views := make([]entity.RecipeView, 0)
	if total == 0 {
		return views, 0, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "viewed_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find recipe views: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &views); err != nil {
		return nil, 0, fmt.Errorf("failed to decode recipe views: %w", err)
	}

	return views, total, nil
}
