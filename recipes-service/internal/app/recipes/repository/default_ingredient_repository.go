package repository

import (
	"context"
	"fmt"

	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type defaultIngredientRepository struct {
	db *gorm.DB
}

func NewDefaultIngredientRepository(db *gorm.DB) DefaultIngredientRepository {
	return &defaultIngredientRepository{db: db}
}

func (r *defaultIngredientRepository) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]entity.UserDefaultIngredient, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&entity.UserDefaultIngredient{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count default ingredients: %w", err)
	}

	items := make([]entity.UserDefaultIngredient, 0)
	if total == 0 {
		return items, 0, nil
	}

	err = r.db.WithContext(ctx).
		Preload("Ingredient").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list default ingredients: %w", err)
	}

	return items, total, nil
}

func (r *defaultIngredientRepository) Add(ctx context.Context, item *entity.UserDefaultIngredient) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Omit("Ingredient").Create(item).Error; err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return ErrDefaultIngredientExists
		case pgForeignKeyViolation:
			return ErrUnknownIngredientRef
		}
		return fmt.Errorf("failed to add default ingredient: %w", err)
	}

	return nil
}

func (r *defaultIngredientRepository) Remove(ctx context.Context, userID, ingredientID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND ingredient_id = ?", userID, ingredientID).
		Delete(&entity.UserDefaultIngredient{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove default ingredient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDefaultIngredientNotFound
	}

	return nil
}
