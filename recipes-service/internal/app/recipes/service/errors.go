package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Классы ошибок, по ним handler выбирает HTTP статус
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// classifiedError - сообщение для клиента плюс класс ошибки
type classifiedError struct {
	class error
	msg   string
}

func (e *classifiedError) Error() string { return e.msg }
func (e *classifiedError) Unwrap() error { return e.class }

func newError(class error, msg string) error {
	return &classifiedError{class: class, msg: msg}
}

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrInvalidRating       = newError(ErrValidation, "rating must be an integer between 1 and 5")
	ErrInvalidPagination   = newError(ErrValidation, "page must be >= 1 and limit must be between 1 and 100")
	ErrNoIngredients       = newError(ErrValidation, "at least one ingredient id is required")
	ErrInvalidIngredientID = newError(ErrValidation, "invalid ingredient id")
	ErrInvalidComplexity   = newError(ErrValidation, "complexity must be one of easy, medium, hard")

	ErrRecipeNotFound     = newError(ErrNotFound, "recipe not found")
	ErrIngredientNotFound = newError(ErrNotFound, "ingredient not found")
	ErrPantryItemNotFound = newError(ErrNotFound, "ingredient is not in user defaults")

	ErrAlreadyRated     = newError(ErrConflict, "user has already rated this recipe")
	ErrIngredientExists = newError(ErrConflict, "ingredient with this name already exists")
	ErrPantryDuplicate  = newError(ErrConflict, "ingredient is already in user defaults")

	ErrNotRecipeAuthor = newError(ErrForbidden, "only the recipe author can modify this recipe")
)

// UnknownIngredientsError перечисляет все неизвестные id сразу, а не первый найденный
type UnknownIngredientsError struct {
	IDs []uuid.UUID
}

func (e *UnknownIngredientsError) Error() string {
	return "unknown ingredient ids: " + strings.Join(e.Strings(), ", ")
}

func (e *UnknownIngredientsError) Unwrap() error { return ErrValidation }

func (e *UnknownIngredientsError) Strings() []string {
	out := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		out[i] = id.String()
	}
	return out
}
