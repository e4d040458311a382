package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrRecipeNotFound            = errors.New("recipe not found")
	ErrDuplicateRating           = errors.New("rating for this recipe and user already exists")
	ErrRatingOutOfRange          = errors.New("rating violates range constraint")
	ErrIngredientNotFound        = errors.New("ingredient not found")
	ErrIngredientAlreadyExists   = errors.New("ingredient with this name already exists")
	ErrUnknownIngredientRef      = errors.New("referenced ingredient does not exist")
	ErrDefaultIngredientExists   = errors.New("ingredient already in user defaults")
	ErrDefaultIngredientNotFound = errors.New("ingredient not in user defaults")
)

// Коды ошибок PostgreSQL
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// pgCode достает SQLSTATE из ошибки драйвера, "" если это не ошибка PostgreSQL
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
