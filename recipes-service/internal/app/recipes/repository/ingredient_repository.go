package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipebox/pkg/metrics"
	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier - подмножество pgxpool.Pool, которым пользуется репозиторий
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ingredientSortColumns = map[string]string{
	"name":       "name",
	"unit_type":  "unit_type",
	"created_at": "created_at",
}

type ingredientRepository struct {
	db pgxQuerier // Пул соединений с PostgreSQL, справочник читается напрямую через pgx
}

// NewIngredientRepository создает новый репозиторий ингредиентов
func NewIngredientRepository(db *pgxpool.Pool) IngredientRepository {
	return &ingredientRepository{db: db}
}

// Create проверяет уникальность имени через уникальный индекс по LOWER(name)
func (r *ingredientRepository) Create(ctx context.Context, ingredient *entity.Ingredient) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "ingredients")
	defer timer.ObserveDuration()

	query := `
		INSERT INTO ingredients (id, name, unit_type, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, ingredient.ID, ingredient.Name, ingredient.UnitType, ingredient.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrIngredientAlreadyExists
		}
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return fmt.Errorf("failed to create ingredient: %w", err)
	}

	return nil
}

func (r *ingredientRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Ingredient, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "ingredients")
	defer timer.ObserveDuration()

	query := `SELECT id, name, unit_type, created_at FROM ingredients WHERE id = $1`

	var ingredient entity.Ingredient
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ingredient.ID,
		&ingredient.Name,
		&ingredient.UnitType,
		&ingredient.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIngredientNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient by id: %w", err)
	}

	return &ingredient, nil
}

func (r *ingredientRepository) GetByName(ctx context.Context, name string) (*entity.Ingredient, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "ingredients")
	defer timer.ObserveDuration()

	query := `SELECT id, name, unit_type, created_at FROM ingredients WHERE LOWER(name) = LOWER($1)`

	var ingredient entity.Ingredient
	err := r.db.QueryRow(ctx, query, strings.TrimSpace(name)).Scan(
		&ingredient.ID,
		&ingredient.Name,
		&ingredient.UnitType,
		&ingredient.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIngredientNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient by name: %w", err)
	}

	return &ingredient, nil
}

func (r *ingredientRepository) List(ctx context.Context, q entity.IngredientListQuery) ([]entity.Ingredient, int64, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "ingredients")
	defer timer.ObserveDuration()

	where := ""
	args := []any{}
	if search := strings.TrimSpace(q.Search); search != "" {
		where = " WHERE name ILIKE $1"
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM ingredients"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ingredients: %w", err)
	}

	ingredients := make([]entity.Ingredient, 0)
	if total == 0 {
		return ingredients, 0, nil
	}

	column, ok := ingredientSortColumns[q.SortBy]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if q.SortOrder == entity.SortDesc {
		direction = "DESC"
	}

	// колонка и направление из белого списка, в SQL подставляются только они
	query := fmt.Sprintf(
		"SELECT id, name, unit_type, created_at FROM ingredients%s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d",
		where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ingredient entity.Ingredient
		if err := rows.Scan(&ingredient.ID, &ingredient.Name, &ingredient.UnitType, &ingredient.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, ingredient)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating ingredients: %w", err)
	}

	return ingredients, total, nil
}

// FindMissing одним запросом находит существующие id и возвращает остальные
func (r *ingredientRepository) FindMissing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "ingredients")
	defer timer.ObserveDuration()

	rows, err := r.db.Query(ctx, `SELECT id FROM ingredients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check ingredients: %w", err)
	}
	defer rows.Close()

	existing := make(map[uuid.UUID]struct{}, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient id: %w", err)
		}
		existing[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingredient ids: %w", err)
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}

	return missing, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
