package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recipebox/recipes-service/internal/app/recipes/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuerier подменяет pgxpool.Pool и запоминает последние запросы
type fakeQuerier struct {
	execErr  error
	row      fakeRow
	rows     *fakeRows
	queryErr error

	lastSQL  string
	lastArgs []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = values[i].(uuid.UUID)
		case *string:
			*p = values[i].(string)
		case *entity.UnitType:
			*p = values[i].(entity.UnitType)
		case *time.Time:
			*p = values[i].(time.Time)
		case *int64:
			*p = values[i].(int64)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestIngredientRepository_FindMissing(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	q := &fakeQuerier{rows: &fakeRows{data: [][]any{{a}, {c}}}}
	repo := &ingredientRepository{db: q}

	missing, err := repo.FindMissing(context.Background(), []uuid.UUID{a, b, c})

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, missing)
	assert.Contains(t, q.lastSQL, "id = ANY($1)")
}

func TestIngredientRepository_FindMissing_AllPresent(t *testing.T) {
	a := uuid.New()
	repo := &ingredientRepository{db: &fakeQuerier{rows: &fakeRows{data: [][]any{{a}}}}}

	missing, err := repo.FindMissing(context.Background(), []uuid.UUID{a})

	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestIngredientRepository_FindMissing_QueryError(t *testing.T) {
	repo := &ingredientRepository{db: &fakeQuerier{queryErr: errors.New("connection reset")}}

	missing, err := repo.FindMissing(context.Background(), []uuid.UUID{uuid.New()})

	assert.Error(t, err)
	assert.Nil(t, missing)
}

func TestIngredientRepository_Create_Conflict(t *testing.T) {
	q := &fakeQuerier{execErr: &pgconn.PgError{Code: "23505"}}
	repo := &ingredientRepository{db: q}

	err := repo.Create(context.Background(), &entity.Ingredient{
		ID:       uuid.New(),
		Name:     "Flour",
		UnitType: entity.UnitGrams,
	})

	assert.ErrorIs(t, err, ErrIngredientAlreadyExists)
}

func TestIngredientRepository_GetByID_NotFound(t *testing.T) {
	repo := &ingredientRepository{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	ingredient, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrIngredientNotFound)
	assert.Nil(t, ingredient)
}

func TestIngredientRepository_GetByName(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{id, "Milk", entity.UnitMilliliters, now}}}
	repo := &ingredientRepository{db: q}

	ingredient, err := repo.GetByName(context.Background(), "  milk ")

	require.NoError(t, err)
	assert.Equal(t, id, ingredient.ID)
	assert.Equal(t, "Milk", ingredient.Name)
	assert.Equal(t, []any{"milk"}, q.lastArgs)
}

func TestIngredientRepository_List(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	q := &fakeQuerier{
		row:  fakeRow{values: []any{int64(1)}},
		rows: &fakeRows{data: [][]any{{id, "Sugar", entity.UnitGrams, now}}},
	}
	repo := &ingredientRepository{db: q}

	items, total, err := repo.List(context.Background(), entity.IngredientListQuery{
		Page:      2,
		Limit:     5,
		Search:    "su%",
		SortBy:    "unit_type",
		SortOrder: entity.SortDesc,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Sugar", items[0].Name)
	assert.Contains(t, q.lastSQL, "ORDER BY unit_type DESC, id ASC LIMIT $2 OFFSET $3")
	assert.Equal(t, []any{`%su\%%`, 5, 5}, q.lastArgs)
}

func TestIngredientRepository_List_UnknownSortUsesName(t *testing.T) {
	q := &fakeQuerier{
		row:  fakeRow{values: []any{int64(2)}},
		rows: &fakeRows{},
	}
	repo := &ingredientRepository{db: q}

	_, _, err := repo.List(context.Background(), entity.IngredientListQuery{Page: 1, Limit: 10, SortBy: "1; DROP"})

	require.NoError(t, err)
	assert.Contains(t, q.lastSQL, "ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}
