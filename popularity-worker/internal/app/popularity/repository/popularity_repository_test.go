package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const repairAggregateSQL = `SELECT COUNT(*) AS total, COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average FROM "recipe_ratings" WHERE recipe_id = $1`

// PopularityRepositoryTestSuite тестовый suite для ingredient_popularity
type PopularityRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	mock  sqlmock.Sqlmock
	repo  PopularityRepository
	audit RatingAuditRepository
	sqlDB *sql.DB
}

func TestPopularityRepositorySuite(t *testing.T) {
	suite.Run(t, new(PopularityRepositoryTestSuite))
}

func (s *PopularityRepositoryTestSuite) SetupTest() {
	var err error
	s.sqlDB, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)

	dialector := postgres.New(postgres.Config{
		Conn:       s.sqlDB,
		DriverName: "postgres",
	})

	s.db, err = gorm.Open(dialector, &gorm.Config{})
	require.NoError(s.T(), err)

	s.repo = NewPopularityRepository(s.db)
	s.audit = NewRatingAuditRepository(s.db)
}

func (s *PopularityRepositoryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.sqlDB.Close()
}

// ===================== Upsert Tests =====================

func (s *PopularityRepositoryTestSuite) TestUpsert_Success() {
	ctx := context.Background()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	searchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`INSERT INTO "ingredient_popularity" .* ON CONFLICT \("ingredient_id"\) DO UPDATE SET .*search_count.*EXCLUDED\.search_count`).
		WithArgs(ids[0], int64(2), searchedAt, ids[1], int64(7), searchedAt).
		WillReturnResult(sqlmock.NewResult(0, 2))
	s.mock.ExpectCommit()

	err := s.repo.Upsert(ctx, map[uuid.UUID]int64{ids[1]: 7, ids[0]: 2}, searchedAt)

	s.NoError(err)
}

func (s *PopularityRepositoryTestSuite) TestUpsert_EmptyIsNoop() {
	err := s.repo.Upsert(context.Background(), map[uuid.UUID]int64{}, time.Now())

	s.NoError(err)
}

func (s *PopularityRepositoryTestSuite) TestUpsert_DatabaseError() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`INSERT INTO "ingredient_popularity"`).
		WillReturnError(errors.New("connection reset"))
	s.mock.ExpectRollback()

	err := s.repo.Upsert(context.Background(), map[uuid.UUID]int64{uuid.New(): 1}, time.Now())

	s.ErrorContains(err, "failed to upsert ingredient popularity")
}

// ===================== Top Tests =====================

func (s *PopularityRepositoryTestSuite) TestTop() {
	first, second := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"ingredient_id", "search_count", "last_searched_at"}).
		AddRow(first, 42, now).
		AddRow(second, 7, now)

	s.mock.ExpectQuery(`SELECT \* FROM "ingredient_popularity" ORDER BY search_count DESC,\s*ingredient_id LIMIT`).
		WillReturnRows(rows)

	top, err := s.repo.Top(context.Background(), 2)

	s.NoError(err)
	s.Require().Len(top, 2)
	s.Equal(first, top[0].IngredientID)
	s.Equal(int64(42), top[0].SearchCount)
}

// ===================== Rating audit Tests =====================

func (s *PopularityRepositoryTestSuite) TestFindDrifted() {
	recipeID := uuid.New()

	rows := sqlmock.NewRows([]string{"recipe_id", "stored_average", "stored_votes", "actual_average", "actual_votes"}).
		AddRow(recipeID, 4.0, 3, 3.67, 3)

	s.mock.ExpectQuery(`FROM recipes r\s+LEFT JOIN[\s\S]*ROUND\(AVG\(rating\)::numeric, 2\)`).
		WithArgs(100).
		WillReturnRows(rows)

	drifted, err := s.audit.FindDrifted(context.Background(), 100)

	s.NoError(err)
	s.Require().Len(drifted, 1)
	s.Equal(recipeID, drifted[0].RecipeID)
	s.Equal(4.0, drifted[0].StoredAverage)
	s.Equal(3.67, drifted[0].ActualAverage)
	s.Equal(3, drifted[0].ActualVotes)
}

func (s *PopularityRepositoryTestSuite) TestRepair_RecomputesFromRatings() {
	recipeID := uuid.New()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "recipes" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recipeID))
	s.mock.ExpectQuery(regexp.QuoteMeta(repairAggregateSQL)).
		WithArgs(recipeID).
		WillReturnRows(sqlmock.NewRows([]string{"total", "average"}).AddRow(3, "4.33"))
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "recipes" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	summary, err := s.audit.Repair(context.Background(), recipeID)

	s.NoError(err)
	s.Equal(4.33, summary.AverageRating)
	s.Equal(3, summary.TotalVotes)
}

// 39 x 1 + 1 x 2 = 1.025: ROUND(numeric) дает 1.03, как и в FindDrifted
func (s *PopularityRepositoryTestSuite) TestRepair_UsesDatabaseRounding() {
	recipeID := uuid.New()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "recipes" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recipeID))
	s.mock.ExpectQuery(regexp.QuoteMeta(repairAggregateSQL)).
		WithArgs(recipeID).
		WillReturnRows(sqlmock.NewRows([]string{"total", "average"}).AddRow(40, "1.03"))
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "recipes" SET`)).
		WithArgs(1.03, 40, sqlmock.AnyArg(), recipeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	summary, err := s.audit.Repair(context.Background(), recipeID)

	s.NoError(err)
	s.Equal(1.03, summary.AverageRating)
	s.Equal(40, summary.TotalVotes)
}

func (s *PopularityRepositoryTestSuite) TestRepair_NoRatingsResetsToZero() {
	recipeID := uuid.New()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "recipes" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recipeID))
	s.mock.ExpectQuery(regexp.QuoteMeta(`FROM "recipe_ratings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "average"}).AddRow(0, 0))
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "recipes" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	summary, err := s.audit.Repair(context.Background(), recipeID)

	s.NoError(err)
	s.Equal(0.0, summary.AverageRating)
	s.Equal(0, summary.TotalVotes)
}

func (s *PopularityRepositoryTestSuite) TestRepair_RecipeDeleted() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "recipes" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.mock.ExpectRollback()

	summary, err := s.audit.Repair(context.Background(), uuid.New())

	s.ErrorIs(err, ErrRecipeNotFound)
	s.Nil(summary)
}
