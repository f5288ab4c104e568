package connections

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const connID = "a9e3d7b2-14c6-4f8a-b2d5-3e6f0c1a7d94"

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "user_id", "brand_id", "platform", "credentials", "display_name",
	"connection_mode", "is_active", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	brand := "b1"
	mock.ExpectQuery(`INSERT INTO connections`).
		WithArgs(connID, "u1", sql.NullString{String: "b1", Valid: true}, "mastodon", "CIPHER", sql.NullString{}, "manual", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	c := &models.Connection{ID: connID, UserID: "u1", BrandID: &brand, Platform: "mastodon",
		Credentials: "CIPHER", Mode: models.ModeManual, Active: true}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, now, c.UpdatedAt)
}

func TestGetForOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM connections WHERE id = \$1 AND user_id = \$2`).
		WithArgs(connID, "u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(connID, "u1", nil, "x", "CIPHER", "@me", "quick_connect", true, now, now))

	c, err := repo.GetForOwner(context.Background(), connID, "u1")
	require.NoError(t, err)
	assert.Nil(t, c.BrandID)
	assert.Equal(t, "@me", *c.DisplayName)
	assert.Equal(t, models.ModeQuickConnect, c.Mode)

	mock.ExpectQuery(`FROM connections`).
		WithArgs(connID, "u2").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetForOwner(context.Background(), connID, "u2")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindExact(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`brand_id IS NOT DISTINCT FROM \$3`).
		WithArgs("u1", "x", sql.NullString{}).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindExact(context.Background(), "u1", "x", nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListForScope(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	brand := "b1"
	mock.ExpectQuery(`WHERE user_id = \$1 AND is_active AND \(brand_id IS NULL OR brand_id = \$2\)\s+ORDER BY brand_id NULLS LAST`).
		WithArgs("u1", sql.NullString{String: "b1", Valid: true}).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(connID, "u1", "b1", "x", "C1", nil, "manual", true, now, now).
			AddRow("c2", "u1", nil, "x", "C2", nil, "manual", true, now, now))

	got, err := repo.ListForScope(context.Background(), "u1", &brand)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, connID, got[0].ID)
	assert.Nil(t, got[1].BrandID)
}

func TestListForScope_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM connections`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(connID))

	_, err := repo.ListForScope(context.Background(), "u1", nil)
	assert.Error(t, err)
}

func TestUpdates(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE connections SET credentials = \$2, connection_mode = \$3`).
		WithArgs(connID, "NEW", "quick_connect").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateCredentials(context.Background(), connID, "NEW", models.ModeQuickConnect))

	mock.ExpectExec(`UPDATE connections SET display_name = \$2`).
		WithArgs(connID, "@handle").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateDisplayName(context.Background(), connID, "@handle"), common.ErrNotFound)

	mock.ExpectExec(`DELETE FROM connections`).
		WithArgs(connID, "u1").
		WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.Delete(context.Background(), connID, "u1"), "db error: down")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.GetForOwner(context.Background(), "c1", "u1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), "'; drop", "u1"), common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
