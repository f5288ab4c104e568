package auditlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("a1", "u1", "i1", "x", "publish", "https://x.com/i/status/1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(context.Background(), &models.AuditEntry{
		ID: "a1", UserID: "u1", ItemID: "i1", Platform: "x",
		Action: models.AuditPublish, Detail: "https://x.com/i/status/1", CreatedAt: now,
	})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnError(errors.New("fk violation"))
	err = repo.Append(context.Background(), &models.AuditEntry{ID: "a2", CreatedAt: now})
	assert.ErrorContains(t, err, "db error: fk violation")
}

func TestListByItem(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM audit_log\s+WHERE item_id = \$1`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "item_id", "platform", "action", "detail", "created_at"}).
			AddRow("a1", "u1", "i1", "x", "publish", "ok", now).
			AddRow("a2", "u1", "i1", "nostr", "error", "No connection", now))

	got, err := repo.ListByItem(context.Background(), "i1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.AuditPublish, got[0].Action)
	assert.Equal(t, models.AuditError, got[1].Action)
}
