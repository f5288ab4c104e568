package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	body, err := fs.ReadFile(Migrations, names[0])
	require.NoError(t, err)

	sql := string(body)
	assert.True(t, strings.Contains(sql, "-- +goose Up"))
	assert.True(t, strings.Contains(sql, "-- +goose Down"))
	for _, table := range []string{"items", "variants", "connections", "audit_log", "quick_connect_usage"} {
		assert.Contains(t, sql, "CREATE TABLE "+table+" ")
	}
	assert.Contains(t, sql, "REFERENCES items (id) ON DELETE CASCADE")
}
