package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageService_RecordAdaptation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewUsageService(db, rm)
	s.now = func() time.Time { return publishNow }

	require.NoError(t, s.RecordAdaptation(context.Background(), "u1", 3))
	require.NoError(t, s.RecordAdaptation(context.Background(), "u1", 1))

	assert.Equal(t, []string{"u1@2026-05", "u1@2026-05"}, rm.usage.calls)
	assert.Equal(t, 4, rm.usage.n)

	require.ErrorIs(t, s.RecordAdaptation(context.Background(), "u1", 0), common.ErrValidation)
	assert.Len(t, rm.usage.calls, 2)
}
