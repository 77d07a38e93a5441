package bootstrap

import (
	"context"
	"testing"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/database/databasetest"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachPool_ReleaseOrder(t *testing.T) {
	teardowns := 0
	db := newEphemeralDatabase("postgres://fake/db", func(context.Context) error {
		teardowns++
		return nil
	}, logger.Nop())

	pool, err := database.NewPool(*database.DefaultConfig("postgres://fake/db"), &databasetest.Dialer{})
	require.NoError(t, err)
	require.NoError(t, attachPool(pool, db))

	require.NoError(t, db.Release())
	assert.False(t, db.TornDown(), "the pool still holds a reference")

	require.NoError(t, pool.Close())
	assert.True(t, db.TornDown())
	assert.Equal(t, 1, teardowns)
}

func TestAttachPool_TornDownDatabase(t *testing.T) {
	teardowns := 0
	db := newEphemeralDatabase("postgres://fake/db", func(context.Context) error {
		teardowns++
		return nil
	}, logger.Nop())
	require.NoError(t, db.Release())

	pool, err := database.NewPool(*database.DefaultConfig("postgres://fake/db"), &databasetest.Dialer{})
	require.NoError(t, err)

	err = attachPool(pool, db)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))

	// no hook was registered, so closing the pool must not release again
	require.NoError(t, pool.Close())
	assert.Equal(t, 1, teardowns)
}
