package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbook/internal/domain/model"
	"xbook/internal/infrastructure/config"
)

func TestNewWithSQLiteOnly(t *testing.T) {
	cfg := config.StorageConfig{
		SQLite: config.SQLiteConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "journal.db")},
	}
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)

	journals := c.Journals()
	require.Len(t, journals, 1)
	require.NotNil(t, c.SQLiteRepo())
	assert.Nil(t, c.RedisClient())

	require.NoError(t, journals[0].Emit(context.Background(), model.NewEvent(model.EventPositionOpened, "BINANCE", "BTC_USD")))
	events, err := c.SQLiteRepo().RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")
}

func TestNewWithNothingEnabled(t *testing.T) {
	c, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Empty(t, c.Journals())
	assert.Nil(t, c.SQLiteRepo())
	assert.NoError(t, c.Close())
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	cfg := config.StorageConfig{
		Redis:  config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"},
		SQLite: config.SQLiteConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "journal.db")},
	}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis init failed")
}
