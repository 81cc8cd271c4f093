package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureflow/internal/config"
	"secureflow/internal/repository/memory"
)

func TestRun_ReturnsConfigError(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	err := run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestOpenStore_MemoryWhenNoPath(t *testing.T) {
	history, users, closeStore, err := openStore(context.Background(), &config.Config{}, discardLogger())

	require.NoError(t, err)
	assert.IsType(t, &memory.HistoryRepository{}, history)
	assert.IsType(t, &memory.UserRepository{}, users)
	closeStore()
}

func TestOpenStore_SQLiteReleasedByCloser(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "secureflow.db")}

	history, _, closeStore, err := openStore(ctx, cfg, discardLogger())
	require.NoError(t, err)
	_, err = history.Snapshot(ctx)
	require.NoError(t, err)

	closeStore()

	_, err = history.Snapshot(ctx)
	assert.Error(t, err, "store should be closed")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
