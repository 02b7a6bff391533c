package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "audit.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_RecordAndCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.Record(ctx, &RequestLog{
		Method:   "POST",
		Path:     "/api/models/generate",
		ClientIP: "10.0.0.1",
		Status:   200,
	})
	store.Record(ctx, &RequestLog{
		Method:   "GET",
		Path:     "/health",
		ClientIP: "10.0.0.2",
		Status:   200,
	})

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestStore_Recent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := time.Now().UTC().Add(-time.Hour)
	store.Record(ctx, &RequestLog{Method: "GET", Path: "/old", Timestamp: older})
	store.Record(ctx, &RequestLog{Method: "GET", Path: "/new"})

	logs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "/new", logs[0].Path)
	assert.Equal(t, "/old", logs[1].Path)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
