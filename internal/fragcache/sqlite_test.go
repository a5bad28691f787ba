package fragcache

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	cache, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSQLiteGet(t *testing.T) {
	ctx := context.Background()
	cache := openTestSQLite(t)
	var calls int32

	for i := 0; i < 2; i++ {
		out, err := cache.Get(ctx, "heading.ab", 0, constant("<h1>Hi</h1>", &calls))
		require.NoError(t, err)
		assert.Equal(t, "<h1>Hi</h1>", out)
	}
	assert.Equal(t, int32(1), calls)

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	cache := openTestSQLite(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	var calls int32

	_, err := cache.Get(ctx, "short", time.Minute, constant("a", &calls))
	require.NoError(t, err)
	_, err = cache.Get(ctx, "forever", 0, constant("b", &calls))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	removed, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = cache.Get(ctx, "forever", 0, constant("b", &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)

	_, err = cache.Get(ctx, "short", time.Minute, constant("a2", &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestSQLiteDeleteClear(t *testing.T) {
	ctx := context.Background()
	cache := openTestSQLite(t)
	var calls int32

	_, _ = cache.Get(ctx, "a", 0, constant("x", &calls))
	_, _ = cache.Get(ctx, "b", 0, constant("y", &calls))

	require.NoError(t, cache.Delete(ctx, "a"))
	n, _ := cache.Count(ctx)
	assert.Equal(t, 1, n)

	require.NoError(t, cache.Clear(ctx))
	n, _ = cache.Count(ctx)
	assert.Equal(t, 0, n)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	var calls int32

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = first.Get(ctx, "k", 0, constant("kept", &calls))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	out, err := second.Get(ctx, "k", 0, constant("recomputed", &calls))
	require.NoError(t, err)
	assert.Equal(t, "kept", out)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSQLiteRejectsInvalidKey(t *testing.T) {
	cache := openTestSQLite(t)
	var calls int32
	_, err := cache.Get(context.Background(), "ui:button", 0, constant("x", &calls))
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, int32(0), calls)
}
