package fragcache

import (
	"context"
	"errors"
	"html/template"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/uikit/internal/config"
	uierrors "github.com/conneroisu/uikit/internal/errors"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"button.1a2b", true},
		{"a_b-c", true},
		{"", false},
		{"ui:button", false},
		{"a/b", false},
		{"{x}", false},
		{"a@b", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidKey))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	key, err := NormalizeKey("github.com/acme/ui.Button", "ab12")
	require.NoError(t, err)
	assert.Equal(t, "github.com.acme.ui.button.ab12", key)
	assert.NoError(t, ValidateKey(key))

	key, err = NormalizeKey("A::B//", "")
	require.NoError(t, err)
	assert.Equal(t, "a.b", key)

	_, err = NormalizeKey("::", "/")
	assert.True(t, uierrors.HasCode(err, uierrors.CodeInvalidCacheKey))

	long, err := NormalizeKey(strings.Repeat("x", 500))
	require.NoError(t, err)
	assert.Len(t, long, maxKeyLength)
}

func TestHashKey(t *testing.T) {
	a, err := HashKey(map[string]interface{}{"title": "Hi", "level": 2})
	require.NoError(t, err)
	b, err := HashKey(map[string]interface{}{"level": 2, "title": "Hi"})
	require.NoError(t, err)
	c, err := HashKey(map[string]interface{}{"level": 3, "title": "Hi"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)

	_, err = HashKey(map[string]interface{}{"fn": func() {}})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	calls := 0
	compute := func() (string, error) {
		calls++
		return "<b>x</b>", nil
	}

	for i := 0; i < 3; i++ {
		out, err := Nop{}.Get(context.Background(), "k", 0, compute)
		require.NoError(t, err)
		assert.Equal(t, "<b>x</b>", out)
	}
	assert.Equal(t, 3, calls)

	_, err := Nop{}.Get(context.Background(), "bad:key", 0, compute)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	c, err := Open(config.CacheConfig{Driver: config.CacheDriverMemory, MaxSize: 1024})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open(config.CacheConfig{Driver: config.CacheDriverNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	c, err = Open(config.CacheConfig{Driver: config.CacheDriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.IsType(t, &SQLite{}, c)
	assert.NoError(t, c.(*SQLite).Close())

	_, err = Open(config.CacheConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestOpenPurgesExpiredSQLiteRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "fragments.db")

	stale, err := OpenSQLite(path)
	require.NoError(t, err)
	stale.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	var calls int32
	_, err = stale.Get(ctx, "old", time.Minute, constant("a", &calls))
	require.NoError(t, err)
	_, err = stale.Get(ctx, "kept", 0, constant("b", &calls))
	require.NoError(t, err)
	require.NoError(t, stale.Close())

	c, err := Open(config.CacheConfig{Driver: config.CacheDriverSQLite, Path: path})
	require.NoError(t, err)
	cache := c.(*SQLite)
	t.Cleanup(func() { _ = cache.Close() })

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTyped(t *testing.T) {
	a, err := HashKey(Typed(map[string]interface{}{"v": template.HTML("<b>")}))
	require.NoError(t, err)
	b, err := HashKey(Typed(map[string]interface{}{"v": "<b>"}))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	nested, err := HashKey(Typed([]interface{}{map[string]interface{}{"v": "<b>"}}))
	require.NoError(t, err)
	again, err := HashKey(Typed([]interface{}{map[string]interface{}{"v": "<b>"}}))
	require.NoError(t, err)
	assert.Equal(t, nested, again)

	assert.Nil(t, Typed(nil))
}

func TestStatsHitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.Equal(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate())
}
