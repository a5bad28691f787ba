package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "ui", cfg.Components.Namespace)
	assert.Equal(t, "ui:", cfg.Components.Prefix())
	assert.Equal(t, []string{".html", ".tmpl"}, cfg.Components.Extensions)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Minify)
	assert.True(t, cfg.Compiler.StaticRender)
	assert.Equal(t, 10*time.Minute, cfg.Cache.PurgeInterval)
	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "namespace is normalized",
			setup: func(v *viper.Viper) {
				v.Set("components.namespace", "X:")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "x:", cfg.Components.Prefix())
			},
		},
		{
			name: "ttl parsed from duration string",
			setup: func(v *viper.Viper) {
				v.Set("cache.ttl", "90s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
			},
		},
		{
			name: "asset directories",
			setup: func(v *viper.Viper) {
				v.Set("assets.directories", []string{"./assets", "./static"})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"./assets", "./static"}, cfg.Assets.Directories)
			},
		},
		{
			name: "unknown cache driver",
			setup: func(v *viper.Viper) {
				v.Set("cache.driver", "redis")
			},
			expectError: true,
		},
		{
			name: "negative purge interval",
			setup: func(v *viper.Viper) {
				v.Set("cache.purge_interval", "-1m")
			},
			expectError: true,
		},
		{
			name: "invalid namespace",
			setup: func(v *viper.Viper) {
				v.Set("components.namespace", "u i")
			},
			expectError: true,
		},
		{
			name: "traversal in asset directory",
			setup: func(v *viper.Viper) {
				v.Set("assets.directories", []string{"../secrets"})
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "extension without dot",
			setup: func(v *viper.Viper) {
				v.Set("components.extensions", []string{"html"})
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".uikit.yml")
	content := `
components:
  namespace: app
cache:
  driver: sqlite
  path: cache.db
  ttl: 10m
assets:
  inline: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "app:", cfg.Components.Prefix())
	assert.Equal(t, CacheDriverSQLite, cfg.Cache.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Assets.Inline)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("UIKIT_CACHE_DRIVER", "none")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, CacheDriverNone, cfg.Cache.Driver)
}
