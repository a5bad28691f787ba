// Package config provides configuration management for uikit using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files (.uikit.yml), environment
// variable overrides with the UIKIT_ prefix, defaults, and validation. It
// covers the component tag namespace, template discovery, the rendered
// fragment cache, asset collection, the compiler, the preview server and
// logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// Cache drivers
const (
	CacheDriverMemory = "memory"
	CacheDriverSQLite = "sqlite"
	CacheDriverNone   = "none"
)

type Config struct {
	Components ComponentsConfig `mapstructure:"components" yaml:"components"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Assets     AssetsConfig     `mapstructure:"assets" yaml:"assets"`
	Compiler   CompilerConfig   `mapstructure:"compiler" yaml:"compiler"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type ComponentsConfig struct {
	Namespace    string   `mapstructure:"namespace" yaml:"namespace"`
	TemplatesDir string   `mapstructure:"templates_dir" yaml:"templates_dir"`
	Extensions   []string `mapstructure:"extensions" yaml:"extensions"`
}

type CacheConfig struct {
	Driver  string        `mapstructure:"driver" yaml:"driver"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxSize int64         `mapstructure:"max_size" yaml:"max_size"`
	Path    string        `mapstructure:"path" yaml:"path"`
	Minify  bool          `mapstructure:"minify" yaml:"minify"`
	// PurgeInterval is how often long-running commands drop expired
	// fragments. Zero disables the periodic purge.
	PurgeInterval time.Duration `mapstructure:"purge_interval" yaml:"purge_interval"`
}

type AssetsConfig struct {
	Directories []string `mapstructure:"directories" yaml:"directories"`
	Inline      bool     `mapstructure:"inline" yaml:"inline"`
	Exclude     []string `mapstructure:"exclude" yaml:"exclude"`
}

type CompilerConfig struct {
	StaticRender bool `mapstructure:"static_render" yaml:"static_render"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var envReplacer = strings.NewReplacer(".", "_")

// BindEnv enables UIKIT_ prefixed environment overrides on v, e.g.
// UIKIT_CACHE_DRIVER for cache.driver.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("UIKIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer)
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("components.namespace", "ui")
	v.SetDefault("components.templates_dir", "./templates")
	v.SetDefault("components.extensions", []string{".html", ".tmpl"})
	v.SetDefault("cache.driver", CacheDriverMemory)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 8<<20)
	v.SetDefault("cache.path", ".uikit/cache.db")
	v.SetDefault("cache.minify", true)
	v.SetDefault("cache.purge_interval", "10m")
	v.SetDefault("assets.inline", false)
	v.SetDefault("compiler.static_render", true)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through env vars arrive as a single comma separated string.
	if v.IsSet("assets.directories") && len(config.Assets.Directories) == 0 {
		config.Assets.Directories = v.GetStringSlice("assets.directories")
	}
	if v.IsSet("assets.exclude") && len(config.Assets.Exclude) == 0 {
		config.Assets.Exclude = v.GetStringSlice("assets.exclude")
	}

	config.Components.Namespace = strings.TrimSuffix(strings.ToLower(config.Components.Namespace), ":")
	config.Cache.Driver = strings.ToLower(config.Cache.Driver)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Prefix returns the tag prefix derived from the namespace, e.g. "ui:".
func (c ComponentsConfig) Prefix() string {
	return c.Namespace + ":"
}

// Address returns host:port for the preview server.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func validateConfig(config *Config) error {
	if err := validateComponentsConfig(&config.Components); err != nil {
		return fmt.Errorf("components config: %w", err)
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	for _, dir := range config.Assets.Directories {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("assets config: invalid directory '%s': %w", dir, err)
		}
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Server.Port))
	}
	return nil
}

func validateComponentsConfig(config *ComponentsConfig) error {
	if config.Namespace == "" {
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig, "namespace must not be empty")
	}
	for _, r := range config.Namespace {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return uierrors.NewConfigError(uierrors.CodeInvalidConfig,
				fmt.Sprintf("namespace %q may only contain a-z, 0-9 and '-'", config.Namespace))
		}
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return uierrors.NewConfigError(uierrors.CodeInvalidConfig,
				fmt.Sprintf("template extension %q must start with '.'", ext))
		}
	}
	return nil
}

func validateCacheConfig(config *CacheConfig) error {
	switch config.Driver {
	case CacheDriverMemory, CacheDriverNone:
	case CacheDriverSQLite:
		if err := validatePath(config.Path); err != nil {
			return fmt.Errorf("invalid path '%s': %w", config.Path, err)
		}
	default:
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig,
			fmt.Sprintf("unknown cache driver %q", config.Driver))
	}
	if config.TTL < 0 {
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig, "ttl must not be negative")
	}
	if config.PurgeInterval < 0 {
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig, "purge_interval must not be negative")
	}
	if config.Driver == CacheDriverMemory && config.MaxSize <= 0 {
		return uierrors.NewConfigError(uierrors.CodeInvalidConfig, "max_size must be positive")
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
