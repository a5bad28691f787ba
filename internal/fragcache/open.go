package fragcache

import (
	"context"

	"github.com/conneroisu/uikit/internal/config"
	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// Open returns the cache selected by cfg.Driver. A SQLite cache is purged
// of fragments that expired while no process had it open.
func Open(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Driver {
	case config.CacheDriverMemory, "":
		return NewMemory(cfg.MaxSize), nil
	case config.CacheDriverSQLite:
		cache, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if _, err := cache.Purge(context.Background()); err != nil {
			_ = cache.Close()
			return nil, err
		}
		return cache, nil
	case config.CacheDriverNone:
		return Nop{}, nil
	default:
		return nil, uierrors.NewConfigError(uierrors.CodeInvalidConfig, "unknown cache driver "+cfg.Driver)
	}
}
