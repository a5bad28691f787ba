// Package fragcache stores rendered component fragments keyed by component
// class and a hash of the render arguments.
//
// A Cache follows the get-with-callback contract: Get returns the stored
// fragment when present and not expired, otherwise it runs compute,
// stores the result with the requested TTL and returns it. Misses are
// computed synchronously on the calling goroutine.
package fragcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// ComputeFunc produces the fragment stored on a miss.
type ComputeFunc func() (string, error)

// Cache is the rendered-fragment cache used by the render dispatcher.
type Cache interface {
	// Get returns the fragment for key, computing and storing it on a miss.
	// A ttl of zero or less stores the fragment without expiry.
	Get(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Clear removes every fragment.
	Clear(ctx context.Context) error
}

// Purger is implemented by caches that can drop expired fragments ahead
// of their next lookup.
type Purger interface {
	// Purge deletes expired fragments and reports how many were removed.
	Purge(ctx context.Context) (int64, error)
}

// ErrInvalidKey is returned for keys that are empty or contain reserved characters.
var ErrInvalidKey = uierrors.NewCacheError(uierrors.CodeInvalidCacheKey, "invalid cache key", nil)

const (
	reservedKeyChars = "{}()/\\@:"
	maxKeyLength     = 200
)

// ValidateKey rejects keys a cache backend must not accept.
func ValidateKey(key string) error {
	if key == "" {
		return uierrors.NewCacheError(uierrors.CodeInvalidCacheKey, "cache key must not be empty", nil)
	}
	if i := strings.IndexAny(key, reservedKeyChars); i >= 0 {
		return uierrors.NewCacheError(uierrors.CodeInvalidCacheKey,
			"cache key "+key+" contains reserved character "+string(key[i]), nil)
	}
	return nil
}

// NormalizeKey joins parts with '.', lowercases them and folds every
// character outside [a-z0-9_-] into a single '.'. Overlong keys are hashed.
func NormalizeKey(parts ...string) (string, error) {
	var b strings.Builder
	lastDot := true
	for _, r := range strings.ToLower(strings.Join(parts, ".")) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
			lastDot = false
		default:
			if !lastDot {
				b.WriteByte('.')
				lastDot = true
			}
		}
	}

	key := strings.TrimSuffix(b.String(), ".")
	if key == "" {
		return "", uierrors.NewCacheError(uierrors.CodeInvalidCacheKey,
			"cache key is empty after normalization", nil).WithContext("parts", parts)
	}
	if len(key) > maxKeyLength {
		sum := sha256.Sum256([]byte(key))
		key = key[:maxKeyLength-33] + "." + hex.EncodeToString(sum[:16])
	}
	return key, nil
}

// HashKey returns a stable hash of v. Maps hash independently of
// iteration order because encoding/json sorts map keys.
func HashKey(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", uierrors.NewCacheError(uierrors.CodeInvalidCacheKey, "arguments are not hashable", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// typedValue pairs a value with its Go type so values that marshal
// alike, such as a string and a template.HTML, hash apart.
type typedValue struct {
	T string      `json:"t"`
	V interface{} `json:"v"`
}

// Typed returns v with every leaf tagged by its dynamic type, for use
// with HashKey. String-keyed maps and interface slices are walked.
func Typed(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = Typed(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = Typed(e)
		}
		return out
	default:
		return typedValue{T: fmt.Sprintf("%T", v), V: v}
	}
}

// Stats reports cache activity.
type Stats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 without traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
