//go:build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("lowercase alphanumeric namespaces validate", prop.ForAll(
		func(namespace string) bool {
			cfg := &Config{
				Components: ComponentsConfig{Namespace: strings.ToLower(namespace)},
				Cache:      CacheConfig{Driver: CacheDriverNone},
			}
			return validateConfig(cfg) == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("negative ttl is always rejected", prop.ForAll(
		func(seconds int) bool {
			cfg := &Config{
				Components: ComponentsConfig{Namespace: "ui"},
				Cache:      CacheConfig{Driver: CacheDriverNone, TTL: -time.Duration(seconds) * time.Second},
			}
			return validateConfig(cfg) != nil
		},
		gen.IntRange(1, 100000),
	))

	properties.Property("paths with traversal are rejected", prop.ForAll(
		func(segment string) bool {
			return validatePath("../"+segment) != nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
