package runtime

import (
	"fmt"
	"strings"
	"time"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// PolicyMode selects how a component's output is cached.
type PolicyMode int

const (
	// PolicyAuto caches with the dispatcher's default TTL when a cache is configured.
	PolicyAuto PolicyMode = iota
	// PolicyDisabled never caches and is never rendered at compile time.
	PolicyDisabled
	// PolicyEphemeral skips the fragment cache but may be rendered at compile time.
	PolicyEphemeral
	// PolicyDuration caches with an explicit TTL.
	PolicyDuration
)

// Policy is the cache policy of one component invocation.
type Policy struct {
	Mode PolicyMode
	TTL  time.Duration
}

var (
	Auto      = Policy{Mode: PolicyAuto}
	Disabled  = Policy{Mode: PolicyDisabled}
	Ephemeral = Policy{Mode: PolicyEphemeral}
)

// ParsePolicy parses the value of a cache attribute. The empty string is auto.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "disabled", "off", "false":
		return Disabled, nil
	case "ephemeral":
		return Ephemeral, nil
	}

	ttl, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || ttl <= 0 {
		return Auto, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
			fmt.Sprintf("invalid cache policy %q: want auto, disabled, ephemeral or a positive duration", s), err)
	}
	return Policy{Mode: PolicyDuration, TTL: ttl}, nil
}

// String returns the form accepted by ParsePolicy.
func (p Policy) String() string {
	switch p.Mode {
	case PolicyDisabled:
		return "disabled"
	case PolicyEphemeral:
		return "ephemeral"
	case PolicyDuration:
		return p.TTL.String()
	default:
		return "auto"
	}
}

// Cacheable reports whether output may be stored in the fragment cache.
func (p Policy) Cacheable() bool {
	return p.Mode == PolicyAuto || p.Mode == PolicyDuration
}

// Prerenderable reports whether the compiler may render static invocations ahead of time.
func (p Policy) Prerenderable() bool {
	return p.Mode != PolicyDisabled
}

// ttl returns the expiry to use, falling back to def.
func (p Policy) ttl(def time.Duration) time.Duration {
	if p.Mode == PolicyDuration {
		return p.TTL
	}
	return def
}
