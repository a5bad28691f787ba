package fragcache

import (
	"context"
	"time"
)

// Nop never stores anything; every Get computes.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(_ context.Context, key string, _ time.Duration, compute ComputeFunc) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return compute()
}

func (Nop) Delete(context.Context, string) error { return nil }

func (Nop) Clear(context.Context) error { return nil }
