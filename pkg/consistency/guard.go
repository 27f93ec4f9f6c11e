// Package consistency defines the capability of waiting until a freshly
// written path is observable by subsequent store operations.
//
// Stores with read-after-write lag (object stores, caching gateways) can
// report success for a write and still return "not found" for a list or
// open issued right after. A Guard bridges that gap: callers block on
// WaitForVisibility before announcing a file as committed.
package consistency

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned when a path was not observed before the bound elapsed.
var ErrTimeout = errors.New("timed out waiting for path to become visible")

// Guard blocks until a path is visible in the store or a bounded time elapses.
//
// Implementations must be safe for concurrent use: a single Guard is usually
// shared by every writer of a store. The bound is the earlier of the
// implementation's own limit and the deadline carried by ctx. On expiry the
// returned error must match ErrTimeout via errors.Is.
type Guard interface {
	WaitForVisibility(ctx context.Context, path string) error
}

// GuardFunc adapts an ordinary function to the Guard interface.
type GuardFunc func(ctx context.Context, path string) error

// WaitForVisibility calls f(ctx, path).
func (f GuardFunc) WaitForVisibility(ctx context.Context, path string) error {
	return f(ctx, path)
}

// NoOp is a Guard for strongly consistent stores: every path is assumed
// visible as soon as its writer is closed.
type NoOp struct{}

// WaitForVisibility always succeeds.
func (NoOp) WaitForVisibility(context.Context, string) error {
	return nil
}

// Prober is the subset of a store needed to check for a path once.
type Prober interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// ForStore returns the Guard to use for s.
//
// A store that knows how to wait for its own visibility (it implements Guard)
// is returned as is. Any other store gets a single-probe guard: one Exists
// call, failing with ErrTimeout when the path is absent.
func ForStore(s Prober) Guard {
	if g, ok := s.(Guard); ok {
		return g
	}
	return probeGuard{s}
}

type probeGuard struct {
	store Prober
}

func (g probeGuard) WaitForVisibility(ctx context.Context, path string) error {
	ok, err := g.store.Exists(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return TimeoutError(path, ctx.Err())
		}
		return fmt.Errorf("probe %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimeout, path)
	}
	return nil
}

// TimeoutError wraps a context expiry observed while waiting for path so that
// it matches both ErrTimeout and the context error.
func TimeoutError(path string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrTimeout, path, cause)
}
