// Package testutil provides helpers for tests that wait on asynchronous
// work, such as buffered sinks and runners.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// Default timing for Eventually.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 5 * time.Millisecond
)

// Poll checks condition every interval until it returns true, the timeout
// expires, or ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, condition, func(ok bool) bool { return ok }, timeout, interval)
	return err
}

// WaitForState calls getter every interval until predicate accepts its
// result, returning that result.
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		state := getter()
		if predicate(state) {
			return state, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-deadline.C:
			var zero T
			return zero, fmt.Errorf("timeout waiting for %T state after %v", zero, timeout)
		case <-tick.C:
		}
	}
}

// Eventually fails the test if condition does not become true within
// DefaultTimeout.
func Eventually(t testing.TB, condition func() bool, msg string) {
	t.Helper()
	if err := Poll(context.Background(), condition, DefaultTimeout, DefaultInterval); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
