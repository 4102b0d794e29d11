package btlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/bte/internal/bt"
)

// recorder is a Backend that keeps every batch.
type recorder struct {
	mu      sync.Mutex
	batches [][]bt.Transition
	closed  int
	fail    error
	block   chan struct{}
}

func (r *recorder) WriteBatch(_ context.Context, batch []bt.Transition) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]bt.Transition(nil), batch...))
	return r.fail
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func (r *recorder) total() int {
	n := 0
	for _, s := range r.sizes() {
		n += s
	}
	return n
}

func (r *recorder) all() []bt.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bt.Transition
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

var errBackend = errors.New("backend down")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 250_000_000, time.UTC)

func transition(i int) bt.Transition {
	return bt.Transition{
		NodeID:   uuid.New(),
		Name:     fmt.Sprintf("n%d", i),
		Path:     fmt.Sprintf("root/n%d", i),
		Kind:     bt.KindAction,
		Previous: bt.Idle,
		Current:  bt.Running,
		Time:     epoch.Add(time.Duration(i) * time.Millisecond),
	}
}
