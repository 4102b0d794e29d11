package runner

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sequenceLeaf struct {
	results []bt.Status
	calls   atomic.Int64
	halts   atomic.Int64
}

func (l *sequenceLeaf) tree(t *testing.T) *bt.Tree {
	t.Helper()
	tree, err := bt.NewTree(bt.NewSequence("root", bt.NewAction("leaf",
		func(*bt.Blackboard) (bt.Result, error) {
			n := l.calls.Add(1)
			return bt.Code(int(l.results[min(int(n)-1, len(l.results)-1)])), nil
		},
		bt.WithHalt(func(*bt.Blackboard) { l.halts.Add(1) }),
	)), bt.WithLogger(quietLogger()))
	require.NoError(t, err)
	return tree
}

func run(t *testing.T, ctx context.Context, tree *bt.Tree, opts ...Option) (*Runner, bt.Status, error) {
	t.Helper()
	r := New(tree, append([]Option{WithInterval(time.Millisecond), WithLogger(quietLogger())}, opts...)...)
	s, err := r.Run(ctx)
	return r, s, err
}

func TestRun_StopsOnTerminal(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Running, bt.Running, bt.Success}}
	r, status, err := run(t, context.Background(), leaf.tree(t))
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.EqualValues(t, 3, r.Ticks())
	assert.Zero(t, leaf.halts.Load())
}

func TestRun_StopOnSuccessSkipsFailures(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Failure, bt.Failure, bt.Success}}
	r, status, err := run(t, context.Background(), leaf.tree(t), WithStopPolicy(StopOnSuccess))
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.EqualValues(t, 3, r.Ticks())
}

func TestRun_StopOnFailure(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Success, bt.Running, bt.Failure}}
	r, status, err := run(t, context.Background(), leaf.tree(t), WithStopPolicy(StopOnFailure))
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, status)
	assert.EqualValues(t, 3, r.Ticks())
}

func TestRun_MaxTicksHaltsRunningTree(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Running}}
	tree := leaf.tree(t)
	r, status, err := run(t, context.Background(), tree, WithStopPolicy(StopNever), WithMaxTicks(5))
	require.NoError(t, err)
	assert.Equal(t, bt.Running, status)
	assert.EqualValues(t, 5, r.Ticks())
	assert.EqualValues(t, 1, leaf.halts.Load())
	assert.Equal(t, bt.Idle, tree.RootNode().Status())
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Running}}
	tree := leaf.tree(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(tree, WithInterval(time.Millisecond), WithLogger(quietLogger()))
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx)
		done <- err
	}()

	testutil.Eventually(t, func() bool { return r.Ticks() >= 3 }, "runner ticking")
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.EqualValues(t, 1, leaf.halts.Load())
	assert.Equal(t, bt.Idle, tree.RootNode().Status())
}

func TestRun_TickError(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Running}}
	tree := leaf.tree(t)
	require.NoError(t, tree.Close())

	r, status, err := run(t, context.Background(), tree)
	require.ErrorIs(t, err, bt.ErrTreeClosed)
	assert.Equal(t, bt.Idle, status)
	assert.Zero(t, r.Ticks())
}

func TestRun_ConcurrentHaltDoesNotStop(t *testing.T) {
	t.Parallel()

	leaf := &sequenceLeaf{results: []bt.Status{bt.Running}}
	tree := leaf.tree(t)

	stop := make(chan struct{})
	halting := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				halting <- nil
				return
			default:
			}
			if err := tree.HaltTree(); err != nil {
				halting <- err
				return
			}
		}
	}()

	r, status, err := run(t, context.Background(), tree, WithStopPolicy(StopNever), WithMaxTicks(20))
	close(stop)
	require.NoError(t, <-halting)
	require.NoError(t, err)
	assert.Equal(t, bt.Running, status)
	assert.EqualValues(t, 20, r.Ticks())
}

func TestStopPolicy(t *testing.T) {
	t.Parallel()

	for _, p := range []StopPolicy{StopOnTerminal, StopOnSuccess, StopOnFailure, StopNever} {
		got, err := ParseStopPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseStopPolicy("sometimes")
	require.Error(t, err)
	assert.Equal(t, "StopPolicy(9)", StopPolicy(9).String())
}
