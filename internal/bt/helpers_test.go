package bt

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scripted is a leaf that replays a list of statuses, repeating the last one
// once exhausted, and counts calls and halts.
type scripted struct {
	mu      sync.Mutex
	results []Status
	calls   int
	halts   int
}

func script(results ...Status) *scripted {
	return &scripted{results: results}
}

func (s *scripted) node(name string) *Node {
	return NewAction(name, func(*Blackboard) (Result, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		r := s.results[min(s.calls, len(s.results)-1)]
		s.calls++
		return Code(int(r)), nil
	}, WithHalt(func(*Blackboard) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.halts++
	}))
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scripted) Halts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halts
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTree(t *testing.T, root *Node, opts ...Option) *Tree {
	t.Helper()
	tree, err := NewTree(root, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return tree
}

func mustTick(t *testing.T, tree *Tree) Status {
	t.Helper()
	s, err := tree.TickRoot()
	require.NoError(t, err)
	return s
}

// statuses returns the status of every node, keyed by path.
func statuses(tree *Tree) map[string]Status {
	out := make(map[string]Status)
	tree.Walk(func(n *Node, _ int) bool {
		out[n.Path()] = n.Status()
		return true
	})
	return out
}

func allIdle(t *testing.T, tree *Tree) {
	t.Helper()
	for path, s := range statuses(tree) {
		require.Equal(t, Idle, s, "node %s", path)
	}
}
