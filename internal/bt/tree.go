package bt

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/bte/internal/goroutineid"
)

// Tree owns a root node and the root blackboard, and is the entry point for
// ticking and halting.
type Tree struct {
	root   *Node
	bb     *Blackboard
	logger *slog.Logger

	// mu sequences ticks, halts and Close. owner is the goroutine holding
	// mu, or 0, and is used to reject re-entrant calls that would deadlock.
	// ticking is set while mu is held by TickRoot.
	mu      sync.Mutex
	owner   atomic.Int64
	ticking atomic.Bool
	closed  bool

	subMu      sync.Mutex
	nextSub    uint64
	statusSubs atomic.Pointer[[]subscription[StatusChangeFunc]]
	errorSubs  atomic.Pointer[[]subscription[LeafErrorFunc]]
}

// Option configures a Tree.
type Option func(*treeOptions)

type treeOptions struct {
	bb     *Blackboard
	logger *slog.Logger
}

// WithBlackboard uses bb as the root blackboard instead of a new one, so it
// can be seeded before the first tick.
func WithBlackboard(bb *Blackboard) Option {
	return func(o *treeOptions) { o.bb = bb }
}

// WithLogger sets the logger used to report leaf failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *treeOptions) { o.logger = logger }
}

func defaultLogger() *slog.Logger { return slog.Default() }

// NewTree validates the structure below root and binds every node to the
// tree. On error no node is modified.
func NewTree(root *Node, opts ...Option) (*Tree, error) {
	var o treeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if root == nil {
		return nil, ErrNilRoot
	}
	if err := validate(root, make(map[*Node]struct{})); err != nil {
		return nil, err
	}
	if o.bb == nil {
		o.bb = NewBlackboard(nil)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	t := &Tree{root: root, bb: o.bb, logger: o.logger}
	t.bind(root, o.bb, "")
	return t, nil
}

func validate(n *Node, seen map[*Node]struct{}) error {
	if _, ok := seen[n]; ok {
		return fmt.Errorf("%w: node %q has more than one parent", ErrInvalidTree, n.name)
	}
	seen[n] = struct{}{}
	if n.tree != nil {
		return fmt.Errorf("%w: node %q already belongs to a tree", ErrInvalidTree, n.name)
	}
	switch n.kind {
	case KindAction, KindCondition:
		if n.leaf == nil || n.leaf.fn == nil {
			return fmt.Errorf("%w: leaf %q has no callable", ErrInvalidTree, n.name)
		}
		if len(n.children) != 0 {
			return fmt.Errorf("%w: leaf %q has children", ErrInvalidTree, n.name)
		}
	case KindSequence, KindFallback:
	case KindParallel:
		if n.threshold < 0 || n.threshold > len(n.children) {
			return fmt.Errorf("%w: %q requires %d of %d children", ErrInvalidThreshold, n.name, n.threshold, len(n.children))
		}
	case KindKeepRunningUntilFailure, KindSubTree:
		if len(n.children) != 1 {
			return fmt.Errorf("%w: decorator %q must have exactly one child, has %d", ErrInvalidTree, n.name, len(n.children))
		}
	default:
		return fmt.Errorf("%w: node %q has undefined kind %d", ErrInvalidTree, n.name, n.kind)
	}
	for i, c := range n.children {
		if c == nil {
			return fmt.Errorf("%w: child %d of %q is nil", ErrInvalidTree, i, n.name)
		}
		if err := validate(c, seen); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) bind(n *Node, bb *Blackboard, parentPath string) {
	n.tree = t
	n.bb = bb
	if parentPath == "" {
		n.path = n.name
	} else {
		n.path = parentPath + "/" + n.name
	}
	if n.kind == KindSubTree && !n.shared {
		bb = NewBlackboard(bb)
	}
	for _, c := range n.children {
		t.bind(c, bb, n.path)
	}
}

// TickRoot ticks the root node once and returns its status. It returns
// ErrTickInProgress if another tick is in flight, including a re-entrant
// call from one of the tree's own leaves, and ErrTreeClosed after Close.
// A concurrent HaltTree or Close is waited for.
// Leaf failures are never returned as errors.
func (t *Tree) TickRoot() (Status, error) {
	id := goroutineid.Get()
	if id != 0 && t.owner.Load() == id {
		return Idle, ErrTickInProgress
	}
	if !t.mu.TryLock() {
		if t.ticking.Load() {
			return Idle, ErrTickInProgress
		}
		t.mu.Lock()
	}
	t.owner.Store(id)
	t.ticking.Store(true)
	defer func() {
		t.ticking.Store(false)
		t.release()
	}()
	if t.closed {
		return Idle, ErrTreeClosed
	}
	return t.root.Tick(), nil
}

// HaltTree halts the root, recursively cancelling every Running node. It
// waits for an in-flight tick to finish first. Calling it from inside the
// tree's own tick returns ErrTickInProgress.
func (t *Tree) HaltTree() error {
	if err := t.acquire(); err != nil {
		return err
	}
	defer t.release()
	t.root.Halt()
	return nil
}

// Close halts the tree and rejects further ticks. Subscriptions are dropped
// after the halt transitions have been delivered. It is idempotent.
func (t *Tree) Close() error {
	if err := t.acquire(); err != nil {
		return err
	}
	defer t.release()
	if t.closed {
		return nil
	}
	t.root.Halt()
	t.closed = true
	t.subMu.Lock()
	t.statusSubs.Store(nil)
	t.errorSubs.Store(nil)
	t.subMu.Unlock()
	return nil
}

func (t *Tree) acquire() error {
	id := goroutineid.Get()
	if id != 0 && t.owner.Load() == id {
		return ErrTickInProgress
	}
	t.mu.Lock()
	t.owner.Store(id)
	return nil
}

func (t *Tree) release() {
	t.owner.Store(0)
	t.mu.Unlock()
}

// RootNode returns the root node.
func (t *Tree) RootNode() *Node { return t.root }

// RootBlackboard returns the root blackboard, for seeding state before the
// first tick and reading results after.
func (t *Tree) RootBlackboard() *Blackboard { return t.bb }

// Logger returns the logger leaf failures are reported to.
func (t *Tree) Logger() *slog.Logger { return t.logger }

// Walk visits every node depth-first in child order, starting at the root.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	walk(t.root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		walk(c, depth+1, fn)
	}
}
