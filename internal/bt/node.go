package bt

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Node is a behavior tree node. It is a closed sum type over Kind; use the
// New* constructors to create one.
//
// A node belongs to at most one parent and at most one Tree. Tick and Halt
// must not be called concurrently on the same node; Tree serializes them.
type Node struct {
	id       uuid.UUID
	name     string
	kind     Kind
	status   atomic.Int32
	children []*Node

	leaf *leaf

	// Sequence and Fallback: index of the child to resume from.
	current int

	// Parallel: success threshold and per-round tallies.
	threshold int
	completed []bool
	successes int
	failures  int

	// SubTree: use the enclosing blackboard instead of a child scope.
	shared bool

	// Assigned when the node is bound to a tree.
	tree *Tree
	bb   *Blackboard
	path string
}

func newNode(kind Kind, name string, children []*Node) *Node {
	if name == "" {
		name = kind.String()
	}
	return &Node{
		id:       uuid.New(),
		name:     name,
		kind:     kind,
		children: children,
	}
}

// NewSequence returns a Sequence node ticking children left to right.
func NewSequence(name string, children ...*Node) *Node {
	return newNode(KindSequence, name, children)
}

// NewFallback returns a Fallback node ticking children left to right until
// one does not fail.
func NewFallback(name string, children ...*Node) *Node {
	return newNode(KindFallback, name, children)
}

// NewParallel returns a Parallel node that succeeds once threshold children
// have succeeded. A threshold greater than the number of children, or
// negative, is rejected.
func NewParallel(name string, threshold int, children ...*Node) (*Node, error) {
	if threshold < 0 || threshold > len(children) {
		return nil, fmt.Errorf("%w: %d of %d children", ErrInvalidThreshold, threshold, len(children))
	}
	n := newNode(KindParallel, name, children)
	n.threshold = threshold
	return n, nil
}

// NewKeepRunningUntilFailure returns a decorator that reports Running while
// its child succeeds or runs, and Failure once the child fails.
func NewKeepRunningUntilFailure(name string, child *Node) *Node {
	return newNode(KindKeepRunningUntilFailure, name, []*Node{child})
}

// NewSubTree returns a decorator that passes its child's status through.
// Unless shared is set, the child's descendants see a new Blackboard whose
// parent is the blackboard in scope at the SubTree.
func NewSubTree(name string, child *Node, shared bool) *Node {
	n := newNode(KindSubTree, name, []*Node{child})
	n.shared = shared
	return n
}

// ID returns the unique identity of the node.
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the node category.
func (n *Node) Type() NodeType { return n.kind.Type() }

// Status returns the status of the most recent tick, or Idle. It is safe to
// call from any goroutine.
func (n *Node) Status() Status { return Status(n.status.Load()) }

// Children returns the ordered children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Path returns the slash-separated names from the tree root to the node. It
// is the bare name for nodes that are not part of a tree.
func (n *Node) Path() string {
	if n.path == "" {
		return n.name
	}
	return n.path
}

// Threshold returns the success threshold of a Parallel node, and 0 for
// other kinds.
func (n *Node) Threshold() int { return n.threshold }

// Shared reports whether a SubTree node uses the enclosing blackboard.
func (n *Node) Shared() bool { return n.shared }

// Blackboard returns the blackboard in scope for the node. Nodes ticked
// outside of a tree get a private blackboard on first use.
func (n *Node) Blackboard() *Blackboard {
	if n.bb == nil {
		n.bb = new(Blackboard)
	}
	return n.bb
}

// Tick runs one evaluation step and returns the new status, which is never
// Idle. Leaf failures are recovered and reported, never propagated.
func (n *Node) Tick() Status {
	var s Status
	switch n.kind {
	case KindAction, KindCondition:
		s = n.tickLeaf()
	case KindSequence:
		s = n.tickSequence()
	case KindFallback:
		s = n.tickFallback()
	case KindParallel:
		s = n.tickParallel()
	case KindKeepRunningUntilFailure:
		s = n.tickKeepRunningUntilFailure()
	case KindSubTree:
		s = n.tickSubTree()
	default:
		panic(fmt.Sprintf("bt: tick of node %q with undefined kind %d", n.name, n.kind))
	}
	n.setStatus(s)
	return s
}

// Halt cancels a Running node, recursively halting its active children and
// returning it to Idle. It is a no-op for a node that is not Running, so
// repeated calls are harmless.
func (n *Node) Halt() {
	if n.Status() != Running {
		return
	}
	switch n.kind {
	case KindAction, KindCondition:
		n.haltLeaf()
	case KindSequence, KindFallback:
		n.resetChildren()
		n.current = 0
	case KindParallel:
		n.resetChildren()
		n.resetTallies()
	case KindKeepRunningUntilFailure, KindSubTree:
		n.resetChildren()
	}
	n.setStatus(Idle)
}

// reset returns the node to Idle, halting it first if it is Running.
func (n *Node) reset() {
	if n.Status() == Running {
		n.Halt()
		return
	}
	n.setStatus(Idle)
}

func (n *Node) resetChildren() {
	for _, c := range n.children {
		c.reset()
	}
}

func (n *Node) setStatus(s Status) {
	prev := Status(n.status.Swap(int32(s)))
	if prev != s && n.tree != nil {
		n.tree.statusChanged(n, prev, s)
	}
}
