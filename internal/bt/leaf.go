package bt

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"
)

// LeafFunc is an externally supplied behavior. It receives the blackboard in
// scope for the node and returns a Result. A returned error, like a panic,
// turns the tick into Failure.
//
// A LeafFunc that needs several ticks to finish returns Running until it is
// done, keeping whatever progress it needs on the blackboard or in its own
// closure.
type LeafFunc func(bb *Blackboard) (Result, error)

// LeafOption configures a leaf node.
type LeafOption func(*leaf)

// WithLock makes the adapter hold l for the duration of every callable
// invocation, including the halt callback. Use it for callables owned by a
// host environment with a global execution lock; the lock must tolerate
// re-entry if the callable can tick another tree using the same lock.
func WithLock(l sync.Locker) LeafOption {
	return func(lf *leaf) { lf.lock = l }
}

// WithHalt registers fn to be called when the leaf is halted while Running,
// so it can release whatever it holds.
func WithHalt(fn func(bb *Blackboard)) LeafOption {
	return func(lf *leaf) { lf.onHalt = fn }
}

var errNilLeafFunc = errors.New("bt: leaf has no callable")

type leaf struct {
	fn     LeafFunc
	lock   sync.Locker
	onHalt func(*Blackboard)
}

// NewAction returns an action leaf wrapping fn.
func NewAction(name string, fn LeafFunc, opts ...LeafOption) *Node {
	return newLeaf(KindAction, name, fn, opts)
}

// NewCondition returns a condition leaf wrapping fn. Conditions are expected
// to be free of side effects and to never return Running, but this is not
// enforced.
func NewCondition(name string, fn LeafFunc, opts ...LeafOption) *Node {
	return newLeaf(KindCondition, name, fn, opts)
}

func newLeaf(kind Kind, name string, fn LeafFunc, opts []LeafOption) *Node {
	n := newNode(kind, name, nil)
	n.leaf = &leaf{fn: fn}
	for _, opt := range opts {
		opt(n.leaf)
	}
	return n
}

func (n *Node) tickLeaf() Status {
	res, err := n.leaf.call(n.Blackboard())
	if err == nil {
		var s Status
		if s, err = res.Status(); err == nil {
			return s
		}
	}
	n.reportLeafError(err)
	return Failure
}

func (n *Node) haltLeaf() {
	if n.leaf.onHalt == nil {
		return
	}
	if err := n.leaf.halt(n.Blackboard()); err != nil {
		n.reportLeafError(err)
	}
}

func (n *Node) reportLeafError(err error) {
	le := &LeafError{
		NodeID: n.id,
		Name:   n.name,
		Path:   n.Path(),
		Time:   time.Now(),
		Err:    err,
	}
	if n.tree != nil {
		n.tree.leafFailed(le)
		return
	}
	defaultLogger().Error("[bt] leaf failed", "node", le.Name, "error", err)
}

func (l *leaf) call(bb *Blackboard) (res Result, err error) {
	if l.fn == nil {
		return Result{}, errNilLeafFunc
	}
	if l.lock != nil {
		l.lock.Lock()
		defer l.lock.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return l.fn(bb)
}

func (l *leaf) halt(bb *Blackboard) (err error) {
	if l.lock != nil {
		l.lock.Lock()
		defer l.lock.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	l.onHalt(bb)
	return nil
}
