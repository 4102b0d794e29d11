package bt

import (
	"time"

	"github.com/google/uuid"
)

// Transition describes one status change of one node.
type Transition struct {
	NodeID   uuid.UUID `json:"node_id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Kind     Kind      `json:"kind"`
	Previous Status    `json:"previous"`
	Current  Status    `json:"current"`
	Time     time.Time `json:"time"`
}

// StatusChangeFunc receives status transitions. It is called synchronously
// on the ticking goroutine and must not block.
type StatusChangeFunc func(Transition)

// LeafErrorFunc receives recovered leaf failures. It is called synchronously
// on the ticking goroutine and must not block.
type LeafErrorFunc func(*LeafError)

type subscription[F any] struct {
	id uint64
	fn F
}

// Subscribe registers fn for every status transition of every node in the
// tree. The returned function removes the subscription.
func (t *Tree) Subscribe(fn StatusChangeFunc) (cancel func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.statusSubs.Store(appendSub(t.statusSubs.Load(), subscription[StatusChangeFunc]{id: id, fn: fn}))
	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		t.statusSubs.Store(removeSub(t.statusSubs.Load(), id))
	}
}

// OnLeafError registers fn for every leaf failure recovered by the adapter.
// The returned function removes the subscription.
func (t *Tree) OnLeafError(fn LeafErrorFunc) (cancel func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.errorSubs.Store(appendSub(t.errorSubs.Load(), subscription[LeafErrorFunc]{id: id, fn: fn}))
	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		t.errorSubs.Store(removeSub(t.errorSubs.Load(), id))
	}
}

func (t *Tree) statusChanged(n *Node, prev, cur Status) {
	subs := t.statusSubs.Load()
	if subs == nil || len(*subs) == 0 {
		return
	}
	tr := Transition{
		NodeID:   n.id,
		Name:     n.name,
		Path:     n.path,
		Kind:     n.kind,
		Previous: prev,
		Current:  cur,
		Time:     time.Now(),
	}
	for _, s := range *subs {
		s.fn(tr)
	}
}

func (t *Tree) leafFailed(le *LeafError) {
	t.logger.Error("[bt] leaf failed",
		"node", le.Name,
		"path", le.Path,
		"error", le.Err)
	if subs := t.errorSubs.Load(); subs != nil {
		for _, s := range *subs {
			s.fn(le)
		}
	}
}

// appendSub and removeSub never modify the slice they are given, so readers
// may iterate a loaded snapshot without locking.
func appendSub[F any](cur *[]subscription[F], s subscription[F]) *[]subscription[F] {
	var next []subscription[F]
	if cur != nil {
		next = make([]subscription[F], len(*cur), len(*cur)+1)
		copy(next, *cur)
	}
	next = append(next, s)
	return &next
}

func removeSub[F any](cur *[]subscription[F], id uint64) *[]subscription[F] {
	if cur == nil {
		return nil
	}
	next := make([]subscription[F], 0, len(*cur))
	for _, s := range *cur {
		if s.id != id {
			next = append(next, s)
		}
	}
	return &next
}
