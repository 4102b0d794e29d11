/*
Package bt implements a tick-driven behavior tree execution engine.

# Model

A Tree owns one root Node and a root Blackboard. Every call to Tree.TickRoot
performs one synchronous, non-reentrant traversal: composite nodes tick their
children according to their algorithm, leaf nodes invoke an externally
supplied callable, and the resulting Status propagates back to the root.
Work that spans several ticks is expressed by returning Running and resuming
on the next tick; nothing blocks or yields inside a tick.

Node is a closed sum type. The variant is identified by Kind:

  - Action, Condition: leaf adapters around a LeafFunc
  - Sequence, Fallback: ordered composites with an explicit resume index
  - Parallel: threshold composite that ticks every unfinished child
  - KeepRunningUntilFailure: decorator masking Success as Running
  - SubTree: decorator scoping its descendants to a child Blackboard

All behaviour is dispatched from Node.Tick and Node.Halt.

# Leaves

A LeafFunc returns a Result, a tagged value that is either a status name, a
boolean or a numeric status code. Result.Status is the single, total mapping
from the external calling convention to a Status. Errors returned by the
callable, panics and unmapped results are recovered by the adapter, reported
through Tree.OnLeafError and the tree's logger, and converted to Failure.

When the callable lives in a host environment guarded by a global execution
lock, pass that lock with WithLock; it is held for exactly the duration of the
call.

# Blackboard

Blackboards form a read-through hierarchy: a lookup miss consults the parent,
writes always land in the blackboard they were issued against. Reading a key
that is absent from the whole chain is an error (ErrKeyNotFound).

# Concurrency

At most one tick is in flight per tree; TickRoot reports ErrTickInProgress
otherwise. HaltTree and Close may be called from any goroutine and are
sequenced with ticking. Status-change subscribers run on the ticking
goroutine and must not block.
*/
package bt
