package bt

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrKeyNotFound is returned when a key is absent from a blackboard and
	// all of its ancestors.
	ErrKeyNotFound = errors.New("bt: blackboard key not found")

	// ErrTypeMismatch is returned by GetAs when the stored value has a
	// different type.
	ErrTypeMismatch = errors.New("bt: blackboard value type mismatch")

	// ErrNilRoot is returned by NewTree when no root is given.
	ErrNilRoot = errors.New("bt: tree has no root node")

	// ErrInvalidTree is wrapped by every structural validation failure.
	ErrInvalidTree = errors.New("bt: invalid tree")

	// ErrInvalidThreshold is returned when a Parallel success threshold is
	// negative or exceeds its child count.
	ErrInvalidThreshold = errors.New("bt: invalid parallel threshold")

	// ErrTickInProgress is returned when a tree is ticked (or halted from
	// inside its own tick) while another tick is in flight.
	ErrTickInProgress = errors.New("bt: tick already in progress")

	// ErrTreeClosed is returned when ticking a closed tree.
	ErrTreeClosed = errors.New("bt: tree closed")

	// ErrUnknownStatusName is reported when a leaf returns a status name
	// that does not match any status.
	ErrUnknownStatusName = errors.New("bt: unknown status name")

	// ErrInvalidStatusCode is reported when a leaf returns a numeric code
	// that is not Running, Success or Failure.
	ErrInvalidStatusCode = errors.New("bt: invalid status code")

	// ErrUnmappedResult is reported when a leaf returns a value with no
	// status mapping.
	ErrUnmappedResult = errors.New("bt: unmapped leaf result")
)

// PanicError wraps a value recovered from a panicking leaf callable.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("bt: leaf panicked: %v", e.Value)
}

// LeafError describes a leaf execution failure that was recovered by the
// adapter and converted to Failure.
type LeafError struct {
	NodeID uuid.UUID
	Name   string
	Path   string
	Time   time.Time
	Err    error
}

func (e *LeafError) Error() string {
	return fmt.Sprintf("bt: leaf %q: %v", e.Path, e.Err)
}

func (e *LeafError) Unwrap() error { return e.Err }
