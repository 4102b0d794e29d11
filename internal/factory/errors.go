package factory

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned when registering under an empty name.
	ErrEmptyName = errors.New("factory: empty name")

	// ErrDuplicate is returned when a name or tree ID is already registered.
	ErrDuplicate = errors.New("factory: already registered")

	// ErrUnknownType is returned by RegisterNode for a type outside the
	// built-in set.
	ErrUnknownType = errors.New("factory: unknown node type")

	// ErrMalformed wraps XML syntax errors and structural problems in a
	// tree description.
	ErrMalformed = errors.New("factory: malformed tree description")

	// ErrUnknownNode is returned when a description references a node that
	// was never registered.
	ErrUnknownNode = errors.New("factory: unknown node")

	// ErrNoMainTree is returned when the tree to execute cannot be
	// determined or does not exist.
	ErrNoMainTree = errors.New("factory: no main tree")

	// ErrRecursion is returned when a SubTree references itself, directly
	// or through other subtrees.
	ErrRecursion = errors.New("factory: recursive subtree")
)

// BuildError locates a failure while building a tree from a description.
type BuildError struct {
	// Tree is the BehaviorTree ID being instantiated.
	Tree string
	// Path is the slash-separated element path within the tree.
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("factory: tree %q: %v", e.Tree, e.Err)
	}
	return fmt.Sprintf("factory: tree %q at %s: %v", e.Tree, e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
