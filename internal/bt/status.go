package bt

import "fmt"

// Status is the result of ticking a node.
//
// The numeric values are stable and shared with external callers that report
// numeric status codes.
type Status int

const (
	// Idle is the state of a node that has not been ticked in the current
	// round, or that has been halted.
	Idle Status = iota
	// Running indicates the node needs more ticks to reach a result.
	Running
	// Success is a terminal result.
	Success
	// Failure is a terminal result.
	Failure
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is Success or Failure.
func (s Status) IsTerminal() bool {
	return s == Success || s == Failure
}

// valid reports whether s is one of the four defined statuses.
func (s Status) valid() bool {
	return s >= Idle && s <= Failure
}

// ParseStatus converts a status name into a Status. Matching is
// case-sensitive and only the names produced by Status.String are accepted.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "IDLE":
		return Idle, true
	case "RUNNING":
		return Running, true
	case "SUCCESS":
		return Success, true
	case "FAILURE":
		return Failure, true
	default:
		return Idle, false
	}
}

// NodeType is the coarse category of a node.
type NodeType int

const (
	ActionNode NodeType = iota + 1
	ConditionNode
	ControlNode
	DecoratorNode
)

// String implements fmt.Stringer.
func (t NodeType) String() string {
	switch t {
	case ActionNode:
		return "Action"
	case ConditionNode:
		return "Condition"
	case ControlNode:
		return "Control"
	case DecoratorNode:
		return "Decorator"
	default:
		return "Undefined"
	}
}

// Kind identifies the concrete variant of a Node.
type Kind int

const (
	KindAction Kind = iota + 1
	KindCondition
	KindSequence
	KindFallback
	KindParallel
	KindKeepRunningUntilFailure
	KindSubTree
)

// String returns the canonical type name, as used in tree descriptions.
func (k Kind) String() string {
	switch k {
	case KindAction:
		return "Action"
	case KindCondition:
		return "Condition"
	case KindSequence:
		return "Sequence"
	case KindFallback:
		return "Fallback"
	case KindParallel:
		return "Parallel"
	case KindKeepRunningUntilFailure:
		return "KeepRunningUntilFailure"
	case KindSubTree:
		return "SubTree"
	default:
		return "Unknown"
	}
}

// Type returns the category of the variant.
func (k Kind) Type() NodeType {
	switch k {
	case KindAction:
		return ActionNode
	case KindCondition:
		return ConditionNode
	case KindSequence, KindFallback, KindParallel:
		return ControlNode
	case KindKeepRunningUntilFailure, KindSubTree:
		return DecoratorNode
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, ok := ParseStatus(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatusName, text)
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for v := KindAction; v <= KindSubTree; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("bt: unknown node kind %q", text)
}
