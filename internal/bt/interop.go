package bt

import (
	"fmt"

	behaviortree "github.com/joeycumines/go-behaviortree"
)

// FromBehaviorTree adapts a go-behaviortree node into a leaf callable. The
// node is ticked once per leaf tick; its error, if any, is reported as a
// leaf failure.
func FromBehaviorTree(node behaviortree.Node) LeafFunc {
	return func(*Blackboard) (Result, error) {
		status, err := node.Tick()
		if err != nil {
			return Result{}, err
		}
		switch status {
		case behaviortree.Running:
			return Code(int(Running)), nil
		case behaviortree.Success:
			return Code(int(Success)), nil
		case behaviortree.Failure:
			return Code(int(Failure)), nil
		}
		return Result{}, fmt.Errorf("%w: go-behaviortree status %v", ErrUnmappedResult, status)
	}
}

// ToBehaviorTree converts a Status into the go-behaviortree equivalent.
// go-behaviortree has no idle state; Idle maps to Failure.
func ToBehaviorTree(s Status) behaviortree.Status {
	switch s {
	case Running:
		return behaviortree.Running
	case Success:
		return behaviortree.Success
	default:
		return behaviortree.Failure
	}
}
