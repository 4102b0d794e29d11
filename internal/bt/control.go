package bt

// tickSequence resumes from the remembered child. A Running child suspends
// the round, a Failure ends it, and Success moves on to the next child.
func (n *Node) tickSequence() Status {
	n.setStatus(Running)
	for n.current < len(n.children) {
		switch n.children[n.current].Tick() {
		case Running:
			return Running
		case Failure:
			n.resetChildren()
			n.current = 0
			return Failure
		default:
			n.current++
		}
	}
	n.resetChildren()
	n.current = 0
	return Success
}

// tickFallback is tickSequence with the roles of Success and Failure
// swapped.
func (n *Node) tickFallback() Status {
	n.setStatus(Running)
	for n.current < len(n.children) {
		switch n.children[n.current].Tick() {
		case Running:
			return Running
		case Success:
			n.resetChildren()
			n.current = 0
			return Success
		default:
			n.current++
		}
	}
	n.resetChildren()
	n.current = 0
	return Failure
}

// tickParallel ticks every child that has not completed in the current
// round, then decides. Tallies are cumulative across ticks until the round
// ends.
func (n *Node) tickParallel() Status {
	if n.threshold == 0 {
		return Success
	}
	n.setStatus(Running)
	if len(n.completed) != len(n.children) {
		n.completed = make([]bool, len(n.children))
	}
	for i, c := range n.children {
		if n.completed[i] {
			continue
		}
		switch c.Tick() {
		case Success:
			n.completed[i] = true
			n.successes++
		case Failure:
			n.completed[i] = true
			n.failures++
		}
	}
	switch {
	case n.successes >= n.threshold:
		n.resetChildren()
		n.resetTallies()
		return Success
	case n.failures > len(n.children)-n.threshold:
		n.resetChildren()
		n.resetTallies()
		return Failure
	}
	return Running
}

func (n *Node) resetTallies() {
	n.successes = 0
	n.failures = 0
	for i := range n.completed {
		n.completed[i] = false
	}
}
