package bt

// tickKeepRunningUntilFailure masks a succeeding child as Running, so the
// child is ticked again on the next tick. Only a Failure propagates.
func (n *Node) tickKeepRunningUntilFailure() Status {
	n.setStatus(Running)
	switch n.children[0].Tick() {
	case Failure:
		n.resetChildren()
		return Failure
	case Success:
		n.resetChildren()
	}
	return Running
}

func (n *Node) tickSubTree() Status {
	n.setStatus(Running)
	s := n.children[0].Tick()
	if s.IsTerminal() {
		n.resetChildren()
	}
	return s
}
