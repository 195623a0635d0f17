package aresdriver

// fdNode pairs one stub socket with the PolledFd wrapping it and the
// bookkeeping flags that keep at most one outstanding readiness arm per
// direction (spec.md invariant I2).
type fdNode struct {
	socket             SocketHandle
	polledFd           PolledFd
	readableRegistered bool
	writableRegistered bool
	alreadyShutdown    bool
}

func (n *fdNode) shutdown(err error) {
	if n.alreadyShutdown {
		return
	}
	n.alreadyShutdown = true
	n.polledFd.Shutdown(err)
}

// fdNodeList is an ordered, linearly-scanned collection of fdNodes. A plain
// slice mirrors the stub's own small-N expectation (the stub library itself
// documents a small fixed socket count) and keeps popExisting's O(n) scan
// cheap in practice; spec.md invariant I6 (no socket appears twice) is
// upheld by popExisting always removing its match before the caller
// re-inserts it into the new list.
type fdNodeList struct {
	nodes []*fdNode
}

// popExisting removes and returns the node tracking socket, or nil if none
// is tracked yet.
func (l *fdNodeList) popExisting(socket SocketHandle) *fdNode {
	for i, n := range l.nodes {
		if n.socket == socket {
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			return n
		}
	}
	return nil
}

func (l *fdNodeList) push(n *fdNode) {
	l.nodes = append(l.nodes, n)
}

func (l *fdNodeList) all() []*fdNode {
	return l.nodes
}

func (l *fdNodeList) len() int {
	return len(l.nodes)
}
