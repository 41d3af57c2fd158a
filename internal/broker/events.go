package broker

import "net"

// Event is the closed set of inputs the broker loop handles. The variants
// below are the only implementations; readers produce them, the broker
// consumes them in arrival order.
type Event interface {
	isEvent()
}

// NewPeer registers a connection under a display name. If the name is
// already registered the event is ignored: first registration wins.
type NewPeer struct {
	Name string

	// Conn is the write half of the peer's connection. The broker never
	// reads from it.
	Conn net.Conn

	// Shutdown is closed by the peer's reader when it exits. It tells the
	// writer to stop immediately, even with lines still queued.
	Shutdown <-chan struct{}
}

// PeerMessage routes a chat line from one peer to one, many, or all peers.
type PeerMessage struct {
	From string
	To   []string
	Body string
}

// ListRequest asks for the current peer list on behalf of From. The
// response goes to From's own queue only; requests from unregistered names
// are ignored.
type ListRequest struct {
	From string
}

// peersQuery snapshots the registered names for diagnostics endpoints.
// Going through the event loop keeps the registry single-owner.
type peersQuery struct {
	reply chan []string
}

func (NewPeer) isEvent()     {}
func (PeerMessage) isEvent() {}
func (ListRequest) isEvent() {}
func (peersQuery) isEvent()  {}

// disconnect reports that a peer's writer has terminated. Emitted exactly
// once per writer, on every exit path.
type disconnect struct {
	name string

	// pending holds whatever the writer did not deliver. The broker only
	// inspects its length; the lines themselves are dropped.
	pending *Outbox
}
