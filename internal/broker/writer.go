package broker

import (
	"fmt"
	"io"
	"net"
)

// runWriter drains a peer's outbox to its connection. It terminates when
// the producer side of the queue is gone (after delivering what is left)
// or as soon as the shutdown signal fires (dropping what is left — there
// is no guaranteed drain on that path). Write failures terminate only this
// peer; the caller logs them.
func runWriter(conn net.Conn, out *Outbox, shutdown <-chan struct{}) error {
	for {
		select {
		case line, ok := <-out.Lines():
			if !ok {
				return nil
			}
			if _, err := io.WriteString(conn, line); err != nil {
				return fmt.Errorf("write to peer: %w", err)
			}
		case <-shutdown:
			return nil
		}
	}
}
