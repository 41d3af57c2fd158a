package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/wmeredith/chathub/internal/broker"
	"github.com/wmeredith/chathub/internal/protocol"
)

// EventSink accepts events destined for the broker.
type EventSink interface {
	Submit(ctx context.Context, ev broker.Event) error
}

// ReadLoop drives the inbound half of one peer connection. The first line
// is the peer's display name; every later line is a sentinel, a
// "dest:body" message, or noise to ignore. The loop ends when the socket
// yields no more lines. It never unregisters the peer itself — registry
// cleanup is triggered by the writer's disconnect notice, after the
// shutdown signal (closed here on exit) has stopped the writer.
func ReadLoop(ctx context.Context, conn net.Conn, sink EventSink, logger *slog.Logger) error {
	shutdown := make(chan struct{})
	defer close(shutdown)

	lines := bufio.NewScanner(conn)

	if !lines.Scan() {
		if err := lines.Err(); err != nil {
			return fmt.Errorf("read peer name: %w", err)
		}
		return errors.New("peer disconnected immediately")
	}
	name := lines.Text()

	if err := sink.Submit(ctx, broker.NewPeer{Name: name, Conn: conn, Shutdown: shutdown}); err != nil {
		return err
	}
	joined := broker.PeerMessage{
		From: protocol.SystemName,
		To:   []string{protocol.Wildcard},
		Body: protocol.JoinNotice(name),
	}
	if err := sink.Submit(ctx, joined); err != nil {
		return err
	}
	logger.Info("peer joined", "peer", name)

	for lines.Scan() {
		line := lines.Text()

		switch {
		case line == protocol.DisconnectSentinel:
			// Announce the departure; the registry entry is removed later,
			// via the writer's disconnect notice.
			left := broker.PeerMessage{
				From: protocol.SystemName,
				To:   []string{protocol.Wildcard},
				Body: protocol.LeaveNotice(name),
			}
			if err := sink.Submit(ctx, left); err != nil {
				return err
			}

		case line == protocol.PeerListSentinel:
			if err := sink.Submit(ctx, broker.ListRequest{From: name}); err != nil {
				return err
			}

		default:
			to, body, ok := protocol.SplitDirected(line)
			if !ok {
				continue // no ':' — not an error, just ignored
			}
			if err := sink.Submit(ctx, broker.PeerMessage{From: name, To: to, Body: body}); err != nil {
				return err
			}
		}
	}

	if err := lines.Err(); err != nil {
		return fmt.Errorf("read from peer: %w", err)
	}
	return nil
}
