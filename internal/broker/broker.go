package broker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/looplab/fsm"

	"github.com/wmeredith/chathub/internal/protocol"
	"github.com/wmeredith/chathub/internal/task"
)

// Lifecycle states. The broker starts Running, turns Draining when its
// inbound event source closes, and is Stopped once every writer has
// reported back.
const (
	StateRunning  = "running"
	StateDraining = "draining"
	StateStopped  = "stopped"
)

// ErrClosed is returned by Submit once the broker no longer accepts events.
var ErrClosed = errors.New("broker: closed")

// Config holds broker tuning.
type Config struct {
	// EventBuffer is the capacity of the inbound event channel.
	EventBuffer int
}

// DefaultConfig returns default broker configuration.
func DefaultConfig() Config {
	return Config{EventBuffer: 256}
}

// Stats contains runtime counters.
type Stats struct {
	Peers           int64 `json:"peers"`
	EventsProcessed int64 `json:"events_processed"`
	MessagesRouted  int64 `json:"messages_routed"`
	PeersJoined     int64 `json:"peers_joined"`
	PeersParted     int64 `json:"peers_parted"`
}

// Broker owns the peer registry and all routing decisions. Exactly one
// goroutine (the run loop) mutates the registry; every other component
// talks to it through Submit. That single-owner rule is what lets the
// registry live in a plain map with no lock.
type Broker struct {
	cfg    Config
	logger *slog.Logger

	events      chan Event
	disconnects chan disconnect
	closing     chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once

	lifecycle *fsm.FSM

	// peers maps display name to outbound queue. Touched only by the run
	// loop.
	peers map[string]*Outbox

	peerCount atomic.Int64
	processed atomic.Int64
	routed    atomic.Int64
	joined    atomic.Int64
	parted    atomic.Int64
}

// New creates a Broker. Call Start to begin processing events.
func New(cfg Config, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}

	b := &Broker{
		cfg:         cfg,
		logger:      logger,
		events:      make(chan Event, cfg.EventBuffer),
		disconnects: make(chan disconnect),
		closing:     make(chan struct{}),
		stopped:     make(chan struct{}),
		peers:       make(map[string]*Outbox),
	}

	b.lifecycle = fsm.NewFSM(
		StateRunning,
		fsm.Events{
			{Name: "drain", Src: []string{StateRunning}, Dst: StateDraining},
			{Name: "stop", Src: []string{StateDraining}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Info("broker lifecycle", "from", e.Src, "to", e.Dst)
			},
		},
	)

	return b
}

// Start launches the run loop.
func (b *Broker) Start() {
	go b.run()
}

// Submit hands an event to the broker. It blocks while the inbound channel
// is full and fails once Close has been called or ctx is done.
func (b *Broker) Submit(ctx context.Context, ev Event) error {
	select {
	case <-b.closing:
		return ErrClosed
	default:
	}
	select {
	case b.events <- ev:
		return nil
	case <-b.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the inbound event source exhausted. The broker finishes the
// events already queued, closes every outbox so writers flush and exit,
// consumes their disconnect notices, and then stops. Close never waits;
// use Done for that.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		close(b.closing)
	})
}

// Done is closed once the broker has fully stopped.
func (b *Broker) Done() <-chan struct{} {
	return b.stopped
}

// State returns the current lifecycle state.
func (b *Broker) State() string {
	return b.lifecycle.Current()
}

// Stats returns current counters.
func (b *Broker) Stats() Stats {
	return Stats{
		Peers:           b.peerCount.Load(),
		EventsProcessed: b.processed.Load(),
		MessagesRouted:  b.routed.Load(),
		PeersJoined:     b.joined.Load(),
		PeersParted:     b.parted.Load(),
	}
}

// Peers returns a sorted snapshot of registered names. The snapshot is
// taken inside the run loop, so it never races a registry mutation.
func (b *Broker) Peers(ctx context.Context) ([]string, error) {
	q := peersQuery{reply: make(chan []string, 1)}
	if err := b.Submit(ctx, q); err != nil {
		return nil, err
	}
	select {
	case names := <-q.reply:
		return names, nil
	case <-b.stopped:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run is the broker loop: the only global linearization point for registry
// mutations and routing decisions.
func (b *Broker) run() {
	defer close(b.stopped)

	for {
		select {
		case ev := <-b.events:
			b.handle(ev)
		case d := <-b.disconnects:
			b.removePeer(d)
		case <-b.closing:
			b.flushEvents()
			b.drain()
			return
		}
	}
}

// flushEvents handles whatever was submitted before Close won the race.
func (b *Broker) flushEvents() {
	for {
		select {
		case ev := <-b.events:
			b.handle(ev)
		default:
			return
		}
	}
}

// drain closes every outbox so each writer delivers its remaining lines
// and exits, then consumes disconnect notices until the registry is empty.
func (b *Broker) drain() {
	if err := b.lifecycle.Event(context.Background(), "drain"); err != nil {
		b.logger.Error("lifecycle transition failed", "event", "drain", "error", err)
	}

	for _, out := range b.peers {
		out.Close()
	}
	for len(b.peers) > 0 {
		b.removePeer(<-b.disconnects)
	}

	if err := b.lifecycle.Event(context.Background(), "stop"); err != nil {
		b.logger.Error("lifecycle transition failed", "event", "stop", "error", err)
	}
}

func (b *Broker) handle(ev Event) {
	b.processed.Add(1)

	switch ev := ev.(type) {
	case NewPeer:
		b.addPeer(ev)
	case PeerMessage:
		b.route(ev)
	case ListRequest:
		b.sendPeerList(ev.From)
	case peersQuery:
		names := make([]string, 0, len(b.peers))
		for name := range b.peers {
			names = append(names, name)
		}
		sort.Strings(names)
		ev.reply <- names
	}
}

// addPeer creates the registry entry and spawns the writer. A duplicate
// name is ignored: the existing entry and its queue stay untouched, and no
// writer is spawned for the new connection.
func (b *Broker) addPeer(ev NewPeer) {
	if _, ok := b.peers[ev.Name]; ok {
		b.logger.Debug("duplicate peer name ignored", "peer", ev.Name)
		return
	}

	out := NewOutbox()
	b.peers[ev.Name] = out
	b.peerCount.Store(int64(len(b.peers)))
	b.joined.Add(1)
	b.logger.Info("peer registered", "peer", ev.Name, "peers", len(b.peers))

	name, conn, shutdown := ev.Name, ev.Conn, ev.Shutdown
	task.Go(b.logger.With("peer", name), "connection writer", func() error {
		err := runWriter(conn, out, shutdown)
		out.Discard()
		b.disconnects <- disconnect{name: name, pending: out}
		return err
	})
}

// route delivers a message. Broadcasts go to every registered peer;
// directed messages only to the registered subset of the destination list.
// Unknown names and refused pushes are skipped, never errors.
func (b *Broker) route(ev PeerMessage) {
	b.routed.Add(1)

	if protocol.IsBroadcast(ev.To) {
		line := protocol.FormatBroadcast(ev.From, ev.Body)
		for _, out := range b.peers {
			out.Push(line)
		}
		return
	}

	line := protocol.FormatDirected(ev.From, ev.Body)
	for _, name := range ev.To {
		if out, ok := b.peers[name]; ok {
			out.Push(line)
		}
	}
}

// sendPeerList answers a list request on the requester's own queue:
// header, one line per registered name, terminator. Requests from names
// not in the registry are ignored.
func (b *Broker) sendPeerList(from string) {
	out, ok := b.peers[from]
	if !ok {
		return
	}

	out.Push(protocol.FormatListHeader())
	for name := range b.peers {
		out.Push(protocol.FormatListEntry(name))
	}
	out.Push(protocol.FormatListTerminator())
}

// removePeer handles a writer's disconnect notice. A notice for a name
// that is not registered means the single-owner invariant was broken
// somewhere; that is unrecoverable and must not be masked.
func (b *Broker) removePeer(d disconnect) {
	if _, ok := b.peers[d.name]; !ok {
		panic("broker: disconnect notice for unregistered peer " + d.name)
	}

	delete(b.peers, d.name)
	b.peerCount.Store(int64(len(b.peers)))
	b.parted.Add(1)

	if dropped := d.pending.Len(); dropped > 0 {
		b.logger.Debug("dropped undelivered lines", "peer", d.name, "count", dropped)
	}
	b.logger.Info("peer removed", "peer", d.name, "peers", len(b.peers))
}
