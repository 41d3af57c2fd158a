package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wmeredith/chathub/internal/connection"
)

// Bridge serves the chat line protocol to WebSocket peers. Each upgraded
// connection runs through the same reader as a TCP peer, so WebSocket and
// TCP clients share one room and one broker.
type Bridge struct {
	addr   string
	path   string
	sink   connection.EventSink
	logger *slog.Logger

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*streamConn]struct{}
}

// NewBridge creates a WebSocket bridge serving path on addr.
func NewBridge(addr, path string, sink connection.EventSink, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		addr:   addr,
		path:   path,
		sink:   sink,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge has no session state to protect; origin policy is
			// left to whatever fronts it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*streamConn]struct{}),
	}
}

// Start binds the bridge listener and begins serving upgrades.
func (b *Bridge) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", b.addr, err)
	}
	b.listener = ln
	b.ctx, b.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(b.path, b.handleUpgrade)
	b.server = &http.Server{Handler: mux}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("websocket bridge serve failed", "error", err)
		}
	}()

	b.logger.Info("websocket bridge listening", "addr", ln.Addr().String(), "path", b.path)
	return nil
}

// Addr returns the bound listener address.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stop shuts the HTTP server down, closes live WebSocket peers, and waits
// for their readers to finish or ctx to expire.
func (b *Bridge) Stop(ctx context.Context) error {
	b.logger.Info("stopping websocket bridge")

	if b.cancel != nil {
		b.cancel()
	}
	if b.server != nil {
		// Upgraded connections are hijacked; Shutdown only stops new ones.
		b.server.Shutdown(ctx)
	}
	b.closeConns()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("websocket bridge stopped")
	case <-ctx.Done():
		b.logger.Warn("websocket bridge stop timed out")
	}
	return nil
}

func (b *Bridge) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newStreamConn(ws)
	connLogger := b.logger.With(
		"conn_id", uuid.NewString(),
		"remote", r.RemoteAddr,
		"transport", "websocket",
	)
	connLogger.Info("connection accepted")

	b.track(conn)
	b.wg.Add(1)
	defer b.wg.Done()
	defer b.untrack(conn)
	defer conn.Close()

	if err := connection.ReadLoop(b.ctx, conn, b.sink, connLogger); err != nil {
		connLogger.Warn("connection failed", "error", err)
	}
}

func (b *Bridge) track(conn *streamConn) {
	b.connsMu.Lock()
	b.conns[conn] = struct{}{}
	b.connsMu.Unlock()
}

func (b *Bridge) untrack(conn *streamConn) {
	b.connsMu.Lock()
	delete(b.conns, conn)
	b.connsMu.Unlock()
}

func (b *Bridge) closeConns() {
	b.connsMu.Lock()
	defer b.connsMu.Unlock()
	for conn := range b.conns {
		conn.Close()
	}
}
