package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/wmeredith/chathub/internal/task"
)

// Manager owns the TCP accept loop. For each accepted connection it spawns
// one reader task feeding events to the broker. A single failed accept is
// logged and skipped, never fatal to the loop.
type Manager struct {
	addr   string
	sink   EventSink
	logger *slog.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// conns tracks open connections so Stop can cut them loose; this is
	// bookkeeping for shutdown, not the peer registry.
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// NewManager creates a connection manager listening on addr.
func NewManager(addr string, sink EventSink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		addr:   addr,
		sink:   sink,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting. A bind failure is
// returned to the caller; the broker must already be running.
func (m *Manager) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", m.addr, err)
	}
	m.listener = ln
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.acceptLoop()

	m.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address.
func (m *Manager) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Stop closes the listener and every live connection, then waits for the
// reader tasks to finish or ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}
	if m.listener != nil {
		m.listener.Close()
	}
	m.closeConns()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
	}
	return nil
}

func (m *Manager) acceptLoop() {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.logger.Warn("accept failed", "error", err)
			continue
		}

		connLogger := m.logger.With(
			"conn_id", uuid.NewString(),
			"remote", conn.RemoteAddr().String(),
		)
		connLogger.Info("connection accepted")

		m.track(conn)
		m.wg.Add(1)
		task.Go(connLogger, "connection reader", func() error {
			defer m.wg.Done()
			defer m.untrack(conn)
			defer conn.Close()
			return ReadLoop(m.ctx, conn, m.sink, connLogger)
		})
	}
}

func (m *Manager) track(conn net.Conn) {
	m.connsMu.Lock()
	m.conns[conn] = struct{}{}
	m.connsMu.Unlock()
}

func (m *Manager) untrack(conn net.Conn) {
	m.connsMu.Lock()
	delete(m.conns, conn)
	m.connsMu.Unlock()
}

func (m *Manager) closeConns() {
	m.connsMu.Lock()
	defer m.connsMu.Unlock()
	for conn := range m.conns {
		conn.Close()
	}
}
