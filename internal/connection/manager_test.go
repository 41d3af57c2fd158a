package connection

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/wmeredith/chathub/internal/broker"
)

// chatClient is a real TCP client for end-to-end tests.
type chatClient struct {
	name  string
	conn  net.Conn
	lines chan string
}

func dialPeer(t *testing.T, addr, name string) *chatClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := fmt.Fprintf(conn, "%s\n", name); err != nil {
		t.Fatalf("send name: %v", err)
	}

	c := &chatClient{name: name, conn: conn, lines: make(chan string, 64)}
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		close(c.lines)
	}()
	return c
}

func (c *chatClient) send(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		t.Fatalf("%s: send %q: %v", c.name, line, err)
	}
}

func (c *chatClient) recv(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-c.lines:
		if !ok {
			t.Fatalf("%s: connection closed", c.name)
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for line", c.name)
	}
	return ""
}

func (c *chatClient) expect(t *testing.T, want string) {
	t.Helper()
	if got := c.recv(t); got != want {
		t.Fatalf("%s got %q, want %q", c.name, got, want)
	}
}

func startServer(t *testing.T) (*Manager, *broker.Broker) {
	t.Helper()
	b := broker.New(broker.Config{EventBuffer: 32}, testLogger())
	b.Start()

	m := NewManager("127.0.0.1:0", b, testLogger())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("manager start: %v", err)
	}
	return m, b
}

func stopServer(t *testing.T, m *Manager, b *broker.Broker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Stop(ctx)
	b.Close()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not stop")
	}
}

func TestEndToEnd_ChatScenario(t *testing.T) {
	m, b := startServer(t)
	addr := m.Addr().String()

	alice := dialPeer(t, addr, "alice")
	alice.expect(t, "**New client joined: alice")

	bob := dialPeer(t, addr, "bob")
	alice.expect(t, "**New client joined: bob")
	bob.expect(t, "**New client joined: bob")

	alice.send(t, "bob:hello")
	bob.expect(t, "alice: hello")

	alice.send(t, "*:hi all")
	alice.expect(t, "alicehi all")
	bob.expect(t, "alicehi all")

	bob.send(t, "Client_PeerList_Request")
	bob.expect(t, "**Clients Connected:")
	entries := map[string]bool{bob.recv(t): true, bob.recv(t): true}
	for _, want := range []string{"**Server: alice", "**Server: bob"} {
		if !entries[want] {
			t.Errorf("missing list entry %q in %v", want, entries)
		}
	}
	bob.expect(t, "**FIN")

	bob.send(t, "Client_Disconnect")
	alice.expect(t, "**Client, bob, has disconnected ")

	// Lines without a colon are dropped without feedback.
	alice.send(t, "this is not a message")
	alice.send(t, "*:still here")
	alice.expect(t, "alicestill here")

	stopServer(t, m, b)
}

func TestEndToEnd_GracefulShutdown(t *testing.T) {
	m, b := startServer(t)
	addr := m.Addr().String()

	alice := dialPeer(t, addr, "alice")
	alice.expect(t, "**New client joined: alice")

	stopServer(t, m, b)

	if got := b.State(); got != broker.StateStopped {
		t.Errorf("State = %q, want %q", got, broker.StateStopped)
	}
	if stats := b.Stats(); stats.Peers != 0 {
		t.Errorf("Peers = %d, want 0", stats.Peers)
	}
}

func TestManager_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	b := broker.New(broker.Config{}, testLogger())
	b.Start()
	defer func() {
		b.Close()
		<-b.Done()
	}()

	m := NewManager(ln.Addr().String(), b, testLogger())
	if err := m.Start(context.Background()); err == nil {
		m.Stop(context.Background())
		t.Fatal("Start on an occupied address succeeded")
	}
}
