package wsbridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wmeredith/chathub/internal/broker"
	"github.com/wmeredith/chathub/internal/connection"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBridge(t *testing.T) (*Bridge, *broker.Broker) {
	t.Helper()
	b := broker.New(broker.Config{EventBuffer: 32}, testLogger())
	b.Start()

	bridge := NewBridge("127.0.0.1:0", "/ws", b, testLogger())
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("bridge start: %v", err)
	}
	return bridge, b
}

func stopBridge(t *testing.T, bridge *Bridge, b *broker.Broker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bridge.Stop(ctx)
	b.Close()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not stop")
	}
}

// wsPeer is a WebSocket chat client; every received frame is split into
// lines like a TCP client would.
type wsPeer struct {
	name  string
	ws    *websocket.Conn
	lines chan string
}

func dialWS(t *testing.T, bridge *Bridge, name string) *wsPeer {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws", bridge.Addr().String())
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })

	p := &wsPeer{name: name, ws: ws, lines: make(chan string, 64)}
	go func() {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				close(p.lines)
				return
			}
			sc := bufio.NewScanner(bytes.NewReader(data))
			for sc.Scan() {
				p.lines <- sc.Text()
			}
		}
	}()

	p.send(t, name)
	return p
}

func (p *wsPeer) send(t *testing.T, line string) {
	t.Helper()
	if err := p.ws.WriteMessage(websocket.TextMessage, []byte(line+"\n")); err != nil {
		t.Fatalf("%s: send %q: %v", p.name, line, err)
	}
}

func (p *wsPeer) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got, ok := <-p.lines:
		if !ok {
			t.Fatalf("%s: connection closed", p.name)
		}
		if got != want {
			t.Fatalf("%s got %q, want %q", p.name, got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for %q", p.name, want)
	}
}

func TestBridge_ChatOverWebSocket(t *testing.T) {
	bridge, b := startBridge(t)

	carol := dialWS(t, bridge, "carol")
	carol.expect(t, "**New client joined: carol")

	dave := dialWS(t, bridge, "dave")
	carol.expect(t, "**New client joined: dave")
	dave.expect(t, "**New client joined: dave")

	carol.send(t, "dave:hello over ws")
	dave.expect(t, "carol: hello over ws")

	carol.send(t, "*:everyone")
	carol.expect(t, "caroleveryone")
	dave.expect(t, "caroleveryone")

	dave.send(t, "Client_PeerList_Request")
	dave.expect(t, "**Clients Connected:")
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case line := <-dave.lines:
			got[line] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for list entry")
		}
	}
	for _, want := range []string{"**Server: carol", "**Server: dave"} {
		if !got[want] {
			t.Errorf("missing list entry %q in %v", want, got)
		}
	}
	dave.expect(t, "**FIN")

	stopBridge(t, bridge, b)
}

func TestBridge_MixedTransports(t *testing.T) {
	bridge, b := startBridge(t)

	// A TCP manager sharing the same broker: one room, two transports.
	m := connection.NewManager("127.0.0.1:0", b, testLogger())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("manager start: %v", err)
	}

	carol := dialWS(t, bridge, "carol")
	carol.expect(t, "**New client joined: carol")

	conn, err := net.Dial("tcp", m.Addr().String())
	if err != nil {
		t.Fatalf("dial tcp: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	fmt.Fprintf(conn, "alice\n")
	carol.expect(t, "**New client joined: alice")

	fmt.Fprintf(conn, "carol:hi from tcp\n")
	carol.expect(t, "alice: hi from tcp")

	carol.send(t, "alice:hi from ws")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	tcpLines := bufio.NewScanner(conn)
	for tcpLines.Scan() {
		if line := tcpLines.Text(); line == "carol: hi from ws" {
			break
		}
	}
	if err := tcpLines.Err(); err != nil {
		t.Fatalf("tcp read: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Stop(ctx)
	stopBridge(t, bridge, b)
}
