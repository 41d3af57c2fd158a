package wsbridge

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// streamConn adapts a WebSocket connection to the net.Conn byte-stream
// interface the connection reader expects. Inbound frames are consumed as
// consecutive segments of one stream, so lines stay newline-delimited
// exactly as on TCP; each Write goes out as a single text frame.
type streamConn struct {
	ws *websocket.Conn

	// frame is the reader for the current inbound frame, nil between frames.
	frame io.Reader

	writeMu sync.Mutex
}

func newStreamConn(ws *websocket.Conn) *streamConn {
	return &streamConn{ws: ws}
}

func (c *streamConn) Read(p []byte) (int, error) {
	for {
		if c.frame == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.frame = r
		}
		n, err := c.frame.Read(p)
		if err == io.EOF {
			// Frame exhausted; the stream continues with the next one.
			c.frame = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *streamConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *streamConn) Close() error {
	return c.ws.Close()
}

func (c *streamConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *streamConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *streamConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *streamConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
