package network

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// maxMessage bounds a single inbound websocket message so an oversized frame
// is refused before it is buffered.
const maxMessage = HeaderSize + MaxPayload

// Conn is one persistent binary websocket connection. Send never blocks:
// frames go through a bounded queue drained by a dedicated writer goroutine,
// the only goroutine that writes data messages to the socket.
type Conn struct {
	ws      *websocket.Conn
	id      string
	send    chan []byte
	closing chan string
	done    chan struct{}

	closeOnce sync.Once
	liveness  atomic.Int64
	dropped   atomic.Uint64
}

func newConn(ws *websocket.Conn, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = 1
	}
	c := &Conn{
		ws:      ws,
		id:      uuid.NewString(),
		send:    make(chan []byte, queueSize),
		closing: make(chan string, 1),
		done:    make(chan struct{}),
	}
	ws.SetReadLimit(maxMessage)
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// Done is closed once the connection is shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Dropped counts frames discarded because the send queue was full.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// Send queues frame for writing. The frame must not be modified afterwards.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.dropped.Add(1)
		return ErrQueueFull
	}
}

// Receive blocks until the next binary frame arrives. Each frame pushes the
// read deadline forward by the liveness window, if one is set.
func (c *Conn) Receive() ([]byte, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		c.shutdown()
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, &ProtocolError{Op: "receive", Err: ErrTooLarge}
		}
		return nil, err
	}
	if d := time.Duration(c.liveness.Load()); d > 0 {
		c.ws.SetReadDeadline(time.Now().Add(d))
	}
	if mt != websocket.BinaryMessage {
		return nil, &ProtocolError{Op: "receive", Err: errors.New("non-binary message")}
	}
	return data, nil
}

// SetLiveness makes Receive fail when nothing arrives for d.
func (c *Conn) SetLiveness(d time.Duration) {
	c.liveness.Store(int64(d))
	if d > 0 {
		c.ws.SetReadDeadline(time.Now().Add(d))
	} else {
		c.ws.SetReadDeadline(time.Time{})
	}
}

// CloseWithReason flushes queued frames, sends a close message carrying
// reason and shuts the connection down. It does not wait.
func (c *Conn) CloseWithReason(reason string) {
	select {
	case c.closing <- reason:
	default:
	}
}

// Close shuts the connection down immediately, discarding queued frames.
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	defer c.shutdown()
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		case reason := <-c.closing:
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			// Give the peer a moment to read the close frame before the socket goes.
			select {
			case <-c.done:
			case <-time.After(writeWait):
			}
			return
		case <-c.done:
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if c.write(frame) != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(frame []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// CloseReason extracts the reason from a close received by Receive.
func CloseReason(err error) (string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Text, true
	}
	return "", false
}
