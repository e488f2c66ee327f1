package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/wfunc/flyknight/logger"
)

const Path = "/ws"

// Listener accepts websocket connections on Path and hands them out through
// Accept. Capacity is enforced by the caller.
type Listener struct {
	queueSize int
	upgrader  websocket.Upgrader
	accepted  chan *Conn
	closed    chan struct{}
	closeOnce sync.Once
	ln        net.Listener
	server    *http.Server
}

// NewListener builds a listener without binding a socket; Handler can be
// mounted on any HTTP server.
func NewListener(queueSize int) *Listener {
	return &Listener{
		queueSize: queueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// LAN game: any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		accepted: make(chan *Conn),
		closed:   make(chan struct{}),
	}
}

// Listen binds host:port and starts serving in the background.
func Listen(host string, port, queueSize int) (*Listener, error) {
	l := NewListener(queueSize)
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	l.ln = ln
	l.server = &http.Server{Handler: l.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorw("websocket server stopped", "error", err)
		}
	}()
	return l, nil
}

func (l *Listener) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(Path, l.handleUpgrade)
	return r
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newConn(ws, l.queueSize)
	select {
	case l.accepted <- c:
	case <-l.closed:
		c.CloseWithReason(ReasonShutdown)
	}
}

// Accept waits for the next connection.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr is the bound address, or nil when the listener was built with
// NewListener.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	if l.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

// Dial connects to a host at addr:port.
func Dial(ctx context.Context, addr string, port, queueSize int) (*Conn, error) {
	u := "ws://" + net.JoinHostPort(addr, strconv.Itoa(port)) + Path
	return DialURL(ctx, u, queueSize)
}

func DialURL(ctx context.Context, url string, queueSize int) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(ws, queueSize), nil
}
