package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/network"
	"github.com/wfunc/flyknight/sim"
)

var (
	ErrRejected    = errors.New("join rejected")
	ErrSessionFull = errors.New("session full")
)

type Options struct {
	QueueSize    int
	Liveness     time.Duration
	PingInterval time.Duration
}

func DefaultOptions() Options {
	return Options{QueueSize: 64, Liveness: 3 * time.Second, PingInterval: time.Second}
}

// Client is one participant's connection to the host. A reader goroutine
// keeps the newest snapshot; the render loop reads it with Latest and sends
// intent with SendInput.
type Client struct {
	conn  *network.Conn
	codec *network.Codec
	opts  Options

	playerID sim.PlayerID
	matchID  string
	tickRate int
	graph    *dungeon.Graph

	seq       atomic.Uint32
	nonce     atomic.Uint32
	latest    atomic.Pointer[sim.Snapshot]
	stale     atomic.Uint64
	rtt       atomic.Int64
	left      chan network.PlayerLeft
	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Connect dials the host at addr:port and completes the join handshake.
func Connect(ctx context.Context, addr string, port int, name string, opts Options) (*Client, error) {
	conn, err := network.Dial(ctx, addr, port, opts.QueueSize)
	if err != nil {
		return nil, err
	}
	return handshake(ctx, conn, name, opts)
}

// ConnectURL is Connect for a full websocket URL.
func ConnectURL(ctx context.Context, url, name string, opts Options) (*Client, error) {
	conn, err := network.DialURL(ctx, url, opts.QueueSize)
	if err != nil {
		return nil, err
	}
	return handshake(ctx, conn, name, opts)
}

func handshake(ctx context.Context, conn *network.Conn, name string, opts Options) (*Client, error) {
	codec, err := network.NewCodec(0)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c := &Client{
		conn:  conn,
		codec: codec,
		opts:  opts,
		left:  make(chan network.PlayerLeft, 16),
		done:  make(chan struct{}),
	}
	if opts.Liveness > 0 {
		conn.SetLiveness(opts.Liveness)
	}
	if err := c.send(network.KindJoin, network.Join{Name: name}); err != nil {
		c.shutdown(err)
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		frame, err := conn.Receive()
		if err != nil {
			if reason, ok := network.CloseReason(err); ok && reason == network.ReasonSessionFull {
				err = ErrSessionFull
			} else if ctx.Err() != nil {
				err = ctx.Err()
			}
			c.shutdown(err)
			return nil, err
		}
		kind, payload, err := codec.Decode(frame)
		if err != nil {
			c.shutdown(err)
			return nil, err
		}
		switch kind {
		case network.KindJoinAccepted:
			var accepted network.JoinAccepted
			if err := codec.DecodeInto(kind, payload, &accepted); err != nil {
				c.shutdown(err)
				return nil, err
			}
			c.playerID = accepted.PlayerID
			c.matchID = accepted.MatchID
			c.tickRate = accepted.TickRate
			c.graph = accepted.Graph
			if c.graph == nil {
				c.graph = &dungeon.Graph{}
			}
			logger.Log.Infow("joined match", "player_id", c.playerID, "match_id", c.matchID, "tick", accepted.Tick)
			go c.readLoop()
			if opts.PingInterval > 0 {
				go c.pingLoop(opts.PingInterval)
			}
			return c, nil
		case network.KindJoinRejected:
			var rejected network.JoinRejected
			codec.DecodeInto(kind, payload, &rejected)
			err := fmt.Errorf("%w: %s", ErrRejected, rejected.Reason)
			if rejected.Reason == network.ReasonSessionFull {
				err = ErrSessionFull
			}
			c.shutdown(err)
			return nil, err
		}
	}
}

func (c *Client) PlayerID() sim.PlayerID { return c.playerID }

func (c *Client) MatchID() string { return c.matchID }

func (c *Client) TickRate() int { return c.tickRate }

// Graph is the dungeon layout received at join time.
func (c *Client) Graph() *dungeon.Graph { return c.graph }

// Latest returns the highest-tick snapshot received so far, or nil.
func (c *Client) Latest() *sim.Snapshot { return c.latest.Load() }

// Stale counts snapshots discarded for arriving out of order or twice.
func (c *Client) Stale() uint64 { return c.stale.Load() }

// RTT is the last measured ping round trip.
func (c *Client) RTT() time.Duration { return time.Duration(c.rtt.Load()) }

// Left delivers departure notices. Notices are dropped if nobody reads.
func (c *Client) Left() <-chan network.PlayerLeft { return c.left }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the client stopped, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SendInput stamps in with the next sequence number and queues it.
func (c *Client) SendInput(in sim.InputCommand) (uint32, error) {
	in.Seq = c.seq.Add(1)
	return in.Seq, c.send(network.KindInput, in)
}

func (c *Client) Equip(inventorySlot int) error {
	return c.send(network.KindEquip, network.Equip{InventorySlot: inventorySlot})
}

func (c *Client) Unequip(slot sim.EquipSlot) error {
	return c.send(network.KindUnequip, network.Unequip{Slot: slot})
}

// Close says goodbye to the host and waits briefly for the close handshake.
func (c *Client) Close() {
	c.closing.Store(true)
	c.conn.CloseWithReason(sim.ReasonDisconnected)
	select {
	case <-c.conn.Done():
	case <-time.After(time.Second):
	}
	c.shutdown(nil)
}

func (c *Client) send(kind network.Kind, msg any) error {
	frame, err := c.codec.Encode(kind, msg)
	if err != nil {
		return err
	}
	return c.conn.Send(frame)
}

// acceptSnapshot keeps snap if it is newer than the current one.
func (c *Client) acceptSnapshot(snap *sim.Snapshot) bool {
	for {
		old := c.latest.Load()
		if old != nil && snap.Tick <= old.Tick {
			c.stale.Add(1)
			return false
		}
		if c.latest.CompareAndSwap(old, snap) {
			return true
		}
	}
}

func (c *Client) readLoop() {
	for {
		frame, err := c.conn.Receive()
		if err != nil {
			if c.closing.Load() {
				err = nil
			} else if reason, ok := network.CloseReason(err); ok {
				err = fmt.Errorf("closed by host: %s", reason)
			}
			c.shutdown(err)
			return
		}
		kind, payload, err := c.codec.Decode(frame)
		if err != nil {
			logger.Log.Warnw("bad frame from host", "error", err)
			continue
		}
		switch kind {
		case network.KindSnapshot:
			snap := &sim.Snapshot{}
			if err := c.codec.DecodeInto(kind, payload, snap); err != nil {
				logger.Log.Warnw("bad snapshot from host", "error", err)
				continue
			}
			c.acceptSnapshot(snap)
		case network.KindPlayerLeft:
			var left network.PlayerLeft
			if c.codec.DecodeInto(kind, payload, &left) == nil {
				select {
				case c.left <- left:
				default:
				}
			}
		case network.KindPong:
			var pong network.Pong
			if c.codec.DecodeInto(kind, payload, &pong) == nil {
				c.rtt.Store(time.Now().UnixNano() - pong.SentUnix)
			}
		}
	}
}

func (c *Client) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ping := network.Ping{Nonce: c.nonce.Add(1), SentUnix: time.Now().UnixNano()}
			if err := c.send(network.KindPing, ping); errors.Is(err, network.ErrClosed) {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
		c.codec.Close()
	})
}
