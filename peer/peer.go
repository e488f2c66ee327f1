package peer

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/flyknight/sim"
	"golang.org/x/time/rate"
)

var (
	ErrSessionFull   = errors.New("session full")
	ErrAlreadyJoined = errors.New("peer already joined")
	ErrUnknownPeer   = errors.New("unknown peer")
)

// Connection is the part of network.Conn a peer needs.
type Connection interface {
	ID() string
	Send(frame []byte) error
	CloseWithReason(reason string)
	Close() error
	RemoteAddr() net.Addr
}

// Peer is one client connection. It exists from accept until the
// connection goes away; PlayerID is zero until the join handshake completes.
type Peer struct {
	ConnID      string
	Conn        Connection
	ConnectedAt time.Time

	limiter *rate.Limiter

	mu         sync.RWMutex
	playerID   sim.PlayerID
	name       string
	lastActive time.Time
}

func (p *Peer) PlayerID() sim.PlayerID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playerID
}

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) Joined() bool {
	return p.PlayerID() != 0
}

// Allow reports whether another inbound frame fits the peer's rate budget.
func (p *Peer) Allow() bool {
	if p.limiter == nil {
		return true
	}
	return p.limiter.Allow()
}

// Touch records inbound activity from the peer.
func (p *Peer) Touch() {
	p.mu.Lock()
	p.lastActive = time.Now()
	p.mu.Unlock()
}

func (p *Peer) LastActive() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastActive
}

func (p *Peer) Send(frame []byte) error {
	return p.Conn.Send(frame)
}

// Manager is the registry of live peers. It enforces the player cap and hands
// out PlayerIds, which are never reused within a match.
type Manager struct {
	max   int
	limit rate.Limit
	burst int

	mu       sync.RWMutex
	peers    map[string]*Peer
	byPlayer map[sim.PlayerID]*Peer
	nextID   sim.PlayerID
}

// NewManager creates a registry for at most max peers. inboundRate <= 0
// disables the per-peer frame limiter.
func NewManager(max int, inboundRate float64, burst int) *Manager {
	m := &Manager{
		max:      max,
		limit:    rate.Inf,
		burst:    burst,
		peers:    make(map[string]*Peer),
		byPlayer: make(map[sim.PlayerID]*Peer),
	}
	if inboundRate > 0 {
		m.limit = rate.Limit(inboundRate)
	}
	return m
}

// Add registers a new connection, or returns ErrSessionFull at capacity.
func (m *Manager) Add(conn Connection) (*Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.peers) >= m.max {
		return nil, ErrSessionFull
	}
	now := time.Now()
	p := &Peer{
		ConnID:      conn.ID(),
		Conn:        conn,
		ConnectedAt: now,
		lastActive:  now,
	}
	if m.limit != rate.Inf {
		p.limiter = rate.NewLimiter(m.limit, m.burst)
	}
	m.peers[p.ConnID] = p
	return p, nil
}

// Join assigns the next PlayerId to a registered peer. accept, if set, runs
// before the peer becomes visible to Joined, so anything it queues on the
// connection goes out ahead of the first broadcast.
func (m *Manager) Join(p *Peer, name string, accept func(id sim.PlayerID) error) (sim.PlayerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.peers[p.ConnID]; !ok {
		return 0, ErrUnknownPeer
	}
	if current := p.PlayerID(); current != 0 {
		return current, ErrAlreadyJoined
	}
	m.nextID++
	id := m.nextID
	if accept != nil {
		if err := accept(id); err != nil {
			return 0, err
		}
	}
	p.mu.Lock()
	p.playerID = id
	p.name = name
	p.mu.Unlock()
	m.byPlayer[id] = p
	return id, nil
}

func (m *Manager) Remove(connID string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[connID]
	if !ok {
		return nil, false
	}
	delete(m.peers, connID)
	if id := p.PlayerID(); id != 0 {
		delete(m.byPlayer, id)
	}
	return p, true
}

func (m *Manager) ByPlayer(id sim.PlayerID) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byPlayer[id]
	return p, ok
}

// Joined lists joined peers in PlayerId order.
func (m *Manager) Joined() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Peer, 0, len(m.byPlayer))
	for _, p := range m.byPlayer {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlayerID() < result[j].PlayerID() })
	return result
}

// All lists every registered peer, joined or not.
func (m *Manager) All() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		result = append(result, p)
	}
	return result
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

func (m *Manager) Max() int { return m.max }
