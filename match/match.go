package match

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/sim"
)

// Status is the lifecycle stage of a match.
type Status int32

const (
	StatusWaiting Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

// Source supplies the queued input for one tick.
type Source interface {
	Drain() sim.StepInput
}

// Sink receives every finished snapshot.
type Sink interface {
	BroadcastSnapshot(snap *sim.Snapshot) error
}

type Metrics interface {
	ObserveTick(d time.Duration)
	SetOnlinePlayers(n int)
	AddContestedPickups(n int)
}

type PlayerInfo struct {
	ID          sim.PlayerID `json:"id"`
	Name        string       `json:"name"`
	HP          int          `json:"hp"`
	Alive       bool         `json:"alive"`
	IdleSeconds float64      `json:"idle_seconds"`
}

// Info is a point-in-time copy of the match status. It is rebuilt by the
// tick loop and never modified after publication.
type Info struct {
	MatchID      string       `json:"match_id"`
	Status       string       `json:"status"`
	Tick         uint64       `json:"tick"`
	StartedAt    time.Time    `json:"started_at"`
	Players      []PlayerInfo `json:"players"`
	Enemies      int          `json:"enemies"`
	Rooms        int          `json:"rooms"`
	RoomsCleared int          `json:"rooms_cleared"`
	Stats        sim.Stats    `json:"stats"`

	// Filled by the host from its connection registry.
	Connections   int `json:"connections"`
	MaxPlayers    int `json:"max_players"`
	PendingInputs int `json:"pending_inputs"`
}

// Match owns one session and drives it at a fixed rate. Only the goroutine
// running Run (or a test calling Tick) touches the session.
type Match struct {
	ID string

	session  *sim.Session
	graph    *dungeon.Graph
	source   Source
	sink     Sink
	metrics  Metrics
	interval time.Duration
	rate     int

	status    atomic.Int32
	info      atomic.Pointer[Info]
	latest    atomic.Pointer[sim.Snapshot]
	startedAt time.Time
	contested uint64

	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func New(id string, session *sim.Session, rate int, source Source, sink Sink, metrics Metrics) *Match {
	if rate <= 0 {
		rate = 30
	}
	m := &Match{
		ID:        id,
		session:   session,
		graph:     session.Graph(),
		source:    source,
		sink:      sink,
		metrics:   metrics,
		interval:  time.Second / time.Duration(rate),
		rate:      rate,
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.status.Store(int32(StatusWaiting))
	m.publish(nil)
	return m
}

// Graph is the immutable dungeon layout the session plays on.
func (m *Match) Graph() *dungeon.Graph { return m.graph }

func (m *Match) TickRate() int { return m.rate }

func (m *Match) Status() Status { return Status(m.status.Load()) }

// Info returns the latest published status.
func (m *Match) Info() Info { return *m.info.Load() }

// Latest returns the newest snapshot, or nil before the first tick.
func (m *Match) Latest() *sim.Snapshot { return m.latest.Load() }

// Run ticks until ctx is cancelled or Close is called.
func (m *Match) Run(ctx context.Context) {
	defer close(m.done)
	m.startedAt = time.Now()
	m.status.Store(int32(StatusRunning))
	logger.Log.Infof("match %s running at %d Hz", m.ID, m.rate)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Tick()
		case <-ctx.Done():
			m.stop()
			return
		case <-m.closeChan:
			m.stop()
			return
		}
	}
}

// Tick runs one simulation step and hands the snapshot to the sink.
func (m *Match) Tick() *sim.Snapshot {
	start := time.Now()
	snap := m.session.Step(m.source.Drain())
	m.latest.Store(snap)
	if err := m.sink.BroadcastSnapshot(snap); err != nil {
		logger.Log.Errorw("broadcast failed", "tick", snap.Tick, "error", err)
	}
	m.publish(snap)

	if m.metrics != nil {
		m.metrics.ObserveTick(time.Since(start))
		m.metrics.SetOnlinePlayers(len(snap.Players))
		stats := m.session.Stats()
		m.metrics.AddContestedPickups(int(stats.ContestedPickups - m.contested))
		m.contested = stats.ContestedPickups
	}
	if d := time.Since(start); d > m.interval {
		logger.Log.Warnw("tick overran its interval", "tick", snap.Tick, "took", d)
	}
	return snap
}

func (m *Match) publish(snap *sim.Snapshot) {
	info := &Info{
		MatchID:   m.ID,
		Status:    m.Status().String(),
		StartedAt: m.startedAt,
		Rooms:     len(m.graph.Rooms),
		Stats:     m.session.Stats(),
	}
	if snap != nil {
		info.Tick = snap.Tick
		info.Enemies = len(snap.Enemies)
		for _, p := range snap.Players {
			info.Players = append(info.Players, PlayerInfo{ID: p.ID, Name: p.Name, HP: p.HP, Alive: p.HP > 0})
		}
		for _, r := range snap.Rooms {
			if r.Cleared {
				info.RoomsCleared++
			}
		}
	} else if prev := m.info.Load(); prev != nil {
		cp := *prev
		cp.Status = info.Status
		info = &cp
	}
	m.info.Store(info)
}

func (m *Match) stop() {
	m.status.Store(int32(StatusStopped))
	m.publish(nil)
	logger.Log.Infof("match %s stopped at tick %d", m.ID, m.session.Tick())
}

// Close stops the loop. It does not wait; use Done for that.
func (m *Match) Close() {
	m.closeOnce.Do(func() { close(m.closeChan) })
}

func (m *Match) Done() <-chan struct{} { return m.done }
