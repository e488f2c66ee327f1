package ingest

import (
	"sync"
	"sync/atomic"

	"github.com/wfunc/flyknight/sim"
)

// Drop reasons reported to Metrics.
const (
	DropQueueFull = "queue_full"
	DropClosed    = "closed"
)

type Metrics interface {
	InputDropped(reason string)
}

// Queue buffers one player's inbound commands between ticks. Any number of
// goroutines may push; only the hub drains. Every push is stamped from a
// clock shared by all queues of the hub, so arrival numbers order commands
// across players.
type Queue struct {
	player  sim.PlayerID
	limit   int
	clock   *atomic.Uint64
	metrics Metrics

	mu      sync.Mutex
	closed  bool
	inputs  []sim.InputCommand
	equips  []sim.EquipRequest
	spareIn []sim.InputCommand
	spareEq []sim.EquipRequest
	dropped uint64
}

func newQueue(player sim.PlayerID, limit int, clock *atomic.Uint64, metrics Metrics) *Queue {
	if limit < 1 {
		limit = 1
	}
	return &Queue{player: player, limit: limit, clock: clock, metrics: metrics}
}

func (q *Queue) Player() sim.PlayerID { return q.player }

// PushInput stages cmd for the next tick, returning false if it was dropped.
func (q *Queue) PushInput(cmd sim.InputCommand) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.acceptLocked() {
		return false
	}
	cmd.Player = q.player
	cmd.Arrival = q.clock.Add(1)
	q.inputs = append(q.inputs, cmd)
	return true
}

// PushEquip stages an equipment change for the next tick.
func (q *Queue) PushEquip(req sim.EquipRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.acceptLocked() {
		return false
	}
	req.Player = q.player
	req.Arrival = q.clock.Add(1)
	q.equips = append(q.equips, req)
	return true
}

func (q *Queue) acceptLocked() bool {
	reason := ""
	switch {
	case q.closed:
		reason = DropClosed
	case len(q.inputs)+len(q.equips) >= q.limit:
		reason = DropQueueFull
	default:
		return true
	}
	q.dropped++
	if q.metrics != nil {
		q.metrics.InputDropped(reason)
	}
	return false
}

// Len reports the number of staged entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inputs) + len(q.equips)
}

// Dropped reports how many pushes were refused.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// swap hands the staged entries to the caller and gives producers the spare
// buffers. The returned slices are valid until the next swap.
func (q *Queue) swap() ([]sim.InputCommand, []sim.EquipRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	inputs, equips := q.inputs, q.equips
	q.inputs, q.equips = q.spareIn[:0], q.spareEq[:0]
	q.spareIn, q.spareEq = inputs, equips
	return inputs, equips
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
