package ingest

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wfunc/flyknight/sim"
)

// Hub collects joins, departures and per-player queues and turns them into
// one sim.StepInput per tick.
type Hub struct {
	limit   int
	metrics Metrics
	clock   atomic.Uint64

	mu     sync.Mutex
	queues map[sim.PlayerID]*Queue
	joins  []sim.Join
	leaves []sim.Leave
	gone   map[sim.PlayerID]bool
}

func NewHub(limit int, metrics Metrics) *Hub {
	return &Hub{
		limit:   limit,
		metrics: metrics,
		queues:  make(map[sim.PlayerID]*Queue),
		gone:    make(map[sim.PlayerID]bool),
	}
}

// Join records a new player for the next tick and returns its queue.
func (h *Hub) Join(id sim.PlayerID, name string) *Queue {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := newQueue(id, h.limit, &h.clock, h.metrics)
	h.queues[id] = q
	h.joins = append(h.joins, sim.Join{Player: id, Name: name})
	return q
}

// Leave records a departure. Only the first call per player counts; it
// reports whether this call was the one recorded.
func (h *Hub) Leave(id sim.PlayerID, reason string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gone[id] {
		return false
	}
	h.gone[id] = true
	if q, ok := h.queues[id]; ok {
		q.close()
	}
	h.leaves = append(h.leaves, sim.Leave{Player: id, Reason: reason})
	return true
}

// Queue returns the queue of a registered player.
func (h *Hub) Queue(id sim.PlayerID) (*Queue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queues[id]
	return q, ok
}

// Drain empties every queue. Commands and equipment requests come back in
// arrival order.
func (h *Hub) Drain() sim.StepInput {
	h.mu.Lock()
	in := sim.StepInput{Joins: h.joins, Leaves: h.leaves}
	h.joins, h.leaves = nil, nil
	ids := make([]sim.PlayerID, 0, len(h.queues))
	for id := range h.queues {
		ids = append(ids, id)
	}
	queues := make([]*Queue, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		queues = append(queues, h.queues[id])
		if h.gone[id] {
			delete(h.queues, id)
		}
	}
	h.mu.Unlock()

	for _, q := range queues {
		inputs, equips := q.swap()
		in.Commands = append(in.Commands, inputs...)
		in.Equips = append(in.Equips, equips...)
	}
	sort.SliceStable(in.Commands, func(i, j int) bool { return in.Commands[i].Arrival < in.Commands[j].Arrival })
	sort.SliceStable(in.Equips, func(i, j int) bool { return in.Equips[i].Arrival < in.Equips[j].Arrival })
	return in
}

// Pending reports the number of staged entries across all queues.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, q := range h.queues {
		n += q.Len()
	}
	return n
}
