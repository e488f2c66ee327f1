// Package sim is the authoritative world: players, enemies, items and rooms
// advanced one fixed tick at a time by a single goroutine.
package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/config"
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/logger"
)

// Stats are running counters for metrics and admin status.
type Stats struct {
	StaleCommands    uint64
	EquipRejected    uint64
	ContestedPickups uint64
	RefusedPickups   uint64
	EnemiesKilled    uint64
	PlayerHits       uint64
}

// Session is not safe for concurrent use. Exactly one goroutine (the match
// loop) may call its methods; everything else sees Snapshots.
type Session struct {
	cfg   config.SimConfig
	graph *dungeon.Graph
	cat   *catalog.Catalog
	rate  int
	dt    float64

	tick    uint64
	rng     *rand.Rand
	rngSeed int64

	players map[PlayerID]*Player
	enemies map[EnemyID]*Enemy
	items   map[ItemID]*Item
	rooms   map[dungeon.RoomID]*roomState

	roomOrder []dungeon.RoomID
	dying     []EnemyID
	nextEnemy EnemyID
	nextItem  ItemID

	stats Stats
}

func NewSession(cfg config.SimConfig, graph *dungeon.Graph, cat *catalog.Catalog) *Session {
	rate := cfg.TickRate
	if rate <= 0 {
		rate = 30
	}
	s := &Session{
		cfg:     cfg,
		graph:   graph,
		cat:     cat,
		rate:    rate,
		dt:      1 / float64(rate),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		rngSeed: cfg.Seed,
		players: make(map[PlayerID]*Player),
		enemies: make(map[EnemyID]*Enemy),
		items:   make(map[ItemID]*Item),
		rooms:   make(map[dungeon.RoomID]*roomState),
	}
	for i := range graph.Rooms {
		r := &graph.Rooms[i]
		s.rooms[r.ID] = &roomState{room: r, cleared: r.ID == graph.SpawnRoom}
		s.roomOrder = append(s.roomOrder, r.ID)
	}
	sort.Slice(s.roomOrder, func(i, j int) bool { return s.roomOrder[i] < s.roomOrder[j] })
	return s
}

func (s *Session) Tick() uint64          { return s.tick }
func (s *Session) Graph() *dungeon.Graph { return s.graph }
func (s *Session) Stats() Stats          { return s.stats }
func (s *Session) PlayerCount() int      { return len(s.players) }

// Player returns the live player record. Callers must be on the tick
// goroutine.
func (s *Session) Player(id PlayerID) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

func (s *Session) Enemy(id EnemyID) (*Enemy, bool) {
	e, ok := s.enemies[id]
	return e, ok
}

func (s *Session) Item(id ItemID) (*Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Step advances the world by one tick and returns the finished snapshot.
func (s *Session) Step(in StepInput) *Snapshot {
	s.tick++
	s.rngSeed = s.rng.Int63()
	s.rng.Seed(s.rngSeed)

	s.purgeDead()
	// Joins first: a player who joined and dropped within one tick still
	// needs the departure applied and announced.
	s.applyJoins(in.Joins)
	left := s.applyLeaves(in.Leaves)
	s.applyCommands(in.Commands)
	s.applyEquips(in.Equips)
	s.movePlayers()
	s.updateStamina()
	s.resolveCombat()
	s.stepEnemies()
	s.resolvePickups()
	s.activateRooms()
	return s.snapshot(left)
}

func (s *Session) ticks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Ceil(seconds * float64(s.rate)))
}

func (s *Session) purgeDead() {
	for _, id := range s.dying {
		delete(s.enemies, id)
	}
	s.dying = s.dying[:0]
}

func (s *Session) applyLeaves(leaves []Leave) []Leave {
	var left []Leave
	for _, l := range leaves {
		if s.removePlayer(l.Player) {
			left = append(left, l)
			logger.Log.Infow("player left", "player_id", l.Player, "tick", s.tick, "reason", l.Reason)
		}
	}
	return left
}

func (s *Session) applyJoins(joins []Join) {
	for _, j := range joins {
		if _, ok := s.players[j.Player]; ok {
			continue
		}
		s.addPlayer(j.Player, j.Name)
		logger.Log.Infow("player joined", "player_id", j.Player, "tick", s.tick, "name", j.Name)
	}
}

// applyCommands folds buffered commands into each player's latest intent.
// Stale sequence numbers and non-finite vectors are dropped; gaps are not
// waited for.
func (s *Session) applyCommands(cmds []InputCommand) {
	for _, p := range s.players {
		p.attackPressed = false
		p.pickup = nil
		p.Attacking = false
	}
	for _, c := range cmds {
		p, ok := s.players[c.Player]
		if !ok {
			continue
		}
		if c.Seq <= p.LastSeq || !finite(c.Facing, c.Move.X, c.Move.Y) {
			s.stats.StaleCommands++
			continue
		}
		p.LastSeq = c.Seq
		if !p.Alive() {
			continue
		}

		p.move = c.Move.ClampLen(1)
		p.Facing = c.Facing
		p.block = c.Block
		p.sprint = c.Sprint
		if c.Attack && !p.attackHeld {
			p.attackPressed = true
		}
		p.attackHeld = c.Attack
		if c.Interact && !p.interactHeld && p.pickup == nil {
			p.pickup = &pickupRequest{player: p.ID, target: c.PickupTarget, arrival: c.Arrival}
		}
		p.interactHeld = c.Interact
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *Session) newItem(kind string) *Item {
	s.nextItem++
	it := &Item{ID: s.nextItem, Type: kind}
	s.items[it.ID] = it
	return it
}

func (s *Session) playerIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Session) enemyIDs() []EnemyID {
	ids := make([]EnemyID, 0, len(s.enemies))
	for id := range s.enemies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Session) itemIDs() []ItemID {
	ids := make([]ItemID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
