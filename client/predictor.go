package client

import (
	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/sim"
)

// View is everything the renderer needs for one frame. The local player
// carries the predicted position; everything else is the snapshot as sent.
type View struct {
	Tick     uint64
	Self     sim.PlayerSnap
	HaveSelf bool
	Others   []sim.PlayerSnap
	Enemies  []sim.EnemySnap
	Items    []sim.ItemSnap
	Rooms    []sim.RoomSnap
}

// Predictor runs the local player ahead of the host. It belongs to the
// render loop and is not safe for concurrent use.
type Predictor struct {
	self  sim.PlayerID
	world sim.Walkable

	snap     *sim.Snapshot
	lastTick uint64
	pos      geom.Vec2
	facing   float64
	stamina  float64
	alive    bool
	known    bool
}

func NewPredictor(self sim.PlayerID, world sim.Walkable) *Predictor {
	return &Predictor{self: self, world: world}
}

// Observe adopts snap if it is newer than the last one seen and snaps the
// local player to the host's position. It reports whether snap was used.
func (p *Predictor) Observe(snap *sim.Snapshot) bool {
	if snap == nil || (p.snap != nil && snap.Tick <= p.lastTick) {
		return false
	}
	p.snap = snap
	p.lastTick = snap.Tick
	if me, ok := snap.Player(p.self); ok {
		p.pos = me.Pos
		p.facing = me.Facing
		p.stamina = me.Stamina
		p.alive = me.HP > 0
		p.known = true
	} else {
		p.known = false
	}
	return true
}

// Apply moves the local player by one frame of input using the host's
// movement rules.
func (p *Predictor) Apply(in sim.InputCommand, dt float64) {
	if !p.known || !p.alive {
		return
	}
	sprinting := in.Sprint && p.stamina > 0 && !in.Move.IsZero()
	p.pos = sim.Move(p.world, p.pos, in.Move, sprinting, dt)
	p.facing = in.Facing
}

func (p *Predictor) Position() (geom.Vec2, bool) { return p.pos, p.known }

func (p *Predictor) View() View {
	var v View
	if p.snap == nil {
		return v
	}
	v.Tick = p.snap.Tick
	v.Enemies = p.snap.Enemies
	v.Items = p.snap.Items
	v.Rooms = p.snap.Rooms
	v.Others = make([]sim.PlayerSnap, 0, len(p.snap.Players))
	for _, ps := range p.snap.Players {
		if ps.ID == p.self {
			ps.Pos = p.pos
			ps.Facing = p.facing
			v.Self = ps
			v.HaveSelf = true
			continue
		}
		v.Others = append(v.Others, ps)
	}
	return v
}
