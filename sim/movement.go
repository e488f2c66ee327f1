package sim

import (
	"github.com/wfunc/flyknight/geom"
)

// Walkable is the static collision geometry. *dungeon.Graph implements it.
type Walkable interface {
	Walkable(p geom.Vec2) bool
}

// Move returns pos advanced by one step of dir. The client predictor calls
// this too, so host and client agree on where a player ends up.
func Move(w Walkable, pos, dir geom.Vec2, sprinting bool, dt float64) geom.Vec2 {
	speed := PlayerSpeed
	if sprinting {
		speed *= SprintFactor
	}
	return Slide(w, pos, dir.ClampLen(1).Scale(speed*dt))
}

// Slide applies delta one axis at a time, dropping any axis whose target is
// not walkable.
func Slide(w Walkable, pos, delta geom.Vec2) geom.Vec2 {
	if delta.X != 0 {
		if next := geom.V(pos.X+delta.X, pos.Y); w.Walkable(next) {
			pos = next
		}
	}
	if delta.Y != 0 {
		if next := geom.V(pos.X, pos.Y+delta.Y); w.Walkable(next) {
			pos = next
		}
	}
	return pos
}

func (s *Session) movePlayers() {
	for _, id := range s.playerIDs() {
		p := s.players[id]
		if !p.Alive() {
			p.Vel = geom.Vec2{}
			p.Sprinting = false
			continue
		}
		p.Sprinting = p.sprint && !p.move.IsZero() && p.Stamina > 0
		next := Move(s.graph, p.Pos, p.move, p.Sprinting, s.dt)
		p.Vel = next.Sub(p.Pos).Scale(1 / s.dt)
		p.Pos = next
	}
}
