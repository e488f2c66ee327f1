package sim

import (
	"math"

	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/state"
)

type Enemy struct {
	ID       EnemyID
	Kind     state.Kind
	Type     string
	Pos      geom.Vec2
	Vel      geom.Vec2
	SpawnPos geom.Vec2
	Facing   float64
	HP       int
	MaxHP    int
	AI       state.State
	Ranged   bool
	Room     dungeon.RoomID
	// Target is a weak reference; a miss on lookup means no target.
	Target PlayerID

	attackReadyTick uint64
	jumpReadyTick   uint64
	lungeTicks      uint64
}

func (s *Session) spawnEnemy(kind state.Kind, name string, pos geom.Vec2, room dungeon.RoomID) *Enemy {
	st := s.cat.Enemies[name]
	s.nextEnemy++
	e := &Enemy{
		ID:       s.nextEnemy,
		Kind:     kind,
		Type:     name,
		Pos:      pos,
		SpawnPos: pos,
		HP:       st.HP,
		MaxHP:    st.HP,
		Room:     room,
	}
	if kind == state.Ant && st.BowChance > 0 {
		e.Ranged = s.rng.Float64() < st.BowChance
	}
	e.AI = state.Initial(kind, e.Ranged)
	s.enemies[e.ID] = e
	return e
}

func (s *Session) candidates(e *Enemy) []state.Candidate {
	ids := s.playerIDs()
	out := make([]state.Candidate, 0, len(ids))
	for _, id := range ids {
		p := s.players[id]
		c := state.Candidate{
			ID:          uint32(id),
			Distance:    e.Pos.Dist(p.Pos),
			Alive:       p.Alive(),
			LineOfSight: true,
		}
		if e.Kind == state.Larva {
			c.LineOfSight = s.graph.LineOfSight(e.Pos, p.Pos)
		}
		out = append(out, c)
	}
	return out
}

// stepEnemies runs the transition function for every living enemy in an
// active room and moves it according to the resulting state.
func (s *Session) stepEnemies() {
	for _, id := range s.enemyIDs() {
		e := s.enemies[id]
		if e.HP <= 0 {
			continue
		}
		if rs, ok := s.rooms[e.Room]; !ok || !rs.active {
			continue
		}
		st := s.cat.Enemies[e.Type]
		out := state.Next(state.Input{
			Kind:        e.Kind,
			Ranged:      e.Ranged,
			Current:     e.AI,
			HP:          e.HP,
			Target:      uint32(e.Target),
			Candidates:  s.candidates(e),
			Radius:      st.DetectionRange,
			Hysteresis:  s.cfg.HysteresisMargin,
			AttackRange: st.AttackRange,
			Lunging:     e.lungeTicks > 0,
			JumpReady:   s.tick >= e.jumpReadyTick,
		})
		e.AI = out.State
		e.Target = PlayerID(out.Target)
		s.moveEnemy(e, st, out.StartLunge)
	}
}

func (s *Session) targetPos(e *Enemy) (geom.Vec2, bool) {
	p, ok := s.players[e.Target]
	if !ok || !p.Alive() {
		return geom.Vec2{}, false
	}
	return p.Pos, true
}

func (s *Session) randomHeading(speed float64) geom.Vec2 {
	return geom.FromAngle(s.rng.Float64() * 2 * math.Pi).Scale(speed)
}

func (s *Session) moveEnemy(e *Enemy, st catalog.EnemyStats, startLunge bool) {
	target, hasTarget := s.targetPos(e)
	if hasTarget {
		e.Facing = target.Sub(e.Pos).Angle()
	}

	switch e.Kind {
	case state.Larva:
		if startLunge {
			if hasTarget {
				e.Vel = target.Sub(e.Pos).Normalize().Scale(st.JumpSpeed)
			}
			e.lungeTicks = s.ticks(lungeSeconds)
			e.jumpReadyTick = s.tick + s.ticks(st.JumpCooldown)
		} else if e.AI == state.Wander && s.rng.Float64() < 0.02 {
			e.Vel = s.randomHeading(st.Speed * 0.5)
		}
		if e.lungeTicks > 0 {
			e.lungeTicks--
		}
		e.Pos = Slide(s.graph, e.Pos, e.Vel.Scale(s.dt))
		e.Vel = e.Vel.Scale(0.9)
		return

	case state.Ant:
		switch e.AI {
		case state.Alert:
			if hasTarget {
				e.Vel = target.Sub(e.Pos).Normalize().Scale(st.Speed)
			}
		case state.Wander:
			if s.rng.Float64() < 0.01 {
				e.Vel = s.randomHeading(st.Speed * 0.3)
			}
		default:
			e.Vel = geom.Vec2{}
		}

	case state.Wasp:
		switch e.AI {
		case state.Alert:
			if hasTarget {
				e.Vel = target.Sub(e.Pos).Normalize().Scale(st.Speed)
			}
		case state.Attack:
			e.Vel = e.Vel.Scale(0.5)
		default:
			home := e.SpawnPos.Sub(e.Pos)
			if home.Len() > st.WanderRadius {
				e.Vel = home.Normalize().Scale(st.Speed * 0.5)
			} else if s.rng.Float64() < 0.02 {
				e.Vel = s.randomHeading(st.Speed * 0.4)
			}
		}
	}
	e.Pos = Slide(s.graph, e.Pos, e.Vel.Scale(s.dt))
}
