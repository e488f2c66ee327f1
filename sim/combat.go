package sim

import (
	"math"

	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/state"
)

// BlockedDamage is the damage that passes a shield, rounded half up in
// integer arithmetic: 30 against 70% is 9.
func BlockedDamage(damage, blockPercent int) int {
	if blockPercent <= 0 {
		return damage
	}
	if blockPercent >= 100 {
		return 0
	}
	return (damage*(100-blockPercent) + 50) / 100
}

// inArc reports whether target lies within AttackArc of facing as seen from
// origin. A target at the origin is always in the arc.
func inArc(origin, target geom.Vec2, facing float64) bool {
	d := target.Sub(origin)
	if d.IsZero() {
		return true
	}
	return geom.AngleDiff(d.Angle(), facing) <= AttackArc
}

func (s *Session) resolveCombat() {
	for _, pid := range s.playerIDs() {
		p := s.players[pid]
		if !p.Attacking {
			continue
		}
		w := s.weapon(p)
		for _, eid := range s.enemyIDs() {
			e := s.enemies[eid]
			if e.HP <= 0 || e.Pos.Dist(p.Pos) > w.Range || !inArc(p.Pos, e.Pos, p.Facing) {
				continue
			}
			s.damageEnemy(e, w.Damage, p.ID)
		}
	}

	for _, eid := range s.enemyIDs() {
		e := s.enemies[eid]
		if e.HP <= 0 || e.AI != state.Attack || s.tick < e.attackReadyTick {
			continue
		}
		p, ok := s.players[e.Target]
		if !ok || !p.Alive() {
			continue
		}
		st := s.cat.Enemies[e.Type]
		damage, reach, cooldown := st.Damage, st.AttackRange, st.AttackCooldown
		if e.Ranged {
			damage = int(math.Round(float64(st.Damage) * st.RangedDamageMul))
			reach, cooldown = st.BowRange, st.BowCooldown
		}
		if e.Pos.Dist(p.Pos) > reach {
			continue
		}
		e.Facing = p.Pos.Sub(e.Pos).Angle()
		e.attackReadyTick = s.tick + s.ticks(cooldown)
		s.hitPlayer(p, damage)
	}
}

// hitPlayer applies one enemy hit. It returns false while the player is
// still immune from the previous hit.
func (s *Session) hitPlayer(p *Player, damage int) bool {
	if s.tick < p.immuneUntilTick {
		return false
	}
	if p.Blocking {
		if sh, ok := s.shield(p); ok {
			if p.Stamina >= float64(sh.StaminaCost) {
				damage = BlockedDamage(damage, sh.BlockPercent)
				p.spendStamina(float64(sh.StaminaCost))
			} else {
				p.Blocking = false
			}
		}
	}

	p.HP -= damage
	if p.HP < 0 {
		p.HP = 0
	}
	p.immuneUntilTick = s.tick + uint64(s.cfg.HitImmunityTicks)
	s.stats.PlayerHits++

	if p.HP == 0 {
		p.Blocking, p.Sprinting, p.Attacking = false, false, false
		logger.Log.Infow("player died", "player_id", p.ID, "tick", s.tick)
	}
	return true
}

func (s *Session) damageEnemy(e *Enemy, damage int, by PlayerID) {
	e.HP -= damage
	if e.HP > 0 {
		return
	}
	e.HP = 0
	e.AI = state.Dead
	e.Target = 0
	e.Vel = geom.Vec2{}
	s.dying = append(s.dying, e.ID)
	s.stats.EnemiesKilled++

	for _, d := range s.cat.Drops[e.Type] {
		if s.rng.Float64() < d.Chance {
			it := s.newItem(d.Item)
			it.Pos = e.Pos
		}
	}

	if rs, ok := s.rooms[e.Room]; ok && rs.remaining > 0 {
		rs.remaining--
		if rs.remaining == 0 {
			rs.cleared = true
			logger.Log.Infow("room cleared", "room_id", e.Room, "tick", s.tick, "player_id", by)
		}
	}
}
