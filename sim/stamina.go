package sim

// updateStamina settles block engagement, attack starts and the per-tick
// drain or regeneration. Regeneration happens only on ticks with no sprint,
// no held block and no attack.
func (s *Session) updateStamina() {
	for _, id := range s.playerIDs() {
		p := s.players[id]
		if !p.Alive() {
			p.Blocking = false
			continue
		}

		_, hasShield := s.shield(p)
		switch {
		case !p.block || !hasShield:
			p.Blocking = false
		case !p.Blocking && p.Stamina > 0:
			p.Blocking = true
		}

		if p.attackPressed && s.tick >= p.attackReadyTick {
			w := s.weapon(p)
			if p.Stamina >= float64(w.StaminaCost) {
				p.Attacking = true
				p.attackReadyTick = s.tick + s.ticks((attackWindup+attackRecovery)/w.AttackSpeed)
				p.spendStamina(float64(w.StaminaCost))
			}
		}

		if !p.Sprinting && !p.block && !p.Attacking {
			regen := StaminaRegen * s.cat.RegenMultiplier(s.armorSet(p))
			p.Stamina = clampStamina(p.Stamina + regen*s.dt)
		}
		if p.Sprinting {
			p.spendStamina(s.cfg.SprintDrainPerSec * s.dt)
		}
		if p.Blocking {
			p.spendStamina(s.cfg.BlockDrainPerSec * s.dt)
		}
	}
}
