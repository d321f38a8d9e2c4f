package main

// RegenShields restores health to living players once the no-damage grace
// period has elapsed. Taking damage resets the grace period (see
// Player.TakeDamage).
func RegenShields(w *World, dt float64) {
	graceTicks := uint64(RegenDelay / dt)
	for _, p := range w.Players {
		if !p.Alive || p.HP >= p.MaxHP {
			continue
		}
		if p.LastDamageTick != 0 && w.Tick-p.LastDamageTick < graceTicks {
			continue
		}
		p.HP += GetClassDef(p.Class).RegenRate * dt
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
	}
}
