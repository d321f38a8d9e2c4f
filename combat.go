package main

// ResolveCombat advances projectiles, resolves swept-volume hits against
// living players, applies damage and deaths, and ticks respawn timers.
// Server-authoritative lasers are integrated here; owner-authoritative
// missiles keep the position reported by their owner this tick, or
// extrapolate along the last heading when no update arrived (which is also
// how they decay after the owner disconnects). Collision and damage
// resolution is identical for both kinds.
func ResolveCombat(w *World, dt float64, sweep SweptQuery, events *[]Envelope) {
	playerIDs := sortedPlayerIDs(w)

	for _, id := range sortedProjectileIDs(w) {
		pr := w.Projectiles[id]

		if !pr.OwnerAuth || pr.lastUpdateTick != w.Tick {
			pr.Pos = pr.Pos.Add(pr.Dir.Scale(pr.Speed * dt))
		}
		pr.Life -= dt

		// Earliest time-of-impact along prevPos -> Pos wins.
		var victim *Player
		bestT := 2.0
		for _, pid := range playerIDs {
			p := w.Players[pid]
			if !p.Alive || p.ID == pr.OwnerID {
				continue
			}
			t, hit := sweep(pr.prevPos, pr.Pos, pr.Radius, p.Pos, GetClassDef(p.Class).Radius)
			if hit && t < bestT {
				bestT = t
				victim = p
			}
		}

		if victim != nil {
			died := victim.TakeDamage(pr.Damage, w.Tick)
			delete(w.Projectiles, id)
			*events = append(*events, Envelope{T: MsgHit, Data: HitMsg{
				TargetID: victim.ID,
				Amount:   pr.Damage,
			}})
			if died {
				victim.Deaths++
				killerName := ""
				if killer, ok := w.Players[pr.OwnerID]; ok {
					killer.Kills++
					killerName = killer.Name
				}
				*events = append(*events, Envelope{T: MsgKill, Data: KillMsg{
					KillerID:   pr.OwnerID,
					KillerName: killerName,
					VictimID:   victim.ID,
					VictimName: victim.Name,
				}})
			}
			continue
		}

		// A projectile whose lifetime reaches zero is removed this tick,
		// not the next.
		if pr.Life <= 0 {
			delete(w.Projectiles, id)
			continue
		}
		pr.prevPos = pr.Pos
	}

	// Respawns scheduled by deaths above (or on earlier ticks)
	for _, pid := range playerIDs {
		p := w.Players[pid]
		if p.Alive {
			continue
		}
		p.RespawnT -= dt
		if p.RespawnT <= 0 {
			p.Respawn(w.Level.SpawnPoint(p.SpawnSlot))
			*events = append(*events, Envelope{T: MsgRespawn, Data: RespawnMsg{
				PlayerID: p.ID,
				Pos:      vec3Array(p.Pos),
			}})
		}
	}
}
