package main

import "sort"

// CollectibleType distinguishes pickup effects
type CollectibleType int

const (
	CollectMissileRefill CollectibleType = 0
	CollectLaserUpgrade  CollectibleType = 1
)

const (
	CollectibleRadius   = 3.0
	CollectibleRespawn  = 20.0 // seconds inactive after pickup
	MissileRefillAmount = 3
)

// Collectible is a fixed pickup slot created once from level data. Pickup
// flips it inactive; the spawner reactivates it when its timer elapses.
// Collectibles are never destroyed.
type Collectible struct {
	ID       string
	Type     CollectibleType
	Pos      Vec3
	Active   bool
	RespawnT float64 // valid while inactive
}

// UpdateCollectibles ticks respawn timers and resolves pickups. Each timer
// runs independently of the others.
func UpdateCollectibles(w *World, dt float64) {
	ids := make([]string, 0, len(w.Collectibles))
	for id := range w.Collectibles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := w.Collectibles[id]
		if !c.Active {
			c.RespawnT -= dt
			if c.RespawnT <= 0 {
				c.Active = true
				c.RespawnT = 0
			}
		}
	}

	// Pickup check: once per tick per living player
	for _, pid := range sortedPlayerIDs(w) {
		p := w.Players[pid]
		if !p.Alive {
			continue
		}
		reach := GetClassDef(p.Class).Radius + CollectibleRadius
		for _, id := range ids {
			c := w.Collectibles[id]
			if !c.Active {
				continue
			}
			if p.Pos.DistanceTo(c.Pos) <= reach {
				applyPickup(p, c)
			}
		}
	}
}

func applyPickup(p *Player, c *Collectible) {
	switch c.Type {
	case CollectMissileRefill:
		max := GetClassDef(p.Class).MaxMissiles
		p.Missiles += MissileRefillAmount
		if p.Missiles > max {
			p.Missiles = max
		}
	case CollectLaserUpgrade:
		p.LaserUpgrade = true
	}
	c.Active = false
	c.RespawnT = CollectibleRespawn
}
