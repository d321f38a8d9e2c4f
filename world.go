package main

import "sort"

// World is the authoritative aggregate for one room: all entities plus the
// match phase and its timer. Pure data; the systems in combat.go, shield.go,
// collectible.go and phase.go mutate it, and only on the room's tick
// goroutine.
type World struct {
	Players      map[string]*Player
	Projectiles  map[string]*Projectile
	Collectibles map[string]*Collectible

	Phase  MatchPhase
	PhaseT float64
	Tick   uint64

	Level *Level
}

// NewWorld creates the world for a room, instantiating collectible slots
// from the level's static spawn data.
func NewWorld(level *Level) *World {
	w := &World{
		Players:      make(map[string]*Player),
		Projectiles:  make(map[string]*Projectile),
		Collectibles: make(map[string]*Collectible),
		Phase:        PhaseLobby,
		Level:        level,
	}
	for _, cs := range level.Collectibles {
		c := &Collectible{
			ID:     GenerateID(3),
			Type:   cs.Type,
			Pos:    cs.Pos,
			Active: true,
		}
		w.Collectibles[c.ID] = c
	}
	return w
}

// sortedPlayerIDs returns player ids in a stable order. The systems iterate
// in this order so identical inputs always produce identical worlds.
func sortedPlayerIDs(w *World) []string {
	ids := make([]string, 0, len(w.Players))
	for id := range w.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedProjectileIDs returns projectile ids in a stable order.
func sortedProjectileIDs(w *World) []string {
	ids := make([]string, 0, len(w.Projectiles))
	for id := range w.Projectiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
