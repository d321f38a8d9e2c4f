package main

import "math"

// CollectibleSpawn is a static collectible slot from level data.
type CollectibleSpawn struct {
	Type CollectibleType
	Pos  Vec3
}

// Level is the static spawn data supplied by the scene/asset layer at room
// initialization. The simulation only reads it.
type Level struct {
	// Extent is the half-size of the cubic arena; positions are clamped to
	// [-Extent, Extent] on every axis.
	Extent       float64
	PlayerSpawns []Vec3
	Collectibles []CollectibleSpawn
}

// ClampToBounds restricts a position to the arena volume.
func (l *Level) ClampToBounds(p Vec3) Vec3 {
	return Vec3{
		Clamp(p.X, -l.Extent, l.Extent),
		Clamp(p.Y, -l.Extent, l.Extent),
		Clamp(p.Z, -l.Extent, l.Extent),
	}
}

// SpawnPoint returns the spawn position for a slot, cycling through the list.
func (l *Level) SpawnPoint(slot int) Vec3 {
	if len(l.PlayerSpawns) == 0 {
		return Vec3{}
	}
	return l.PlayerSpawns[slot%len(l.PlayerSpawns)]
}

// DefaultLevel builds the stock arena: eight spawn points on a ring plus
// collectible slots near the center and corners.
func DefaultLevel() *Level {
	const spawnRing = 180.0
	spawns := make([]Vec3, 8)
	for i := range spawns {
		a := float64(i) / 8 * 2 * math.Pi
		spawns[i] = Vec3{math.Cos(a) * spawnRing, 40, math.Sin(a) * spawnRing}
	}
	return &Level{
		Extent:       250,
		PlayerSpawns: spawns,
		Collectibles: []CollectibleSpawn{
			{CollectMissileRefill, Vec3{100, 30, 100}},
			{CollectMissileRefill, Vec3{-100, 30, 100}},
			{CollectMissileRefill, Vec3{100, 30, -100}},
			{CollectMissileRefill, Vec3{-100, 30, -100}},
			{CollectLaserUpgrade, Vec3{0, 60, 0}},
			{CollectLaserUpgrade, Vec3{0, 20, 0}},
		},
	}
}
