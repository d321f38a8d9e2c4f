package main

const (
	LaserLifetime   = 2.0 // seconds
	LaserRadius     = 1.0
	LaserUpgradeMul = 1.5 // damage multiplier with the LaserUpgrade collectible

	MissileLifetime = 6.0
	MissileRadius   = 1.8
	MissileDamage   = 40
	MissileSpeed    = 70.0 // used only to extrapolate between owner updates

	FireOffset = 4.5 // spawn distance from ship center along the fire direction
)

// Projectile is a laser bolt or a homing missile. Lasers are fully
// server-simulated. Missiles are owner-authoritative: the owning client
// reports position/direction and the server relays it, extrapolating along
// the last heading on ticks with no update (and after owner disconnect,
// until the lifetime expires).
type Projectile struct {
	ID        string
	OwnerID   string
	Pos       Vec3
	Dir       Vec3 // unit
	Speed     float64
	Radius    float64
	Damage    int
	Life      float64 // seconds remaining
	SpawnTick uint64
	OwnerAuth bool // true for client-owned homing missiles

	// prevPos is the position at the start of the current tick; the swept
	// collision query runs over prevPos -> Pos.
	prevPos Vec3
	// lastUpdateTick is the tick of the most recent owner missile update.
	lastUpdateTick uint64
}

// NewLaser spawns a server-authoritative laser bolt. dir must be unit length.
func NewLaser(owner *Player, dir Vec3, tick uint64) *Projectile {
	def := GetClassDef(owner.Class)
	dmg := def.LaserDamage
	if owner.LaserUpgrade {
		dmg = int(float64(dmg) * LaserUpgradeMul)
	}
	pos := owner.Pos.Add(dir.Scale(FireOffset))
	return &Projectile{
		ID:        GenerateID(3),
		OwnerID:   owner.ID,
		Pos:       pos,
		prevPos:   pos,
		Dir:       dir,
		Speed:     def.LaserSpeed,
		Radius:    LaserRadius,
		Damage:    dmg,
		Life:      LaserLifetime,
		SpawnTick: tick,
	}
}

// NewMissile spawns an owner-authoritative homing missile. dir must be unit length.
func NewMissile(owner *Player, dir Vec3, tick uint64) *Projectile {
	pos := owner.Pos.Add(dir.Scale(FireOffset))
	return &Projectile{
		ID:        GenerateID(3),
		OwnerID:   owner.ID,
		Pos:       pos,
		prevPos:   pos,
		Dir:       dir,
		Speed:     MissileSpeed,
		Radius:    MissileRadius,
		Damage:    MissileDamage,
		Life:      MissileLifetime,
		SpawnTick: tick,
		OwnerAuth: true,
	}
}
