package main

const (
	RespawnDelay   = 3.0 // seconds dead before respawn
	RegenDelay     = 5.0 // seconds without damage before shields recover
	SpeedTolerance = 1.1 // accepted margin over the class speed cap
)

// Player is the authoritative record for one ship. All fields are written
// only by the owning room's tick goroutine; the owning client keeps its own
// predicted shadow (see Predictor).
type Player struct {
	ID       string
	Name     string
	Pos      Vec3
	Vel      Vec3
	Rot      Quat
	HP       float64
	MaxHP    float64
	Kills    int
	Deaths   int
	Missiles int
	Class    ShipClass
	// LaserUpgrade is set by the LaserUpgrade collectible and cleared on death.
	LaserUpgrade bool
	Alive        bool

	LastDamageTick uint64
	LastAckedSeq   uint32
	FireCD         float64 // seconds until the next laser may fire
	RespawnT       float64 // seconds until respawn, valid while dead
	SpawnSlot      int     // index into the level's spawn points

	AuthID int64 // identity-layer account id, 0 for guests
}

// NewPlayer creates a player at the given spawn point.
func NewPlayer(id, name string, class ShipClass, spawn Vec3, slot int) *Player {
	def := GetClassDef(class)
	return &Player{
		ID:        id,
		Name:      name,
		Pos:       spawn,
		Rot:       QuatIdentity,
		HP:        def.MaxHP,
		MaxHP:     def.MaxHP,
		Missiles:  def.MaxMissiles,
		Class:     class,
		Alive:     true,
		SpawnSlot: slot,
	}
}

// TakeDamage reduces HP, clamping at zero, and returns true if the player
// died this call. Records the tick so shield regen restarts its grace period.
func (p *Player) TakeDamage(dmg int, tick uint64) bool {
	if !p.Alive {
		return false
	}
	p.HP -= float64(dmg)
	p.LastDamageTick = tick
	if p.HP <= 0 {
		p.HP = 0
		p.Alive = false
		p.Vel = Vec3{}
		p.RespawnT = RespawnDelay
		return true
	}
	return false
}

// Respawn resets the player after death. Position and health reset;
// kills/deaths survive.
func (p *Player) Respawn(spawn Vec3) {
	def := GetClassDef(p.Class)
	p.Pos = spawn
	p.Vel = Vec3{}
	p.Rot = QuatIdentity
	p.HP = def.MaxHP
	p.Missiles = def.MaxMissiles
	p.LaserUpgrade = false
	p.Alive = true
	p.FireCD = 0
	p.RespawnT = 0
}

// ResetForMatch returns the player to a clean spawn state at round start.
func (p *Player) ResetForMatch(spawn Vec3) {
	p.Respawn(spawn)
	p.Kills = 0
	p.Deaths = 0
	p.LastDamageTick = 0
}

// CanFireLaser reports whether a laser fire request may be honored now.
func (p *Player) CanFireLaser() bool {
	return p.Alive && p.FireCD <= 0
}
