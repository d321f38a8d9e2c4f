package main

// ShipClass identifies the class of ship
type ShipClass int

const (
	ClassFighter ShipClass = 0
	ClassTank    ShipClass = 1
	ClassRogue   ShipClass = 2
)

// ShipClassDef holds the stats for a ship class
type ShipClassDef struct {
	MaxHP       float64
	MaxMissiles int
	Accel       float64 // units/s²
	MaxSpeed    float64 // units/s
	Drag        float64 // velocity multiplier per tick
	Radius      float64 // sphere collider radius
	LaserDamage int
	LaserSpeed  float64 // units/s
	LaserCD     float64 // seconds between shots
	RegenRate   float64 // HP/s once the no-damage grace elapses
}

var ShipClasses = [3]ShipClassDef{
	// Fighter: balanced
	{
		MaxHP: 100, MaxMissiles: 3, Accel: 90, MaxSpeed: 60, Drag: 0.99,
		Radius: 3, LaserDamage: 20, LaserSpeed: 200, LaserCD: 0.25, RegenRate: 10,
	},
	// Tank: slow, tough, hard-hitting
	{
		MaxHP: 180, MaxMissiles: 5, Accel: 55, MaxSpeed: 42, Drag: 0.985,
		Radius: 4.2, LaserDamage: 30, LaserSpeed: 180, LaserCD: 0.5, RegenRate: 8,
	},
	// Rogue: fast, fragile, rapid fire
	{
		MaxHP: 70, MaxMissiles: 2, Accel: 130, MaxSpeed: 82, Drag: 0.992,
		Radius: 2.5, LaserDamage: 12, LaserSpeed: 220, LaserCD: 0.14, RegenRate: 12,
	},
}

// GetClassDef returns the definition for a ship class
func GetClassDef(class ShipClass) ShipClassDef {
	if class < 0 || int(class) >= len(ShipClasses) {
		return ShipClasses[ClassFighter]
	}
	return ShipClasses[class]
}
