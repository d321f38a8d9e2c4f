package main

import "math"

// SweptQuery is the physics-engine primitive consumed by the combat
// resolver: sweep a sphere of the given radius from p0 to p1 against a
// target sphere and report the earliest time of impact t in [0,1], or false
// for no hit. Injectable so tests can substitute a canned response.
type SweptQuery func(p0, p1 Vec3, radius float64, center Vec3, targetRadius float64) (float64, bool)

// SweptSphereHit is the analytic default: segment-vs-sphere with the swept
// radius folded into the target (a capsule test), preventing tunneling at
// high projectile speeds.
func SweptSphereHit(p0, p1 Vec3, radius float64, center Vec3, targetRadius float64) (float64, bool) {
	r := radius + targetRadius
	d := p1.Sub(p0)
	f := p0.Sub(center)

	// Already overlapping at the start of the sweep.
	if f.LengthSq() <= r*r {
		return 0, true
	}

	a := d.LengthSq()
	if a == 0 {
		return 0, false
	}
	b := 2 * f.Dot(d)
	c := f.LengthSq() - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	// Start is outside the inflated sphere, so the smaller root is the
	// entry time.
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t >= 0 && t <= 1 {
		return t, true
	}
	return 0, false
}
