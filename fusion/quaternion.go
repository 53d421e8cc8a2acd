/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	quaternion.go: quaternion/Euler conversions and angle wrapping.
*/

package fusion

import (
	"math"

	"github.com/westphae/quaternion"
)

const (
	twoPi = 2 * math.Pi
	// poleGuard is the pitch beyond which roll is no longer resolvable and is held at 0.
	poleGuard = math.Pi/2 - 0.05
	q30       = 1 << 30
)

// Euler angles in radians, aerospace (yaw-pitch-roll) order.
type Euler struct {
	Roll, Pitch, Yaw float64
}

// Degrees returns e converted to degrees.
func (e Euler) Degrees() Euler {
	return Euler{Roll: e.Roll * 180 / math.Pi, Pitch: e.Pitch * 180 / math.Pi, Yaw: e.Yaw * 180 / math.Pi}
}

// FromQ30 converts a fixed-point DMP quaternion (w, x, y, z) to floating point.
func FromQ30(q [4]int32) quaternion.Quaternion {
	return quaternion.Quaternion{
		W: float64(q[0]) / q30,
		X: float64(q[1]) / q30,
		Y: float64(q[2]) / q30,
		Z: float64(q[3]) / q30,
	}
}

// Normalize scales q to unit length. The zero quaternion stays zero.
func Normalize(q quaternion.Quaternion) quaternion.Quaternion {
	n := q.Norm()
	if n == 0 {
		return quaternion.Quaternion{}
	}
	return quaternion.Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// ToEuler converts a unit quaternion to Euler angles. Within 0.05rad of
// either pole roll is reported as 0; yaw keeps its usual form so it stays
// continuous across the band edge.
func ToEuler(q quaternion.Quaternion) Euler {
	var e Euler
	sp := 2 * (q.W*q.Y - q.X*q.Z)
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	e.Pitch = math.Asin(sp)

	e.Yaw = math.Atan2(2*(q.X*q.Y+q.W*q.Z), 1-2*(q.Y*q.Y+q.Z*q.Z))
	if math.Abs(e.Pitch) <= poleGuard {
		e.Roll = math.Atan2(2*(q.Y*q.Z+q.W*q.X), 1-2*(q.X*q.X+q.Y*q.Y))
	}
	return e
}

// FromEuler builds the unit quaternion for e.
func FromEuler(e Euler) quaternion.Quaternion {
	cr, sr := math.Cos(e.Roll/2), math.Sin(e.Roll/2)
	cp, sp := math.Cos(e.Pitch/2), math.Sin(e.Pitch/2)
	cy, sy := math.Cos(e.Yaw/2), math.Sin(e.Yaw/2)
	return quaternion.Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// TiltCompensate rotates the vector v by q: q * (v * conj(q)).
func TiltCompensate(q quaternion.Quaternion, v [3]float64) quaternion.Quaternion {
	m := quaternion.Quaternion{X: v[0], Y: v[1], Z: v[2]}
	return quaternion.Prod(q, quaternion.Prod(m, q.Conj()))
}

// WrapTwoPi folds a into [0, 2pi) with a single add or subtract.
func WrapTwoPi(a float64) float64 {
	if a < 0 {
		a += twoPi
	} else if a >= twoPi {
		a -= twoPi
	}
	return a
}

// WrapPi folds a into (-pi, pi] with a single add or subtract.
func WrapPi(a float64) float64 {
	if a > math.Pi {
		a -= twoPi
	} else if a <= -math.Pi {
		a += twoPi
	}
	return a
}
