// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ahrs holds the attitude math shared by the MPU driver: quaternion
// conversions, the complementary filter stages, and the ellipsoid fit used by
// magnetometer calibration.
package ahrs

import "math"

// Quaternion component indices. W is the scalar part.
const (
	QuatW = 0
	QuatX = 1
	QuatY = 2
	QuatZ = 3
)

// Tait-Bryan angle indices: pitch about X, roll about Y, yaw about Z.
const (
	TBPitchX = 0
	TBRollY  = 1
	TBYawZ   = 2
)

// Normalize scales q to unit magnitude in place. A zero quaternion is left
// unchanged.
func Normalize(q *[4]float64) {
	m := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if m == 0 {
		return
	}
	q[0] /= m
	q[1] /= m
	q[2] /= m
	q[3] /= m
}

// ToTaitBryan converts a unit quaternion to pitch/roll/yaw in radians.
func ToTaitBryan(q [4]float64) [3]float64 {
	var tb [3]float64
	tb[TBPitchX] = math.Atan2(2.0*(q[0]*q[1]+q[2]*q[3]), 1.0-2.0*(q[1]*q[1]+q[2]*q[2]))
	tb[TBRollY] = math.Asin(2.0 * (q[0]*q[2] - q[1]*q[3]))
	tb[TBYawZ] = math.Atan2(2.0*(q[0]*q[3]+q[1]*q[2]), 1.0-2.0*(q[2]*q[2]+q[3]*q[3]))
	return tb
}

// FromTaitBryan converts pitch/roll/yaw in radians to a unit quaternion.
func FromTaitBryan(tb [3]float64) [4]float64 {
	c1 := math.Cos(tb[TBPitchX] / 2)
	s1 := math.Sin(tb[TBPitchX] / 2)
	c2 := math.Cos(tb[TBRollY] / 2)
	s2 := math.Sin(tb[TBRollY] / 2)
	c3 := math.Cos(tb[TBYawZ] / 2)
	s3 := math.Sin(tb[TBYawZ] / 2)

	return [4]float64{
		c1*c2*c3 + s1*s2*s3,
		s1*c2*c3 - c1*s2*s3,
		c1*s2*c3 + s1*c2*s3,
		c1*c2*s3 - s1*s2*c3,
	}
}

// Multiply returns the Hamilton product a⊗b.
func Multiply(a, b [4]float64) [4]float64 {
	return [4]float64{
		a[0]*b[0] - a[1]*b[1] - a[2]*b[2] - a[3]*b[3],
		a[0]*b[1] + a[1]*b[0] + a[2]*b[3] - a[3]*b[2],
		a[0]*b[2] - a[1]*b[3] + a[2]*b[0] + a[3]*b[1],
		a[0]*b[3] + a[1]*b[2] - a[2]*b[1] + a[3]*b[0],
	}
}

// Conjugate returns q with the vector part negated.
func Conjugate(q [4]float64) [4]float64 {
	return [4]float64{q[0], -q[1], -q[2], -q[3]}
}

// TiltCompensate rotates the pure quaternion v (a vector embedded with W=0)
// by the rotation q, projecting the magnetic field vector into the frame
// where Z points vertically: q ⊗ v ⊗ q*.
func TiltCompensate(v, q [4]float64) [4]float64 {
	return Multiply(q, Multiply(v, Conjugate(q)))
}
