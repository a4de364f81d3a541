// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

// Sample is one attitude solution plus the raw sensor values it was derived
// from. Published samples are immutable, a new one is allocated per FIFO
// read and swapped in atomically.
type Sample struct {
	// TimestampMicros is the interrupt arrival time, microseconds since
	// the Unix epoch.
	TimestampMicros int64

	RawAccel [3]int16
	RawGyro  [3]int16

	Accel [3]float64 // m/s²
	Gyro  [3]float64 // °/s
	Mag   [3]float64 // µT, hard-iron corrected

	// DMPQuat is the normalized orientation straight off the coprocessor.
	DMPQuat      [4]float64
	DMPTaitBryan [3]float64 // radians, pitch/roll/yaw

	// FusedQuat has the yaw corrected against the magnetic heading.
	// Identical to DMPQuat when the magnetometer is disabled.
	FusedQuat      [4]float64
	FusedTaitBryan [3]float64

	// CompassHeadingRaw is the heading straight from the tilt-compensated
	// field vector. CompassHeading is the filtered version.
	CompassHeadingRaw float64
	CompassHeading    float64
}
