// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"fmt"
	"math"

	"github.com/relabs-tech/attitude_computer/internal/ahrs"
)

// fusionState carries the yaw complementary filter between FIFO reads. The
// DMP yaw drifts but is smooth; the magnetic heading is absolute but noisy.
// A matched low-pass/high-pass pair blends them.
type fusionState struct {
	magYaw   float64
	dmpYaw   float64
	magSpins float64
	dmpSpins float64
	lp       *ahrs.FirstOrder
	hp       *ahrs.FirstOrder
	ready    bool
}

// fuse corrects the DMP yaw against the magnetic heading and fills in the
// fused fields of the pending sample. Pitch and roll pass through from the
// DMP untouched.
func (d *Device) fuse() error {
	// quaternion of just the roll/pitch attitude, yaw zeroed
	tilt := ahrs.FromTaitBryan([3]float64{
		d.cur.DMPTaitBryan[ahrs.TBPitchX],
		d.cur.DMPTaitBryan[ahrs.TBRollY],
		0,
	})

	// magnetic field as a pure vector quaternion, remapped into the frame
	// the DMP quaternion lives in
	mag := d.cur.Mag
	var magQuat [4]float64
	switch d.cfg.Orientation {
	case OrientZUp:
		magQuat = [4]float64{0, mag[0], mag[1], mag[2]}
	case OrientZDown:
		magQuat = [4]float64{0, -mag[0], mag[1], -mag[2]}
	case OrientXUp:
		magQuat = [4]float64{0, mag[2], mag[1], mag[0]}
	case OrientXDown:
		magQuat = [4]float64{0, -mag[2], mag[1], -mag[0]}
	case OrientYUp:
		magQuat = [4]float64{0, mag[0], -mag[2], mag[1]}
	case OrientYDown:
		magQuat = [4]float64{0, mag[0], mag[2], -mag[1]}
	case OrientXForward:
		magQuat = [4]float64{0, mag[1], -mag[0], mag[2]}
	case OrientXBack:
		magQuat = [4]float64{0, -mag[1], mag[0], mag[2]}
	default:
		return fmt.Errorf("invalid orientation %d", int(d.cfg.Orientation))
	}

	// align the field vector so Z points vertically, then take the heading
	magQuat = ahrs.TiltCompensate(magQuat, tilt)
	newMagYaw := -math.Atan2(magQuat[ahrs.QuatY], magQuat[ahrs.QuatX])
	if math.IsNaN(newMagYaw) {
		return fmt.Errorf("magnetic heading is NaN")
	}
	lastMagYaw := d.fus.magYaw
	d.fus.magYaw = newMagYaw
	d.cur.CompassHeadingRaw = newMagYaw

	lastDMPYaw := d.fus.dmpYaw
	newDMPYaw := d.cur.DMPTaitBryan[ahrs.TBYawZ]
	d.fus.dmpYaw = newDMPYaw

	// both headings wrap at ±π; track full spins so the filters see a
	// continuous signal
	if newMagYaw-lastMagYaw < -math.Pi {
		d.fus.magSpins++
	} else if newMagYaw-lastMagYaw > math.Pi {
		d.fus.magSpins--
	}
	if newDMPYaw-lastDMPYaw < -math.Pi {
		d.fus.dmpSpins++
	} else if newDMPYaw-lastDMPYaw > math.Pi {
		d.fus.dmpSpins--
	}

	if !d.fus.ready {
		d.fus.magSpins = 0
		d.fus.dmpSpins = 0
		dt := 1.0 / float64(d.cfg.SampleRate)
		d.fus.lp = ahrs.NewLowPass(dt, d.cfg.CompassTimeConstant)
		d.fus.hp = ahrs.NewHighPass(dt, d.cfg.CompassTimeConstant)
		// seed with the magnetic heading so there is no initial rise time
		d.fus.lp.Prefill(newMagYaw, newMagYaw)
		d.fus.hp.Prefill(newDMPYaw, 0)
		d.fus.ready = true
	}

	newYaw := d.fus.lp.March(newMagYaw+2*math.Pi*d.fus.magSpins) +
		d.fus.hp.March(newDMPYaw+2*math.Pi*d.fus.dmpSpins)

	newYaw = math.Mod(newYaw, 2*math.Pi)
	if newYaw > math.Pi {
		newYaw -= 2 * math.Pi
	} else if newYaw < -math.Pi {
		newYaw += 2 * math.Pi
	}

	d.cur.CompassHeading = newYaw
	d.cur.FusedTaitBryan = [3]float64{
		d.cur.DMPTaitBryan[ahrs.TBPitchX],
		d.cur.DMPTaitBryan[ahrs.TBRollY],
		newYaw,
	}
	d.cur.FusedQuat = ahrs.FromTaitBryan(d.cur.FusedTaitBryan)
	return nil
}
