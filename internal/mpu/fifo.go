// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/relabs-tech/attitude_computer/internal/ahrs"
)

// fifoOutcome classifies one FIFO count reading. The chip drops uneven
// combinations of magnetometer and DMP bytes into the FIFO under I2C bus
// stress, and the byte counts seen in practice are recognized explicitly.
type fifoOutcome int

const (
	fifoEmpty fifoOutcome = iota
	fifoOnePacket
	fifoTwoPackets
	fifoDegraded
	fifoMagOnly
	fifoUnrecognized
)

func (o fifoOutcome) String() string {
	switch o {
	case fifoEmpty:
		return "empty"
	case fifoOnePacket:
		return "one packet"
	case fifoTwoPackets:
		return "two packets"
	case fifoDegraded:
		return "degraded"
	case fifoMagOnly:
		return "mag only"
	case fifoUnrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("fifoOutcome(%d)", int(o))
}

// fifoPlan says how to interpret a FIFO of a given byte count: where the
// interesting data starts and which sensors contributed.
type fifoPlan struct {
	outcome fifoOutcome
	offset  int  // byte position of the data to parse
	hasDMP  bool // a quaternion packet is present
	hasMag  bool // 7 magnetometer bytes are present
}

// classifyFIFO maps a FIFO byte count to a parse plan. The degraded counts
// 42, 63 and 77 are uneven mixes observed under high bus load; their
// offsets skip the leading stale bytes so the freshest packet is parsed.
func classifyFIFO(count int) fifoPlan {
	switch count {
	case 0:
		return fifoPlan{outcome: fifoEmpty}
	case fifoLenNoMag:
		return fifoPlan{outcome: fifoOnePacket, hasDMP: true}
	case fifoLenMag:
		return fifoPlan{outcome: fifoOnePacket, hasDMP: true, hasMag: true}
	case 42:
		return fifoPlan{outcome: fifoDegraded, offset: 7, hasDMP: true}
	case 63:
		return fifoPlan{outcome: fifoDegraded, offset: 28, hasDMP: true}
	case 77:
		return fifoPlan{outcome: fifoDegraded, offset: 42, hasDMP: true}
	case 2 * fifoLenNoMag:
		return fifoPlan{outcome: fifoTwoPackets, offset: fifoLenNoMag, hasDMP: true}
	case 2 * fifoLenMag:
		return fifoPlan{outcome: fifoTwoPackets, offset: fifoLenMag, hasDMP: true, hasMag: true}
	case 7, 14, 21:
		return fifoPlan{outcome: fifoMagOnly, offset: count - 7, hasMag: true}
	}
	return fifoPlan{outcome: fifoUnrecognized}
}

// Quaternion magnitude bounds for FIFO sanity checking. Components are
// scaled down to Q14 first, so a normalized quaternion has a squared
// magnitude of exactly 1<<28.
const (
	quatMagSqNormalized = int64(1) << 28
	quatMagSqTolerance  = int64(1) << 16
)

// quatValid reports whether the 16 bytes at offset i hold a plausibly
// normalized quaternion. A FIFO misaligned by an I2C error fails this.
func quatValid(raw []byte, i int) bool {
	if i < 0 || i+16 > len(raw) {
		return false
	}
	var magSq int64
	for k := 0; k < 4; k++ {
		q := int64(int32(binary.BigEndian.Uint32(raw[i+4*k:]))) >> 16
		magSq += q * q
	}
	return magSq >= quatMagSqNormalized-quatMagSqTolerance &&
		magSq <= quatMagSqNormalized+quatMagSqTolerance
}

// readDMPFIFO drains the FIFO and updates the pending sample. It reports
// whether a fresh DMP packet was parsed; magnetometer-only reads and
// recoverable degradation return false without error.
func (d *Device) readDMPFIFO(firstRun bool) (bool, error) {
	if !d.dmpOn {
		return false, ErrNotDMPMode
	}
	if d.packetLen != fifoLenNoMag && d.packetLen != fifoLenMag {
		return false, fmt.Errorf("fifo packet length %d not configured", d.packetLen)
	}

	count, err := d.bus.ReadWord(d.cfg.Addr, regFIFOCountH)
	if err != nil {
		return false, fmt.Errorf("read fifo count: %w", err)
	}

	plan := classifyFIFO(int(count))
	switch plan.outcome {
	case fifoEmpty:
		return false, nil
	case fifoUnrecognized:
		if d.cfg.LogWarnings && !firstRun {
			log.Printf("WARNING: %d bytes in FIFO, expected %d, resetting", count, d.packetLen)
		}
		if err := d.resetFIFO(); err != nil {
			return false, err
		}
		return false, nil
	case fifoDegraded, fifoTwoPackets:
		if d.cfg.LogWarnings && !firstRun {
			log.Printf("WARNING: %s FIFO read, %d bytes", plan.outcome, count)
		}
	}

	raw := make([]byte, count)
	if err := d.bus.ReadBytes(d.cfg.Addr, regFIFORW, raw); err != nil {
		// transient bus errors happen mid-stream, one retry
		if err := d.bus.ReadBytes(d.cfg.Addr, regFIFORW, raw); err != nil {
			return false, fmt.Errorf("read fifo buffer: %w", err)
		}
	}

	magOffset := plan.offset
	newDMPData := false
	if plan.hasDMP {
		// the magnetometer bytes may land before or after the DMP data,
		// usually before; probe both alignments
		var j int
		switch {
		case d.cfg.MagEnabled && quatValid(raw, plan.offset+7):
			j = plan.offset + 7
		case quatValid(raw, plan.offset):
			j = plan.offset
			magOffset = plan.offset + fifoLenNoMag
		default:
			if d.cfg.LogWarnings && !firstRun {
				log.Printf("WARNING: quaternion out of bounds, fifo count %d", count)
			}
			if err := d.resetFIFO(); err != nil {
				return false, err
			}
			return false, nil
		}

		var q [4]float64
		for k := 0; k < 4; k++ {
			q[k] = float64(int32(binary.BigEndian.Uint32(raw[j+4*k:])))
		}
		ahrs.Normalize(&q)
		d.cur.DMPQuat = q
		d.cur.DMPTaitBryan = ahrs.ToTaitBryan(q)
		j += 16

		for k := 0; k < 3; k++ {
			d.cur.RawAccel[k] = int16(binary.BigEndian.Uint16(raw[j+2*k:]))
			d.cur.Accel[k] = float64(d.cur.RawAccel[k]) * d.accelToMS2
		}
		j += 6
		for k := 0; k < 3; k++ {
			d.cur.RawGyro[k] = int16(binary.BigEndian.Uint16(raw[j+2*k:]))
			d.cur.Gyro[k] = float64(d.cur.RawGyro[k]) * d.gyroToDegs
		}
		newDMPData = true
	}

	if plan.hasMag && magOffset+6 <= len(raw) {
		var adc [3]int16
		for k := 0; k < 3; k++ {
			adc[k] = int16(binary.LittleEndian.Uint16(raw[magOffset+2*k:]))
		}
		// all zeros means the slave transfer did not complete, keep the
		// previous field vector
		if adc[0] != 0 || adc[1] != 0 || adc[2] != 0 {
			d.cur.Mag = d.correctMag(adc)
		}
	}

	if newDMPData {
		if d.cfg.MagEnabled {
			if err := d.fuse(); err != nil && d.cfg.LogWarnings {
				log.Printf("WARNING: data fusion: %v", err)
			}
		} else {
			d.cur.FusedQuat = d.cur.DMPQuat
			d.cur.FusedTaitBryan = d.cur.DMPTaitBryan
		}
		d.cur.TimestampMicros = d.lastInterruptMicros.Load()
		d.publish()
	}
	return newDMPData, nil
}
