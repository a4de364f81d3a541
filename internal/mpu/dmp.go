// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/attitude_computer/internal/irq"
)

// DMP memory map. Addresses are bank<<8 | offset, from the InvenSense
// motion driver.
const (
	dmpBankSize  = 256
	dmpCodeSize  = 3062
	dmpLoadChunk = 16
	dmpStartAddr = 0x0400

	dD022            = 534
	dD0104           = 104
	cfg6             = 2753
	cfg8             = 2718
	cfg15            = 2727
	cfg20            = 2224
	cfg27            = 2742
	cfgGyroRawData   = 2722
	cfgLPQuat        = 2712
	cfgMotionBias    = 1208
	cfgAndroidOrient = 1853
	cfgFIFOOnEvent   = 2690
	fcfg1            = 1062
	fcfg2            = 1066
	fcfg3            = 1088
	fcfg7            = 1073

	// gyroSF is the gyro integration scale factor for 2000 DPS at 200Hz.
	gyroSF = 46850825
)

// DMP feature flags.
const (
	featureSendRawAccel = 1 << 0
	featureSendRawGyro  = 1 << 1
	featureSendCalGyro  = 1 << 2
	featureGyroCal      = 1 << 3
	featureLPQuat       = 1 << 4
	feature6xLPQuat     = 1 << 5
	featureSendAnyGyro  = featureSendRawGyro | featureSendCalGyro
)

// FIFO packet lengths for the feature set this driver runs:
// 16 quaternion bytes, 6 accel, 6 gyro, plus 7 magnetometer bytes when the
// chip's I2C master routes the AK8963 through slave 0.
const (
	fifoLenNoMag = 28
	fifoLenMag   = 35
)

// InitDMP loads the coprocessor firmware and configures it to stream
// orientation packets through the FIFO at the configured rate, then starts
// the sampler goroutine waiting on the interrupt line.
func (d *Device) InitDMP(edge irq.EdgeWaiter) error {
	firmware, err := loadFirmwareFile(d.cfg.FirmwarePath)
	if err != nil {
		return err
	}

	if !d.bus.Claim() {
		log.Println("WARNING: i2c bus claimed by another goroutine, continuing anyway")
	}

	if err := d.initDMPLocked(firmware); err != nil {
		d.bus.Release()
		return err
	}
	d.bus.Release()

	d.edge = edge
	return d.startSampler()
}

func (d *Device) initDMPLocked(firmware []byte) error {
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.identify(); err != nil {
		return err
	}
	if err := d.loadGyroOffsets(); err != nil {
		return err
	}

	d.dmpOn = true

	// sensor sampling runs at the DMP maximum, the coprocessor divides
	// the output rate down itself
	if err := d.setSampleRate(200); err != nil {
		return err
	}

	if d.cfg.MagEnabled {
		if err := d.initMag(); err != nil {
			return fmt.Errorf("initialize magnetometer: %w", err)
		}
	} else if err := d.powerDownMag(); err != nil {
		return fmt.Errorf("power down magnetometer: %w", err)
	}

	// the DMP only scales correctly at 2000 DPS and 2G regardless of what
	// the user asked for
	if err := d.setGyroFSR(GyroFSR2000DPS); err != nil {
		return err
	}
	if err := d.setAccelFSR(AccelFSR2G); err != nil {
		return err
	}
	if err := d.setGyroDLPF(d.cfg.GyroDLPF); err != nil {
		return err
	}
	if err := d.setAccelDLPF(d.cfg.AccelDLPF); err != nil {
		return err
	}

	if err := d.loadDMPFirmware(firmware); err != nil {
		return err
	}
	if err := d.setDMPFIFORate(d.cfg.SampleRate); err != nil {
		return err
	}
	if err := d.setDMPOrientation(d.cfg.Orientation.dmpScalar()); err != nil {
		return err
	}
	if err := d.enableDMPFeatures(feature6xLPQuat | featureSendRawAccel | featureSendRawGyro); err != nil {
		return err
	}
	if err := d.setDMPInterruptContinuous(); err != nil {
		return err
	}
	if err := d.setDMPState(true); err != nil {
		return err
	}

	if d.cfg.MagEnabled {
		if err := d.routeMagToFIFO(); err != nil {
			return fmt.Errorf("route magnetometer to fifo: %w", err)
		}
	}
	return nil
}

// routeMagToFIFO programs the chip's I2C master to fetch 7 bytes from the
// AK8963 every sample and append them to the FIFO via slave 0.
func (d *Device) routeMagToFIFO() error {
	if err := d.writeReg(regFIFOEn, bitFIFOSlv0); err != nil {
		return err
	}
	// master enabled, wait-for-external-sensor, 400kHz
	if err := d.writeReg(regI2CMstCtrl, 0x8D); err != nil {
		return err
	}
	// slave 0 reads from the magnetometer address
	if err := d.writeReg(regI2CSlv0Addr, 0x80|byte(MagAddr)); err != nil {
		return err
	}
	if err := d.writeReg(regI2CSlv0Reg, magXoutL); err != nil {
		return err
	}
	// enable, 7 byte transfers
	if err := d.writeReg(regI2CSlv0Ctrl, 0x87); err != nil {
		return err
	}
	d.packetLen += 7
	return nil
}

// writeMem writes to DMP memory, refusing to cross a bank boundary in one
// transfer. The DMP memory is only accessible while the chip is awake.
func (d *Device) writeMem(addr uint16, data []byte) error {
	if int(addr&0xFF)+len(data) > dmpBankSize {
		return fmt.Errorf("dmp memory write at 0x%04X crosses bank boundary", addr)
	}
	if err := d.bus.WriteBytes(d.cfg.Addr, regBankSel, []byte{byte(addr >> 8), byte(addr & 0xFF)}); err != nil {
		return err
	}
	return d.bus.WriteBytes(d.cfg.Addr, regMemRW, data)
}

func (d *Device) readMem(addr uint16, buf []byte) error {
	if int(addr&0xFF)+len(buf) > dmpBankSize {
		return fmt.Errorf("dmp memory read at 0x%04X crosses bank boundary", addr)
	}
	if err := d.bus.WriteBytes(d.cfg.Addr, regBankSel, []byte{byte(addr >> 8), byte(addr & 0xFF)}); err != nil {
		return err
	}
	return d.bus.ReadBytes(d.cfg.Addr, regMemRW, buf)
}

// loadDMPFirmware writes the firmware image in 16 byte chunks, reading
// each chunk back to catch corruption, then sets the program start address.
func (d *Device) loadDMPFirmware(firmware []byte) error {
	if len(firmware) != dmpCodeSize {
		return fmt.Errorf("dmp firmware is %d bytes, want %d", len(firmware), dmpCodeSize)
	}
	verify := make([]byte, dmpLoadChunk)
	for off := 0; off < len(firmware); off += dmpLoadChunk {
		end := off + dmpLoadChunk
		if end > len(firmware) {
			end = len(firmware)
		}
		chunk := firmware[off:end]
		if err := d.writeMem(uint16(off), chunk); err != nil {
			return fmt.Errorf("dmp firmware write at 0x%04X: %w", off, err)
		}
		if err := d.readMem(uint16(off), verify[:len(chunk)]); err != nil {
			return fmt.Errorf("dmp firmware read-back at 0x%04X: %w", off, err)
		}
		if !bytes.Equal(chunk, verify[:len(chunk)]) {
			return fmt.Errorf("%w at 0x%04X", ErrFirmwareVerify, off)
		}
	}
	start := []byte{dmpStartAddr >> 8, dmpStartAddr & 0xFF}
	if err := d.bus.WriteBytes(d.cfg.Addr, regPrgmStartH, start); err != nil {
		return fmt.Errorf("set dmp program start: %w", err)
	}
	return nil
}

// setDMPOrientation pushes the chip-to-body axis remap and signs into the
// firmware.
func (d *Device) setDMPOrientation(orient uint16) error {
	gyroAxes := [3]byte{0x4C, 0xCD, 0x6C}
	accelAxes := [3]byte{0x0C, 0xC9, 0x2C}
	gyroSign := [3]byte{0x36, 0x56, 0x76}
	accelSign := [3]byte{0x26, 0x46, 0x66}

	gyroRegs := []byte{
		gyroAxes[orient&3],
		gyroAxes[(orient>>3)&3],
		gyroAxes[(orient>>6)&3],
	}
	accelRegs := []byte{
		accelAxes[orient&3],
		accelAxes[(orient>>3)&3],
		accelAxes[(orient>>6)&3],
	}
	if err := d.writeMem(fcfg1, gyroRegs); err != nil {
		return err
	}
	if err := d.writeMem(fcfg2, accelRegs); err != nil {
		return err
	}

	gyroRegs = []byte{gyroSign[0], gyroSign[1], gyroSign[2]}
	accelRegs = []byte{accelSign[0], accelSign[1], accelSign[2]}
	if orient&4 != 0 {
		gyroRegs[0] |= 1
		accelRegs[0] |= 1
	}
	if orient&0x20 != 0 {
		gyroRegs[1] |= 1
		accelRegs[1] |= 1
	}
	if orient&0x100 != 0 {
		gyroRegs[2] |= 1
		accelRegs[2] |= 1
	}
	if err := d.writeMem(fcfg3, gyroRegs); err != nil {
		return err
	}
	return d.writeMem(fcfg7, accelRegs)
}

// setDMPFIFORate sets the coprocessor output divider from its fixed 200Hz
// internal rate.
func (d *Device) setDMPFIFORate(rate int) error {
	if rate > 200 {
		return fmt.Errorf("dmp fifo rate %d exceeds 200Hz", rate)
	}
	div := uint16(200/rate - 1)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], div)
	if err := d.writeMem(dD022, buf[:]); err != nil {
		return fmt.Errorf("write dmp rate divider: %w", err)
	}
	trailer := []byte{0xFE, 0xF2, 0xAB, 0xC4, 0xAA, 0xF1, 0xDF, 0xDF, 0xBB, 0xAF, 0xDF, 0xDF}
	if err := d.writeMem(cfg6, trailer); err != nil {
		return fmt.Errorf("write dmp rate trailer: %w", err)
	}
	return nil
}

// enableDMPFeatures turns firmware features on or off per the mask and
// recomputes the FIFO packet length.
func (d *Device) enableDMPFeatures(mask int) error {
	// integration scale factor
	var sf [4]byte
	binary.BigEndian.PutUint32(sf[:], uint32(gyroSF))
	if err := d.writeMem(dD0104, sf[:]); err != nil {
		return err
	}

	// which sensor data accompanies each packet
	send := make([]byte, 10)
	send[0] = 0xA3
	if mask&featureSendRawAccel != 0 {
		send[1], send[2], send[3] = 0xC0, 0xC8, 0xC2
	} else {
		send[1], send[2], send[3] = 0xA3, 0xA3, 0xA3
	}
	if mask&featureSendAnyGyro != 0 {
		send[4], send[5], send[6] = 0xC4, 0xCC, 0xC6
	} else {
		send[4], send[5], send[6] = 0xA3, 0xA3, 0xA3
	}
	send[7], send[8], send[9] = 0xA3, 0xA3, 0xA3
	if err := d.writeMem(cfg15, send); err != nil {
		return err
	}

	// no gesture data
	if err := d.writeMem(cfg27, []byte{0xD8}); err != nil {
		return err
	}

	if err := d.enableDMPGyroCal(mask&featureGyroCal != 0); err != nil {
		return err
	}

	if mask&featureSendAnyGyro != 0 {
		var regs []byte
		if mask&featureSendCalGyro != 0 {
			regs = []byte{0xB2, 0x8B, 0xB6, 0x9B}
		} else {
			regs = []byte{0xC0, 0x80, 0xC2, 0x90}
		}
		if err := d.writeMem(cfgGyroRawData, regs); err != nil {
			return err
		}
	}

	// tap and android orientation features stay off
	if err := d.writeMem(cfg20, []byte{0xD8}); err != nil {
		return err
	}
	if err := d.writeMem(cfgAndroidOrient, []byte{0xD8}); err != nil {
		return err
	}

	if err := d.enableDMPLPQuat(mask&featureLPQuat != 0); err != nil {
		return err
	}
	if err := d.enableDMP6xLPQuat(mask&feature6xLPQuat != 0); err != nil {
		return err
	}

	if err := d.resetFIFO(); err != nil {
		return err
	}

	d.packetLen = 0
	if mask&featureSendRawAccel != 0 {
		d.packetLen += 6
	}
	if mask&featureSendAnyGyro != 0 {
		d.packetLen += 6
	}
	if mask&(featureLPQuat|feature6xLPQuat) != 0 {
		d.packetLen += 16
	}
	return nil
}

// enableDMPGyroCal toggles the firmware's built-in gyro bias tracker. It
// suits phones but fights control loops, so it stays off here in favor of
// the explicit calibration routine.
func (d *Device) enableDMPGyroCal(enable bool) error {
	if enable {
		return d.writeMem(cfgMotionBias, []byte{0xB8, 0xAA, 0xB3, 0x8D, 0xB4, 0x98, 0x0D, 0x35, 0x5D})
	}
	return d.writeMem(cfgMotionBias, []byte{0xB8, 0xAA, 0xAA, 0xAA, 0xB0, 0x88, 0xC3, 0xC5, 0xC7})
}

// enableDMP6xLPQuat selects quaternion filtering from both gyro and accel.
func (d *Device) enableDMP6xLPQuat(enable bool) error {
	regs := []byte{0xA3, 0xA3, 0xA3, 0xA3}
	if enable {
		regs = []byte{0x20, 0x28, 0x30, 0x38}
	}
	return d.writeMem(cfg8, regs)
}

// enableDMPLPQuat selects gyro-only quaternion filtering. Only the disable
// path is supported; the 6-axis variant is what this driver runs.
func (d *Device) enableDMPLPQuat(enable bool) error {
	if enable {
		return fmt.Errorf("gyro-only quaternion mode not supported, use the 6-axis mode")
	}
	return d.writeMem(cfgLPQuat, []byte{0x8B, 0x8B, 0x8B, 0x8B})
}

// setDMPInterruptContinuous configures the firmware to raise an interrupt
// on every sample rather than only on gestures.
func (d *Device) setDMPInterruptContinuous() error {
	regs := []byte{0xD8, 0xB1, 0xB9, 0xF3, 0x8B, 0xA3, 0x91, 0xB6, 0x09, 0xB4, 0xD9}
	return d.writeMem(cfgFIFOOnEvent, regs)
}

// setIntEnable switches the DMP interrupt on the INT line, also clearing
// FIFO_EN so only the DMP feeds the FIFO.
func (d *Device) setIntEnable(enable bool) error {
	var v byte
	if enable {
		v = bitDMPIntEn
	}
	if err := d.writeReg(regIntEnable, v); err != nil {
		return err
	}
	return d.writeReg(regFIFOEn, 0)
}

// setSampleRate sets the sensor sample divider off the 1kHz internal clock.
func (d *Device) setSampleRate(rate int) error {
	if rate > 1000 || rate < 4 {
		return fmt.Errorf("sample rate %d out of range 4-1000", rate)
	}
	return d.writeReg(regSmplrtDiv, byte(1000/rate-1))
}

// setDMPState turns the DMP pipeline on or off. Enabling disables bypass,
// drains the FIFO and arms the interrupt.
func (d *Device) setDMPState(enable bool) error {
	if enable {
		if err := d.setIntEnable(false); err != nil {
			return err
		}
		if err := d.setBypass(false); err != nil {
			return err
		}
		if err := d.writeReg(regFIFOEn, 0); err != nil {
			return err
		}
		if err := d.setIntEnable(true); err != nil {
			return err
		}
		return d.resetFIFO()
	}
	if err := d.setIntEnable(false); err != nil {
		return err
	}
	if err := d.writeReg(regFIFOEn, 0); err != nil {
		return err
	}
	return d.resetFIFO()
}

// resetFIFO stops the interrupt, resets the FIFO and DMP, and starts them
// again. Used at startup and whenever the FIFO contents stop making sense.
func (d *Device) resetFIFO() error {
	if err := d.writeReg(regIntEnable, 0); err != nil {
		return err
	}
	if err := d.writeReg(regFIFOEn, 0); err != nil {
		return err
	}

	if err := d.writeReg(regUserCtrl, bitFIFORst|bitDMPRst); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	userCtrl := byte(bitDMPEn | bitFIFOEn)
	if d.cfg.MagEnabled {
		userCtrl |= bitI2CMstEn
	}
	if err := d.writeReg(regUserCtrl, userCtrl); err != nil {
		return err
	}

	if d.cfg.MagEnabled {
		if err := d.writeReg(regFIFOEn, bitFIFOSlv0); err != nil {
			return err
		}
	} else if err := d.writeReg(regFIFOEn, 0); err != nil {
		return err
	}

	if d.dmpOn {
		return d.writeReg(regIntEnable, bitDMPIntEn)
	}
	return d.writeReg(regIntEnable, 0)
}

// dmpScalar encodes the mounting orientation matrix for the firmware. Each
// 3-bit field holds one row: axis index in the low two bits, sign in the
// third.
func (o Orientation) dmpScalar() uint16 {
	m := o.matrix()
	return rowScalar(m[0:3]) | rowScalar(m[3:6])<<3 | rowScalar(m[6:9])<<6
}

func (o Orientation) matrix() [9]int8 {
	switch o {
	case OrientZDown:
		return [9]int8{-1, 0, 0, 0, 1, 0, 0, 0, -1}
	case OrientXUp:
		return [9]int8{0, 0, -1, 0, 1, 0, 1, 0, 0}
	case OrientXDown:
		return [9]int8{0, 0, 1, 0, 1, 0, -1, 0, 0}
	case OrientYUp:
		return [9]int8{1, 0, 0, 0, 0, -1, 0, 1, 0}
	case OrientYDown:
		return [9]int8{1, 0, 0, 0, 0, 1, 0, -1, 0}
	case OrientXForward:
		return [9]int8{0, -1, 0, 1, 0, 0, 0, 0, 1}
	case OrientXBack:
		return [9]int8{0, 1, 0, -1, 0, 0, 0, 0, 1}
	default:
		return [9]int8{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
}

func rowScalar(row []int8) uint16 {
	switch {
	case row[0] > 0:
		return 0
	case row[0] < 0:
		return 4
	case row[1] > 0:
		return 1
	case row[1] < 0:
		return 5
	case row[2] > 0:
		return 2
	case row[2] < 0:
		return 6
	}
	return 7
}
