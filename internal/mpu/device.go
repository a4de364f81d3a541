// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu drives the InvenSense MPU-9250 over I2C, either by polling
// the sensor registers directly or by running the on-chip DMP coprocessor
// which streams ready-made orientation quaternions through the FIFO.
package mpu

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/attitude_computer/internal/bus"
	"github.com/relabs-tech/attitude_computer/internal/cal"
	"github.com/relabs-tech/attitude_computer/internal/irq"
)

// Device is one MPU-9250 session. Create it with New, bring the hardware
// up with Init or InitDMP, and shut it down with PowerOff.
type Device struct {
	bus bus.Bus
	cfg Config

	accelToMS2 float64
	gyroToDegs float64

	magAdjust [3]float64
	magCal    cal.MagCal
	magReady  bool

	dmpOn     bool
	bypassOn  bool
	packetLen int

	fus fusionState

	// cur accumulates sensor data between publishes. It is owned by
	// whichever goroutine is reading the FIFO.
	cur    Sample
	latest atomic.Pointer[Sample]

	// sampler state
	edge                irq.EdgeWaiter
	onSample            func(*Sample)
	cbMu                sync.Mutex
	stopCh              chan struct{}
	doneCh              chan struct{}
	running             bool
	lastInterruptMicros atomic.Int64
	lastReadOK          atomic.Bool
}

// New validates the configuration and builds a session. No hardware is
// touched until Init or InitDMP.
func New(b bus.Bus, cfg Config) (*Device, error) {
	if cfg.Addr == 0 {
		cfg.Addr = DefaultAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mpu config: %w", err)
	}
	return &Device{
		bus:        b,
		cfg:        cfg,
		accelToMS2: cfg.AccelToMS2(),
		gyroToDegs: cfg.GyroToDegs(),
	}, nil
}

// Config returns a copy of the session configuration.
func (d *Device) Config() Config {
	return d.cfg
}

// Init sets the sensor up for direct register polling with the configured
// ranges and filters. The DMP stays off.
func (d *Device) Init() error {
	if !d.bus.Claim() {
		log.Println("WARNING: i2c bus claimed by another goroutine, continuing anyway")
	}
	defer d.bus.Release()

	if err := d.reset(); err != nil {
		return err
	}
	if err := d.identify(); err != nil {
		return err
	}
	if err := d.loadGyroOffsets(); err != nil {
		return err
	}

	// sensor self-samples at 1kHz, divider of zero keeps all of it
	if err := d.writeReg(regSmplrtDiv, 0x00); err != nil {
		return err
	}
	if err := d.setGyroFSR(d.cfg.GyroFSR); err != nil {
		return err
	}
	if err := d.setAccelFSR(d.cfg.AccelFSR); err != nil {
		return err
	}
	if err := d.setGyroDLPF(d.cfg.GyroDLPF); err != nil {
		return err
	}
	if err := d.setAccelDLPF(d.cfg.AccelDLPF); err != nil {
		return err
	}

	if d.cfg.MagEnabled {
		if err := d.initMag(); err != nil {
			return fmt.Errorf("initialize magnetometer: %w", err)
		}
	} else if err := d.powerDownMag(); err != nil {
		return fmt.Errorf("power down magnetometer: %w", err)
	}
	return nil
}

// reset restores the power management registers to defaults and waits out
// the restart. Writes are retried once since the chip can hold the bus
// during its own reset.
func (d *Device) reset() error {
	if err := d.writeReg(regPwrMgmt1, bitHReset); err != nil {
		time.Sleep(10 * time.Millisecond)
		if err := d.writeReg(regPwrMgmt1, bitHReset); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := d.writeReg(regPwrMgmt1, 0); err != nil {
		time.Sleep(10 * time.Millisecond)
		if err := d.writeReg(regPwrMgmt1, 0); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (d *Device) identify() error {
	who, err := d.readReg(regWhoAmI)
	if err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if who != whoAmIValue {
		return fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrWrongDevice, who, whoAmIValue)
	}
	return nil
}

// setGyroFSR writes the full scale range and updates the conversion ratio.
func (d *Device) setGyroFSR(fsr GyroFSR) error {
	prev := d.cfg.GyroFSR
	d.cfg.GyroFSR = fsr
	if err := d.cfg.Validate(); err != nil {
		d.cfg.GyroFSR = prev
		return err
	}
	d.gyroToDegs = d.cfg.GyroToDegs()
	return d.writeReg(regGyroConfig, d.cfg.gyroFSRBits())
}

func (d *Device) setAccelFSR(fsr AccelFSR) error {
	prev := d.cfg.AccelFSR
	d.cfg.AccelFSR = fsr
	if err := d.cfg.Validate(); err != nil {
		d.cfg.AccelFSR = prev
		return err
	}
	d.accelToMS2 = d.cfg.AccelToMS2()
	return d.writeReg(regAccelConfig, d.cfg.accelFSRBits())
}

// setGyroDLPF shares a register with the FIFO overflow mode, which is kept
// at replace-oldest.
func (d *Device) setGyroDLPF(hz DLPF) error {
	code, err := dlpfCode(hz, false)
	if err != nil {
		return err
	}
	return d.writeReg(regConfig, fifoModeReplaceOld|code)
}

// setAccelDLPF shares a register with the FIFO size selection.
func (d *Device) setAccelDLPF(hz DLPF) error {
	code, err := dlpfCode(hz, true)
	if err != nil {
		return err
	}
	return d.writeReg(regAccelConfig2, bitFIFOSize1024|code)
}

// setBypass routes the auxiliary I2C lines either to the host (bypass on,
// for talking to the AK8963 directly) or to the chip's own master (bypass
// off, the DMP fetches magnetometer data itself).
func (d *Device) setBypass(on bool) error {
	var userCtrl byte
	if d.dmpOn {
		userCtrl |= bitFIFOEn
	}
	if !on {
		userCtrl |= bitI2CMstEn
	}
	if err := d.writeReg(regUserCtrl, userCtrl); err != nil {
		return err
	}
	time.Sleep(3 * time.Millisecond)

	pinCfg := byte(bitActl)
	if on {
		pinCfg |= bitBypassEn
	}
	if err := d.writeReg(regIntPinCfg, pinCfg); err != nil {
		return err
	}
	d.bypassOn = on
	return nil
}

// initMag configures the AK8963 for 16-bit continuous sampling at 100Hz and
// reads the factory sensitivity adjustment out of its fuse ROM. Bypass is
// left on so polling reads work; DMP setup turns it back off later.
func (d *Device) initMag() error {
	if err := d.setBypass(true); err != nil {
		return err
	}

	if err := d.writeMagReg(magCntl, magPowerDown); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := d.writeMagReg(magCntl, magFuseROM); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	var raw [3]byte
	if err := d.bus.ReadBytes(MagAddr, magASAX, raw[:]); err != nil {
		if berr := d.setBypass(false); berr != nil {
			log.Printf("WARNING: failed to leave bypass mode: %v", berr)
		}
		return fmt.Errorf("read sensitivity adjustment: %w", err)
	}
	for i, b := range raw {
		d.magAdjust[i] = float64(int(b)-128)/256.0 + 1.0
	}

	if err := d.writeMagReg(magCntl, magPowerDown); err != nil {
		return err
	}
	time.Sleep(100 * time.Microsecond)
	if err := d.writeMagReg(magCntl, mag16Bit|magCont2); err != nil {
		return err
	}
	time.Sleep(100 * time.Microsecond)

	mc, found, err := cal.LoadMag(d.cfg.CalibrationDir)
	if err != nil {
		return err
	}
	if !found {
		log.Println("WARNING: no magnetometer calibration data found, run the calibration tool")
	}
	d.magCal = mc
	d.magReady = true
	return nil
}

func (d *Device) powerDownMag() error {
	if err := d.setBypass(true); err != nil {
		return err
	}
	if err := d.writeMagReg(magCntl, magPowerDown); err != nil {
		return err
	}
	return d.setBypass(false)
}

// ReadAccel polls the latest accelerometer registers. The sensor
// self-samples at 1kHz.
func (d *Device) ReadAccel() (ms2 [3]float64, raw [3]int16, err error) {
	var buf [6]byte
	if err = d.bus.ReadBytes(d.cfg.Addr, regAccelXoutH, buf[:]); err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		raw[i] = int16(binary.BigEndian.Uint16(buf[2*i:]))
		ms2[i] = float64(raw[i]) * d.accelToMS2
	}
	return
}

// ReadGyro polls the latest gyroscope registers.
func (d *Device) ReadGyro() (degs [3]float64, raw [3]int16, err error) {
	var buf [6]byte
	if err = d.bus.ReadBytes(d.cfg.Addr, regGyroXoutH, buf[:]); err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		raw[i] = int16(binary.BigEndian.Uint16(buf[2*i:]))
		degs[i] = float64(raw[i]) * d.gyroToDegs
	}
	return
}

// ReadMag polls the magnetometer. It updates at 100Hz, so fresh is false
// when no new data was ready and ut is left zero.
func (d *Device) ReadMag() (ut [3]float64, fresh bool, err error) {
	if !d.cfg.MagEnabled || !d.magReady {
		err = ErrMagDisabled
		return
	}
	st1, err := d.bus.ReadByte(MagAddr, magST1)
	if err != nil {
		err = fmt.Errorf("magnetometer status (is bypass on?): %w", err)
		return
	}
	if st1&magDataReady == 0 {
		return
	}
	// 6 data bytes plus ST2, reading ST2 ends the measurement cycle
	var buf [7]byte
	if err = d.bus.ReadBytes(MagAddr, magXoutL, buf[:]); err != nil {
		return
	}
	if buf[6]&magOverflow != 0 {
		err = ErrMagOverflow
		return
	}
	var adc [3]int16
	for i := 0; i < 3; i++ {
		adc[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	ut = d.correctMag(adc)
	fresh = true
	return
}

// correctMag applies the factory sensitivity adjustment, converts to µT,
// remaps the AK8963 axes onto the accel/gyro frame, and applies the stored
// hard-iron correction.
func (d *Device) correctMag(adc [3]int16) [3]float64 {
	factory := [3]float64{
		float64(adc[1]) * d.magAdjust[1] * magRawToUT,
		float64(adc[0]) * d.magAdjust[0] * magRawToUT,
		-float64(adc[2]) * d.magAdjust[2] * magRawToUT,
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		scale := d.magCal.Scales[i]
		if scale == 0 {
			scale = 1.0
		}
		out[i] = (factory[i] - d.magCal.Offsets[i]) * scale
	}
	return out
}

// ReadTemp reads the die temperature in °C.
func (d *Device) ReadTemp() (float64, error) {
	adc, err := d.bus.ReadWord(d.cfg.Addr, regTempOutH)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	return float64(int16(adc))/333.87 + 21.0, nil
}

// Latest returns the most recently published sample, or nil before the
// first successful FIFO read.
func (d *Device) Latest() *Sample {
	return d.latest.Load()
}

// publish snapshots cur and swaps it in for readers.
func (d *Device) publish() *Sample {
	s := d.cur
	d.latest.Store(&s)
	return &s
}

// PowerOff stops the sampler, resets the chip and puts it to sleep.
func (d *Device) PowerOff() error {
	d.Stop()
	if err := d.writeReg(regPwrMgmt1, bitHReset); err != nil {
		time.Sleep(time.Millisecond)
		if err := d.writeReg(regPwrMgmt1, bitHReset); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
	}
	if err := d.writeReg(regPwrMgmt1, bitSleep); err != nil {
		time.Sleep(time.Millisecond)
		if err := d.writeReg(regPwrMgmt1, bitSleep); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
	}
	return nil
}

// loadGyroOffsets pushes the stored gyro bias into the hardware offset
// registers. Missing calibration falls back to zero bias with a warning.
func (d *Device) loadGyroOffsets() error {
	g, found, err := cal.LoadGyro(d.cfg.CalibrationDir)
	if err != nil {
		return err
	}
	if !found {
		log.Println("WARNING: no gyro calibration data found, run the calibration tool")
	}
	return d.pushGyroOffsets(g)
}

// pushGyroOffsets writes a bias to the offset registers. The hardware
// expects the negated value at quarter sensitivity (32.9 LSB per °/s).
func (d *Device) pushGyroOffsets(g cal.GyroCal) error {
	var buf [6]byte
	for i, v := range []int16{g.X, g.Y, g.Z} {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(-v/4))
	}
	if err := d.bus.WriteBytes(d.cfg.Addr, regXGOffsetH, buf[:]); err != nil {
		return fmt.Errorf("push gyro offsets: %w", err)
	}
	return nil
}

func (d *Device) writeReg(reg, val byte) error {
	return d.bus.WriteByte(d.cfg.Addr, reg, val)
}

func (d *Device) readReg(reg byte) (byte, error) {
	return d.bus.ReadByte(d.cfg.Addr, reg)
}

func (d *Device) writeMagReg(reg, val byte) error {
	return d.bus.WriteByte(MagAddr, reg, val)
}
