// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/attitude_computer/internal/ahrs"
	"github.com/relabs-tech/attitude_computer/internal/cal"
)

const (
	// gyroCalStdDevMax is the per-axis noise ceiling in raw counts; above
	// it the device was moving and the pass is retried.
	gyroCalStdDevMax = 50.0
	// gyroCalOffsetMax rejects a bias that is implausibly large.
	gyroCalOffsetMax = 500.0
	// gyroCalAttempts bounds the retries before giving up.
	gyroCalAttempts = 10
)

// CalibrateGyro samples the stationary gyro, averages out the steady state
// bias and persists it. The device must sit still on a solid surface; a
// noisy pass is retried up to gyroCalAttempts times. The context cancels
// between passes.
func (d *Device) CalibrateGyro(ctx context.Context, status func(string)) (cal.GyroCal, error) {
	if status == nil {
		status = func(string) {}
	}
	if !d.bus.Claim() {
		return cal.GyroCal{}, fmt.Errorf("i2c bus claimed by another goroutine, aborting calibration")
	}
	defer d.bus.Release()

	if err := d.reset(); err != nil {
		return cal.GyroCal{}, err
	}

	// wake the chip on the internal clock with everything else off
	if err := d.writeReg(regPwrMgmt1, 0x01); err != nil {
		return cal.GyroCal{}, err
	}
	if err := d.writeReg(regPwrMgmt2, 0x00); err != nil {
		return cal.GyroCal{}, err
	}
	time.Sleep(200 * time.Millisecond)

	for _, w := range [][2]byte{
		{regIntEnable, 0x00},
		{regFIFOEn, 0x00},
		{regPwrMgmt1, 0x00},
		{regI2CMstCtrl, 0x00},
		{regUserCtrl, 0x00},
		{regUserCtrl, bitFIFORst | bitDMPRst},
	} {
		if err := d.writeReg(w[0], w[1]); err != nil {
			return cal.GyroCal{}, err
		}
	}
	time.Sleep(15 * time.Millisecond)

	// 184Hz filter, 200Hz sampling, most sensitive ranges
	for _, w := range [][2]byte{
		{regConfig, 0x01},
		{regSmplrtDiv, 0x04},
		{regGyroConfig, 0x00},
		{regAccelConfig, 0x00},
	} {
		if err := d.writeReg(w[0], w[1]); err != nil {
			return cal.GyroCal{}, err
		}
	}

	for attempt := 1; attempt <= gyroCalAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return cal.GyroCal{}, err
		}

		g, ok, err := d.collectGyroBias(ctx)
		if err != nil {
			return cal.GyroCal{}, err
		}
		if !ok {
			status("gyro data too noisy, put me down on a solid surface")
			continue
		}

		if err := cal.SaveGyro(d.cfg.CalibrationDir, g); err != nil {
			return cal.GyroCal{}, err
		}
		return g, nil
	}
	return cal.GyroCal{}, fmt.Errorf("%w after %d attempts", ErrCalibrationNoisy, gyroCalAttempts)
}

// collectGyroBias runs one 0.4 second FIFO capture and reports the mean
// bias, with ok=false when the data was too noisy or out of bounds.
func (d *Device) collectGyroBias(ctx context.Context) (cal.GyroCal, bool, error) {
	if err := d.writeReg(regUserCtrl, bitFIFOEn); err != nil {
		return cal.GyroCal{}, false, err
	}
	if err := d.writeReg(regFIFOEn, bitFIFOGyroX|bitFIFOGyroY|bitFIFOGyroZ); err != nil {
		return cal.GyroCal{}, false, err
	}

	// 6 bytes per sample at 200Hz, the 512 byte FIFO fills in 0.4s
	select {
	case <-ctx.Done():
		return cal.GyroCal{}, false, ctx.Err()
	case <-time.After(400 * time.Millisecond):
	}

	if err := d.writeReg(regFIFOEn, 0x00); err != nil {
		return cal.GyroCal{}, false, err
	}
	count, err := d.bus.ReadWord(d.cfg.Addr, regFIFOCountH)
	if err != nil {
		return cal.GyroCal{}, false, err
	}
	samples := int(count) / 6
	if samples == 0 {
		return cal.GyroCal{}, false, nil
	}

	axes := [3][]float64{}
	for i := range axes {
		axes[i] = make([]float64, 0, samples)
	}
	var buf [6]byte
	for i := 0; i < samples; i++ {
		if err := d.bus.ReadBytes(d.cfg.Addr, regFIFORW, buf[:]); err != nil {
			return cal.GyroCal{}, false, fmt.Errorf("read calibration fifo: %w", err)
		}
		for k := 0; k < 3; k++ {
			axes[k] = append(axes[k], float64(int16(binary.BigEndian.Uint16(buf[2*k:]))))
		}
	}

	var mean [3]float64
	for k := 0; k < 3; k++ {
		mean[k] = stat.Mean(axes[k], nil)
		if stat.StdDev(axes[k], nil) > gyroCalStdDevMax {
			return cal.GyroCal{}, false, nil
		}
		if math.Abs(mean[k]) > gyroCalOffsetMax {
			return cal.GyroCal{}, false, nil
		}
	}
	return cal.GyroCal{
		X: int16(mean[0]),
		Y: int16(mean[1]),
		Z: int16(mean[2]),
	}, true, nil
}

const (
	magCalSamples = 250
	magCalRateHz  = 15
	// magCalTargetUT is the target sphere radius the scales map onto.
	magCalTargetUT = 70.0
)

// CalibrateMag collects magnetometer data while the user tumbles the device
// through all orientations, fits an ellipsoid to the field measurements and
// persists the hard-iron offsets and scales. status receives periodic
// encouragement for the operator.
func (d *Device) CalibrateMag(ctx context.Context, status func(string)) (cal.MagCal, error) {
	if status == nil {
		status = func(string) {}
	}
	if !d.bus.Claim() {
		return cal.MagCal{}, fmt.Errorf("i2c bus claimed by another goroutine, aborting calibration")
	}

	d.cfg.MagEnabled = true

	// the claim is held through the whole capture and dropped after the
	// sensor powers off, the fit itself does not touch the bus
	points, err := func() ([][3]float64, error) {
		defer d.bus.Release()

		if err := d.reset(); err != nil {
			return nil, err
		}
		if err := d.identify(); err != nil {
			return nil, err
		}
		if err := d.initMag(); err != nil {
			return nil, err
		}

		// collect uncorrected data, the fit replaces the stored correction
		d.magCal = cal.UnitMagCal()

		points := make([][3]float64, 0, magCalSamples)
		tick := time.NewTicker(time.Second / magCalRateHz)
		defer tick.Stop()
		for len(points) < magCalSamples {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-tick.C:
			}

			ut, fresh, err := d.ReadMag()
			if err != nil {
				return nil, fmt.Errorf("read magnetometer: %w", err)
			}
			if !fresh {
				continue
			}
			if ut[0] == 0 && ut[1] == 0 && ut[2] == 0 {
				return nil, fmt.Errorf("retrieved all zeros from magnetometer")
			}
			points = append(points, ut)

			switch len(points) % (magCalRateHz * 4) {
			case magCalRateHz * 2:
				status("keep spinning")
			case 0:
				status("you're doing great")
			}
		}

		if err := d.PowerOff(); err != nil {
			log.Printf("WARNING: powering off after calibration: %v", err)
		}
		return points, nil
	}()
	if err != nil {
		return cal.MagCal{}, err
	}
	status("calculating calibration constants")

	fit, err := ahrs.FitEllipsoid(points)
	if err != nil {
		return cal.MagCal{}, fmt.Errorf("fit ellipsoid: %w", err)
	}

	for i := 0; i < 3; i++ {
		if math.Abs(fit.Center[i]) > 200 {
			return cal.MagCal{}, fmt.Errorf("%w: center %v", ErrBadEllipsoidFit, fit.Center)
		}
		if fit.Radii[i] < 5 || fit.Radii[i] > 200 {
			return cal.MagCal{}, fmt.Errorf("%w: radii %v", ErrBadEllipsoidFit, fit.Radii)
		}
	}

	m := cal.MagCal{Offsets: fit.Center}
	for i := 0; i < 3; i++ {
		m.Scales[i] = magCalTargetUT / fit.Radii[i]
	}
	if err := cal.SaveMag(d.cfg.CalibrationDir, m); err != nil {
		return cal.MagCal{}, err
	}
	return m, nil
}
