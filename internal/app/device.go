// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/attitude_computer/internal/bus"
	"github.com/relabs-tech/attitude_computer/internal/config"
	"github.com/relabs-tech/attitude_computer/internal/mpu"
)

// deviceConfig maps the application configuration onto a sensor session
// configuration.
func deviceConfig(cfg *config.Config) (mpu.Config, error) {
	orient, err := mpu.ParseOrientation(cfg.IMUOrientation)
	if err != nil {
		return mpu.Config{}, fmt.Errorf("IMU_ORIENTATION: %w", err)
	}
	dc := mpu.DefaultConfig()
	dc.AccelFSR = mpu.AccelFSR(cfg.IMUAccelFSR)
	dc.GyroFSR = mpu.GyroFSR(cfg.IMUGyroFSR)
	dc.GyroDLPF = mpu.DLPF(cfg.IMUGyroDLPF)
	dc.AccelDLPF = mpu.DLPF(cfg.IMUAccelDLPF)
	dc.SampleRate = cfg.IMUSampleRate
	dc.Orientation = orient
	dc.MagEnabled = cfg.MagEnabled
	dc.CompassTimeConstant = cfg.CompassTimeSecs
	dc.FirmwarePath = cfg.DMPFirmwarePath
	dc.CalibrationDir = cfg.CalibrationDir
	dc.SamplerPriority = cfg.SamplerPriority
	dc.LogWarnings = cfg.LogFIFOWarnings
	return dc, nil
}

// openDevice opens the configured I2C bus and builds the sensor session.
// The caller owns the returned bus and closes it after powering the device
// off.
func openDevice(cfg *config.Config) (*mpu.Device, bus.Bus, error) {
	dc, err := deviceConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	b, err := bus.Open(cfg.I2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	dev, err := mpu.New(b, dc)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return dev, b, nil
}
