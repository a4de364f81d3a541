// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import "errors"

var (
	// ErrWrongDevice means WHO_AM_I did not return the MPU-9250 identity.
	ErrWrongDevice = errors.New("unexpected WHO_AM_I response")

	// ErrNotDMPMode is returned by FIFO operations before InitDMP ran.
	ErrNotDMPMode = errors.New("device is not in DMP mode")

	// ErrFirmwareVerify means a DMP memory read-back did not match what
	// was written.
	ErrFirmwareVerify = errors.New("dmp firmware verification failed")

	// ErrMagDisabled is returned when reading the magnetometer without
	// enabling it in the config first.
	ErrMagDisabled = errors.New("magnetometer not enabled")

	// ErrMagOverflow means the magnetometer saturated, usually from a
	// nearby field source. The reading was discarded.
	ErrMagOverflow = errors.New("magnetometer saturated")

	// ErrCalibrationNoisy means the sensor would not settle within the
	// allowed number of calibration attempts.
	ErrCalibrationNoisy = errors.New("calibration data too noisy")

	// ErrBadEllipsoidFit means the magnetometer field fit produced an
	// implausible center or radius and nothing was persisted.
	ErrBadEllipsoidFit = errors.New("fitted ellipsoid out of bounds")
)
