// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import "fmt"

// AccelFSR is the accelerometer full scale range in g.
type AccelFSR int

const (
	AccelFSR2G  AccelFSR = 2
	AccelFSR4G  AccelFSR = 4
	AccelFSR8G  AccelFSR = 8
	AccelFSR16G AccelFSR = 16
)

// GyroFSR is the gyroscope full scale range in degrees per second.
type GyroFSR int

const (
	GyroFSR250DPS  GyroFSR = 250
	GyroFSR500DPS  GyroFSR = 500
	GyroFSR1000DPS GyroFSR = 1000
	GyroFSR2000DPS GyroFSR = 2000
)

// DLPF is a digital low pass filter cutoff in Hz. DLPFOff bypasses the
// filter.
type DLPF int

const (
	DLPFOff   DLPF = 0
	DLPF5Hz   DLPF = 5
	DLPF10Hz  DLPF = 10
	DLPF20Hz  DLPF = 20
	DLPF41Hz  DLPF = 41
	DLPF92Hz  DLPF = 92
	DLPF184Hz DLPF = 184
)

// Orientation describes how the chip is mounted relative to the vehicle
// frame. It selects the DMP orientation matrix and the magnetometer remap.
type Orientation int

const (
	OrientZUp Orientation = iota
	OrientZDown
	OrientXUp
	OrientXDown
	OrientYUp
	OrientYDown
	OrientXForward
	OrientXBack
)

// ParseOrientation maps the config file spelling to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "Z_UP":
		return OrientZUp, nil
	case "Z_DOWN":
		return OrientZDown, nil
	case "X_UP":
		return OrientXUp, nil
	case "X_DOWN":
		return OrientXDown, nil
	case "Y_UP":
		return OrientYUp, nil
	case "Y_DOWN":
		return OrientYDown, nil
	case "X_FORWARD":
		return OrientXForward, nil
	case "X_BACK":
		return OrientXBack, nil
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

func (o Orientation) String() string {
	switch o {
	case OrientZUp:
		return "Z_UP"
	case OrientZDown:
		return "Z_DOWN"
	case OrientXUp:
		return "X_UP"
	case OrientXDown:
		return "X_DOWN"
	case OrientYUp:
		return "Y_UP"
	case OrientYDown:
		return "Y_DOWN"
	case OrientXForward:
		return "X_FORWARD"
	case OrientXBack:
		return "X_BACK"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// Config selects the sensor ranges, filtering and DMP behavior for one
// device session.
type Config struct {
	Addr      uint16
	AccelFSR  AccelFSR
	GyroFSR   GyroFSR
	GyroDLPF  DLPF
	AccelDLPF DLPF

	// SampleRate is the DMP output rate in Hz. It must be between 4 and
	// 200 and divide 200 evenly.
	SampleRate int

	Orientation         Orientation
	MagEnabled          bool
	CompassTimeConstant float64 // seconds
	FirmwarePath        string
	CalibrationDir      string

	// SamplerPriority is the SCHED_FIFO priority for the sampler thread.
	// Zero means one below the maximum.
	SamplerPriority int

	// LogWarnings enables log output for degraded FIFO reads and bus
	// contention. Off by default because these fire under load.
	LogWarnings bool
}

// DefaultConfig returns the configuration used when keys are absent from
// the config file.
func DefaultConfig() Config {
	return Config{
		Addr:                DefaultAddr,
		AccelFSR:            AccelFSR4G,
		GyroFSR:             GyroFSR1000DPS,
		GyroDLPF:            DLPF92Hz,
		AccelDLPF:           DLPF92Hz,
		SampleRate:          100,
		Orientation:         OrientZUp,
		CompassTimeConstant: 5.0,
		CalibrationDir:      "./calibration",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.AccelFSR {
	case AccelFSR2G, AccelFSR4G, AccelFSR8G, AccelFSR16G:
	default:
		return fmt.Errorf("invalid accel full scale range %d g", c.AccelFSR)
	}
	switch c.GyroFSR {
	case GyroFSR250DPS, GyroFSR500DPS, GyroFSR1000DPS, GyroFSR2000DPS:
	default:
		return fmt.Errorf("invalid gyro full scale range %d dps", c.GyroFSR)
	}
	if _, err := dlpfCode(c.GyroDLPF, false); err != nil {
		return fmt.Errorf("gyro filter: %w", err)
	}
	if _, err := dlpfCode(c.AccelDLPF, true); err != nil {
		return fmt.Errorf("accel filter: %w", err)
	}
	if c.SampleRate < 4 || c.SampleRate > 200 || 200%c.SampleRate != 0 {
		return fmt.Errorf("sample rate %d Hz must be 4-200 and divide 200", c.SampleRate)
	}
	if c.Orientation < OrientZUp || c.Orientation > OrientXBack {
		return fmt.Errorf("invalid orientation %d", int(c.Orientation))
	}
	if c.CompassTimeConstant <= 0.1 {
		return fmt.Errorf("compass time constant %f must be greater than 0.1s", c.CompassTimeConstant)
	}
	if c.SamplerPriority < 0 || c.SamplerPriority > 99 {
		return fmt.Errorf("sampler priority %d out of range", c.SamplerPriority)
	}
	return nil
}

// gyroFSRBits returns the FS_SEL field for GYRO_CONFIG.
func (c *Config) gyroFSRBits() byte {
	switch c.GyroFSR {
	case GyroFSR250DPS:
		return 0 << 3
	case GyroFSR500DPS:
		return 1 << 3
	case GyroFSR1000DPS:
		return 2 << 3
	default:
		return 3 << 3
	}
}

func (c *Config) accelFSRBits() byte {
	switch c.AccelFSR {
	case AccelFSR2G:
		return 0 << 3
	case AccelFSR4G:
		return 1 << 3
	case AccelFSR8G:
		return 2 << 3
	default:
		return 3 << 3
	}
}

// AccelToMS2 converts raw accelerometer counts to m/s².
func (c *Config) AccelToMS2() float64 {
	return 9.807 * float64(c.AccelFSR) / 32768.0
}

// GyroToDegs converts raw gyro counts to degrees per second.
func (c *Config) GyroToDegs() float64 {
	return float64(c.GyroFSR) / 32768.0
}

// dlpfCode maps a cutoff frequency to the register field. The accel has a
// different code for the bypass setting than the gyro.
func dlpfCode(hz DLPF, accel bool) (byte, error) {
	switch hz {
	case DLPFOff:
		if accel {
			return 7, nil
		}
		return 1, nil
	case DLPF184Hz:
		return 1, nil
	case DLPF92Hz:
		return 2, nil
	case DLPF41Hz:
		return 3, nil
	case DLPF20Hz:
		return 4, nil
	case DLPF10Hz:
		return 5, nil
	case DLPF5Hz:
		return 6, nil
	}
	return 0, fmt.Errorf("unsupported low pass cutoff %d Hz", hz)
}
