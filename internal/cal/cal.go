// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cal persists sensor calibration constants as plain text files,
// one decimal value per line, so they survive across sessions and remain
// hand-editable in the field.
package cal

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	gyroFile = "gyro.cal"
	magFile  = "mag.cal"
)

// GyroCal holds steady-state gyro bias in raw LSB counts.
type GyroCal struct {
	X, Y, Z int16
}

// MagCal holds the hard-iron correction: offsets in µT and the per-axis
// scales mapping the fitted ellipsoid onto the target sphere.
type MagCal struct {
	Offsets [3]float64
	Scales  [3]float64
}

// UnitMagCal is the correction applied when no calibration file exists.
func UnitMagCal() MagCal {
	return MagCal{Scales: [3]float64{1, 1, 1}}
}

// SaveGyro writes the gyro bias file, creating dir if needed.
func SaveGyro(dir string, g GyroCal) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calibration directory: %w", err)
	}
	body := fmt.Sprintf("%d\n%d\n%d\n", g.X, g.Y, g.Z)
	if err := os.WriteFile(filepath.Join(dir, gyroFile), []byte(body), 0o644); err != nil {
		return fmt.Errorf("write gyro calibration: %w", err)
	}
	return nil
}

// LoadGyro reads the gyro bias file. A missing file is not an error: zero
// bias is returned along with found=false so the caller can warn.
func LoadGyro(dir string) (g GyroCal, found bool, err error) {
	raw, err := os.ReadFile(filepath.Join(dir, gyroFile))
	if os.IsNotExist(err) {
		return GyroCal{}, false, nil
	}
	if err != nil {
		return GyroCal{}, false, fmt.Errorf("read gyro calibration: %w", err)
	}
	if _, err := fmt.Sscanf(string(raw), "%d\n%d\n%d\n", &g.X, &g.Y, &g.Z); err != nil {
		return GyroCal{}, false, fmt.Errorf("parse gyro calibration: %w", err)
	}
	return g, true, nil
}

// SaveMag writes the magnetometer hard-iron correction file, creating dir
// if needed.
func SaveMag(dir string, m MagCal) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calibration directory: %w", err)
	}
	body := fmt.Sprintf("%f\n%f\n%f\n%f\n%f\n%f\n",
		m.Offsets[0], m.Offsets[1], m.Offsets[2],
		m.Scales[0], m.Scales[1], m.Scales[2])
	if err := os.WriteFile(filepath.Join(dir, magFile), []byte(body), 0o644); err != nil {
		return fmt.Errorf("write mag calibration: %w", err)
	}
	return nil
}

// LoadMag reads the magnetometer correction file. A missing file yields the
// unit correction and found=false.
func LoadMag(dir string) (m MagCal, found bool, err error) {
	raw, err := os.ReadFile(filepath.Join(dir, magFile))
	if os.IsNotExist(err) {
		return UnitMagCal(), false, nil
	}
	if err != nil {
		return UnitMagCal(), false, fmt.Errorf("read mag calibration: %w", err)
	}
	_, err = fmt.Sscanf(string(raw), "%f\n%f\n%f\n%f\n%f\n%f\n",
		&m.Offsets[0], &m.Offsets[1], &m.Offsets[2],
		&m.Scales[0], &m.Scales[1], &m.Scales[2])
	if err != nil {
		return UnitMagCal(), false, fmt.Errorf("parse mag calibration: %w", err)
	}
	// a zero scale means the value was never set; never multiply data by zero
	for i := range m.Scales {
		if m.Scales[i] == 0 {
			m.Scales[i] = 1.0
		}
	}
	return m, true, nil
}
