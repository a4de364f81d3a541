// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"fmt"
	"os"
)

// loadFirmwareFile reads the InvenSense DMP firmware blob. The image is
// proprietary so it ships separately and its path comes from configuration.
func loadFirmwareFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("dmp firmware path not configured")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dmp firmware: %w", err)
	}
	if len(blob) != dmpCodeSize {
		return nil, fmt.Errorf("dmp firmware %s is %d bytes, want %d", path, len(blob), dmpCodeSize)
	}
	return blob, nil
}
