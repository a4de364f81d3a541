// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided calibration for the attitude computer:
//  1. Gyro: static bias capture on a stable surface, retried while noisy.
//  2. Mag: tumble the device while an ellipsoid is fit to the field
//     measurements (hard-iron offset + per-axis scale).
//
// Results are written as plain text files under the configured calibration
// directory and picked up automatically by the producer on startup.
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/attitude_computer/internal/app"
	"github.com/relabs-tech/attitude_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./attitude_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibration(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
