// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/attitude_computer/internal/config"
)

// RunCalibration walks the operator through gyro and magnetometer
// calibration on the console and stores the results under the configured
// calibration directory.
func RunCalibration() error {
	in := bufio.NewReader(os.Stdin)
	cfg := config.Get()

	dev, b, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ninterrupted, aborting calibration")
		cancel()
	}()

	fmt.Println("=== Guided Calibration (Gyro + Mag) ===")
	fmt.Printf("Results are stored under %s\n\n", cfg.CalibrationDir)

	steps := 1
	if cfg.MagEnabled {
		steps = 2
	}

	fmt.Printf("Step 1/%d: Gyro bias\n", steps)
	fmt.Println("Place the device on a stable surface and do not touch it.")
	waitEnter(in, "Press ENTER to start the gyro capture...")

	g, err := dev.CalibrateGyro(ctx, func(s string) { fmt.Println(s) })
	if err != nil {
		return fmt.Errorf("gyro calibration: %w", err)
	}
	fmt.Printf("Gyro bias (counts): X=%d Y=%d Z=%d\n", g.X, g.Y, g.Z)

	if !cfg.MagEnabled {
		fmt.Println("\nMagnetometer disabled, skipping.")
		fmt.Println("Calibration complete.")
		return dev.PowerOff()
	}

	fmt.Printf("\nStep 2/%d: Magnetometer hard iron offset and scale\n", steps)
	fmt.Println("Rotate the device slowly through all orientations.")
	fmt.Println("Move away from large metal objects and power cables if possible.")
	waitEnter(in, "Press ENTER to start the magnetometer capture...")

	m, err := dev.CalibrateMag(ctx, func(s string) { fmt.Println(s) })
	if err != nil {
		return fmt.Errorf("magnetometer calibration: %w", err)
	}
	fmt.Printf("Mag offsets (µT): X=%.2f Y=%.2f Z=%.2f\n", m.Offsets[0], m.Offsets[1], m.Offsets[2])
	fmt.Printf("Mag scales:       X=%.3f Y=%.3f Z=%.3f\n", m.Scales[0], m.Scales[1], m.Scales[2])

	fmt.Println("\nCalibration complete.")
	return nil
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	in.ReadString('\n')
	fmt.Println()
}
