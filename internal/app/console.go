// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/attitude_computer/internal/config"
	"github.com/relabs-tech/attitude_computer/internal/mpu"
)

// RunConsole polls the sensor registers directly (no DMP) and dumps readings
// to stdout until SIGINT or SIGTERM.
func RunConsole() error {
	cfg := config.Get()

	dev, b, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := dev.Init(); err != nil {
		return err
	}
	log.Printf("sensor initialized, polling every %dms", cfg.ConsoleLogInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Println("console: shutting down")
			return dev.PowerOff()
		case <-ticker.C:
		}

		accel, _, err := dev.ReadAccel()
		if err != nil {
			log.Printf("WARNING: accel read: %v", err)
			continue
		}
		gyro, _, err := dev.ReadGyro()
		if err != nil {
			log.Printf("WARNING: gyro read: %v", err)
			continue
		}
		temp, err := dev.ReadTemp()
		if err != nil {
			log.Printf("WARNING: temperature read: %v", err)
			continue
		}

		fmt.Printf("[ACC ] x=%8.3f y=%8.3f z=%8.3f m/s²\n", accel[0], accel[1], accel[2])
		fmt.Printf("[GYRO] x=%8.2f y=%8.2f z=%8.2f °/s\n", gyro[0], gyro[1], gyro[2])

		if cfg.MagEnabled {
			mag, fresh, err := dev.ReadMag()
			switch {
			case errors.Is(err, mpu.ErrMagOverflow):
				fmt.Println("[MAG ] saturated")
			case err != nil:
				log.Printf("WARNING: mag read: %v", err)
			case fresh:
				fmt.Printf("[MAG ] x=%8.2f y=%8.2f z=%8.2f µT\n", mag[0], mag[1], mag[2])
			}
		}

		fmt.Printf("[TEMP] %.1f °C\n", temp)
	}
}
