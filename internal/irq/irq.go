// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq wraps GPIO edge detection behind a small interface so the
// sampler loop can run against a fake in tests.
package irq

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// EdgeWaiter blocks until the interrupt line fires or the timeout expires.
type EdgeWaiter interface {
	// WaitForEdge reports whether an edge arrived before the timeout.
	WaitForEdge(timeout time.Duration) bool
	// Halt releases the pin and unblocks any pending wait.
	Halt() error
}

type gpioWaiter struct {
	pin gpio.PinIn
}

// OpenFallingEdge configures the named pin for falling-edge detection with
// the pull-up enabled, matching an active-low open-drain interrupt line.
func OpenFallingEdge(name string) (EdgeWaiter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("gpio pin %q edge setup: %w", name, err)
	}
	return &gpioWaiter{pin: pin}, nil
}

func (w *gpioWaiter) WaitForEdge(timeout time.Duration) bool {
	return w.pin.WaitForEdge(timeout)
}

func (w *gpioWaiter) Halt() error {
	return w.pin.Halt()
}
