// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides register-oriented I2C access on top of periph.io,
// plus an advisory claim so the sampler goroutine and foreground readers
// can detect contention instead of interleaving transactions blindly.
package bus

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus is the register-level transport the driver talks through. All methods
// address a device by its 7-bit I2C address.
type Bus interface {
	ReadByte(addr uint16, reg byte) (byte, error)
	ReadWord(addr uint16, reg byte) (uint16, error)
	ReadBytes(addr uint16, reg byte, buf []byte) error
	WriteByte(addr uint16, reg, val byte) error
	WriteBytes(addr uint16, reg byte, data []byte) error

	// Claim takes the advisory lock, reporting false if it was already held.
	// Release gives it back. InUse reports the current holder state without
	// taking it. The lock does not block transactions, it only lets callers
	// notice that someone else is mid-sequence.
	Claim() bool
	Release()
	InUse() bool

	Close() error
}

type i2cBus struct {
	bus   i2c.BusCloser
	inUse atomic.Bool
}

// Open initializes the periph host and opens the named I2C bus ("1" on a
// Raspberry Pi, "" for the first available).
func Open(name string) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return &i2cBus{bus: b}, nil
}

func (b *i2cBus) ReadByte(addr uint16, reg byte) (byte, error) {
	var buf [1]byte
	if err := b.bus.Tx(addr, []byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("i2c read 0x%02X@0x%02X: %w", reg, addr, err)
	}
	return buf[0], nil
}

func (b *i2cBus) ReadWord(addr uint16, reg byte) (uint16, error) {
	var buf [2]byte
	if err := b.bus.Tx(addr, []byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("i2c read word 0x%02X@0x%02X: %w", reg, addr, err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (b *i2cBus) ReadBytes(addr uint16, reg byte, buf []byte) error {
	if err := b.bus.Tx(addr, []byte{reg}, buf); err != nil {
		return fmt.Errorf("i2c read %d bytes 0x%02X@0x%02X: %w", len(buf), reg, addr, err)
	}
	return nil
}

func (b *i2cBus) WriteByte(addr uint16, reg, val byte) error {
	if err := b.bus.Tx(addr, []byte{reg, val}, nil); err != nil {
		return fmt.Errorf("i2c write 0x%02X@0x%02X: %w", reg, addr, err)
	}
	return nil
}

func (b *i2cBus) WriteBytes(addr uint16, reg byte, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := b.bus.Tx(addr, w, nil); err != nil {
		return fmt.Errorf("i2c write %d bytes 0x%02X@0x%02X: %w", len(data), reg, addr, err)
	}
	return nil
}

func (b *i2cBus) Claim() bool {
	return b.inUse.CompareAndSwap(false, true)
}

func (b *i2cBus) Release() {
	b.inUse.Store(false)
}

func (b *i2cBus) InUse() bool {
	return b.inUse.Load()
}

func (b *i2cBus) Close() error {
	return b.bus.Close()
}
