// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeBus emulates the register file, FIFO and banked DMP memory of the
// chip well enough to exercise the driver without hardware.
type fakeBus struct {
	mu        sync.Mutex
	devs      map[uint16]map[byte]byte
	fifo      []byte
	fifoQueue [][]byte
	fifoCount uint16
	mem       [4096]byte
	bank      uint16
	inUse     atomic.Bool

	// corruptMemAt flips a bit at this absolute DMP memory address on
	// read-back. Negative disables it.
	corruptMemAt int
	// memReadErr, when set, fails every DMP memory read.
	memReadErr error
	// onRead observes every single-register read.
	onRead func(addr uint16, reg byte)
}

func newFakeBus() *fakeBus {
	b := &fakeBus{
		devs:         make(map[uint16]map[byte]byte),
		corruptMemAt: -1,
	}
	b.dev(DefaultAddr)[regWhoAmI] = whoAmIValue
	return b
}

func (b *fakeBus) dev(addr uint16) map[byte]byte {
	d, ok := b.devs[addr]
	if !ok {
		d = make(map[byte]byte)
		b.devs[addr] = d
	}
	return d
}

func (b *fakeBus) setFIFO(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fifo = data
	b.fifoCount = uint16(len(data))
}

// queueFIFO stages FIFO reads that are served one per ReadBytes call before
// the steady-state fifo contents take over.
func (b *fakeBus) queueFIFO(reads ...[]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fifoQueue = append(b.fifoQueue, reads...)
}

func (b *fakeBus) ReadByte(addr uint16, reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.onRead != nil {
		b.onRead(addr, reg)
	}
	return b.dev(addr)[reg], nil
}

func (b *fakeBus) ReadWord(addr uint16, reg byte) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg == regFIFOCountH {
		return b.fifoCount, nil
	}
	d := b.dev(addr)
	return uint16(d[reg])<<8 | uint16(d[reg+1]), nil
}

func (b *fakeBus) ReadBytes(addr uint16, reg byte, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch reg {
	case regFIFORW:
		if len(b.fifoQueue) > 0 {
			copy(buf, b.fifoQueue[0])
			b.fifoQueue = b.fifoQueue[1:]
			break
		}
		copy(buf, b.fifo)
	case regMemRW:
		if b.memReadErr != nil {
			return b.memReadErr
		}
		copy(buf, b.mem[b.bank:])
		if b.corruptMemAt >= int(b.bank) && b.corruptMemAt < int(b.bank)+len(buf) {
			buf[b.corruptMemAt-int(b.bank)] ^= 0x01
		}
	default:
		d := b.dev(addr)
		for i := range buf {
			buf[i] = d[reg+byte(i)]
		}
	}
	return nil
}

func (b *fakeBus) WriteByte(addr uint16, reg, val byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dev(addr)[reg] = val
	return nil
}

func (b *fakeBus) WriteBytes(addr uint16, reg byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch reg {
	case regBankSel:
		b.bank = uint16(data[0])<<8 | uint16(data[1])
	case regMemRW:
		copy(b.mem[b.bank:], data)
	default:
		d := b.dev(addr)
		for i, v := range data {
			d[reg+byte(i)] = v
		}
	}
	return nil
}

func (b *fakeBus) Claim() bool  { return b.inUse.CompareAndSwap(false, true) }
func (b *fakeBus) Release()     { b.inUse.Store(false) }
func (b *fakeBus) InUse() bool  { return b.inUse.Load() }
func (b *fakeBus) Close() error { return nil }

// fakeEdge delivers interrupt edges on demand.
type fakeEdge struct {
	edges  chan struct{}
	halted atomic.Bool
}

func newFakeEdge() *fakeEdge {
	return &fakeEdge{edges: make(chan struct{}, 16)}
}

func (e *fakeEdge) fire() { e.edges <- struct{}{} }

func (e *fakeEdge) WaitForEdge(timeout time.Duration) bool {
	if timeout > 10*time.Millisecond {
		timeout = 10 * time.Millisecond
	}
	select {
	case <-e.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *fakeEdge) Halt() error {
	e.halted.Store(true)
	return nil
}
