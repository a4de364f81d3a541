// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// pollTimeout bounds each wait on the interrupt line so shutdown is never
// stuck behind a sensor that stopped firing.
const pollTimeout = 300 * time.Millisecond

// OnSample registers a function called from the sampler goroutine after
// every successful FIFO read. The callback must return quickly; it runs on
// the real-time thread between interrupts. Pass nil to remove it.
func (d *Device) OnSample(fn func(*Sample)) {
	d.cbMu.Lock()
	d.onSample = fn
	d.cbMu.Unlock()
}

func (d *Device) callback() func(*Sample) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	return d.onSample
}

// WasLastReadSuccessful reports whether the most recent interrupt produced
// fresh DMP data. On a bad read the previously published sample stays
// available, so consumers keeping a steady clock can decide to reuse it.
func (d *Device) WasLastReadSuccessful() bool {
	return d.lastReadOK.Load()
}

// MicrosSinceLastInterrupt returns the age of the latest FIFO interrupt.
func (d *Device) MicrosSinceLastInterrupt() int64 {
	return time.Now().UnixMicro() - d.lastInterruptMicros.Load()
}

func (d *Device) startSampler() error {
	if d.running {
		return fmt.Errorf("sampler already running")
	}
	if d.edge == nil {
		return fmt.Errorf("no interrupt line configured")
	}
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.running = true
	go d.samplerLoop()
	return nil
}

// Stop shuts the sampler goroutine down and waits up to a second for it to
// drain out of a pending FIFO read.
func (d *Device) Stop() {
	if !d.running {
		return
	}
	d.running = false
	close(d.stopCh)
	if d.edge != nil {
		if err := d.edge.Halt(); err != nil {
			log.Printf("WARNING: halting interrupt pin: %v", err)
		}
	}
	select {
	case <-d.doneCh:
	case <-time.After(time.Second):
		log.Println("WARNING: sampler goroutine exit timeout")
	}
}

// samplerLoop blocks on the interrupt line and reads the FIFO on every
// falling edge. It owns an OS thread pinned at SCHED_FIFO priority so the
// FIFO is drained before the next sample lands on top of it.
func (d *Device) samplerLoop() {
	defer close(d.doneCh)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	d.setRealtimePriority()

	if err := d.resetFIFO(); err != nil {
		log.Printf("WARNING: initial fifo reset: %v", err)
	}

	firstRun := true
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		if !d.edge.WaitForEdge(pollTimeout) {
			continue
		}
		select {
		case <-d.stopCh:
			return
		default:
		}

		d.lastInterruptMicros.Store(time.Now().UnixMicro())

		// read no matter the claim state, the interrupt already fired
		if !d.bus.Claim() && d.cfg.LogWarnings {
			log.Println("WARNING: i2c bus claimed during interrupt, reading anyway")
		}
		ok, err := d.readDMPFIFO(firstRun)
		d.bus.Release()
		d.lastReadOK.Store(ok && err == nil)
		if err != nil && d.cfg.LogWarnings {
			log.Printf("WARNING: fifo read: %v", err)
		}

		// the first packet after startup can be stale, swallow it
		if firstRun {
			firstRun = false
			continue
		}
		if ok && err == nil {
			if fn := d.callback(); fn != nil {
				fn(d.Latest())
			}
		}
	}
}

// setRealtimePriority moves the locked OS thread to SCHED_FIFO so FIFO
// servicing preempts normal workloads. Failure is non-fatal; it needs
// CAP_SYS_NICE.
func (d *Device) setRealtimePriority() {
	prio := uint32(d.cfg.SamplerPriority)
	if prio == 0 {
		prio = 98 // one below the SCHED_FIFO maximum
	}
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: prio,
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		log.Printf("WARNING: could not set sampler thread to SCHED_FIFO: %v", err)
	}
}
