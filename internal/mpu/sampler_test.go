// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFirmware(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dmp_firmware.bin")
	img := make([]byte, dmpCodeSize)
	for i := range img {
		img[i] = byte(i)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatalf("write firmware: %v", err)
	}
	return path
}

func TestInitDMPStartsSampler(t *testing.T) {
	b := newFakeBus()
	edge := newFakeEdge()
	d := newTestDevice(t, b, func(c *Config) {
		c.FirmwarePath = writeTestFirmware(t)
	})
	defer d.Stop()

	if err := d.InitDMP(edge); err != nil {
		t.Fatalf("InitDMP: %v", err)
	}
	if !d.dmpOn {
		t.Error("dmp not marked on")
	}
	if d.packetLen != fifoLenNoMag {
		t.Errorf("packetLen = %d, want %d", d.packetLen, fifoLenNoMag)
	}
	// user asked for 4G but the firmware requires 2G
	if got, _ := b.ReadByte(DefaultAddr, regAccelConfig); got != 0 {
		t.Errorf("ACCEL_CONFIG = 0x%02X, want 0x00", got)
	}
	if got, _ := b.ReadByte(DefaultAddr, regGyroConfig); got != 3<<3 {
		t.Errorf("GYRO_CONFIG = 0x%02X, want 0x%02X", got, 3<<3)
	}

	samples := make(chan *Sample, 4)
	d.OnSample(func(s *Sample) { samples <- s })

	s := math.Sqrt(0.5)
	b.setFIFO(dmpPacket([4]float64{s, 0, 0, s}, [3]int16{0, 0, 16384}, [3]int16{}))

	// the packet waiting at startup can predate the configuration, so the
	// first interrupt is read but not delivered
	edge.fire()
	select {
	case <-samples:
		t.Fatal("first interrupt delivered a sample")
	case <-time.After(50 * time.Millisecond):
	}

	b.setFIFO(dmpPacket([4]float64{s, 0, 0, s}, [3]int16{0, 0, 16384}, [3]int16{}))
	edge.fire()
	select {
	case got := <-samples:
		if math.Abs(got.DMPTaitBryan[2]-math.Pi/2) > 1e-6 {
			t.Errorf("yaw = %f, want %f", got.DMPTaitBryan[2], math.Pi/2)
		}
		if !d.WasLastReadSuccessful() {
			t.Error("successful read not recorded")
		}
	case <-time.After(time.Second):
		t.Fatal("no sample delivered after second interrupt")
	}
}

func TestSamplerStop(t *testing.T) {
	b := newFakeBus()
	edge := newFakeEdge()
	d := newTestDevice(t, b, func(c *Config) {
		c.FirmwarePath = writeTestFirmware(t)
	})

	if err := d.InitDMP(edge); err != nil {
		t.Fatalf("InitDMP: %v", err)
	}
	d.Stop()

	if !edge.halted.Load() {
		t.Error("interrupt pin not halted on stop")
	}
	select {
	case <-d.doneCh:
	default:
		t.Error("sampler goroutine still running after Stop")
	}

	// idempotent
	d.Stop()
}

func TestStartSamplerTwice(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)
	d.edge = newFakeEdge()
	if err := d.startSampler(); err != nil {
		t.Fatalf("startSampler: %v", err)
	}
	defer d.Stop()
	if err := d.startSampler(); err == nil {
		t.Error("second startSampler succeeded")
	}
}

func TestOnSampleNilRemovesCallback(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)
	d.OnSample(func(*Sample) {})
	if d.callback() == nil {
		t.Fatal("callback not registered")
	}
	d.OnSample(nil)
	if d.callback() != nil {
		t.Error("callback not removed")
	}
}
