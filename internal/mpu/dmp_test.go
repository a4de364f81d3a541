// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"bytes"
	"errors"
	"testing"
)

func TestOrientationDMPScalar(t *testing.T) {
	cases := []struct {
		orient Orientation
		want   uint16
	}{
		{OrientZUp, 136},
		{OrientZDown, 396},
		{OrientXUp, 14},
		{OrientXDown, 266},
		{OrientYUp, 112},
		{OrientYDown, 336},
		{OrientXForward, 133},
		{OrientXBack, 161},
	}
	for _, tc := range cases {
		if got := tc.orient.dmpScalar(); got != tc.want {
			t.Errorf("%s: scalar = %d, want %d", tc.orient, got, tc.want)
		}
	}
}

func TestMemRejectsBankCrossing(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)

	if err := d.writeMem(0x00F8, make([]byte, 16)); err == nil {
		t.Error("writeMem across bank boundary succeeded")
	}
	if err := d.readMem(0x01FF, make([]byte, 2)); err == nil {
		t.Error("readMem across bank boundary succeeded")
	}
	if err := d.writeMem(0x00F0, make([]byte, 16)); err != nil {
		t.Errorf("writeMem within bank: %v", err)
	}
}

func TestMemRoundTrip(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)

	want := []byte{0x20, 0x28, 0x30, 0x38}
	if err := d.writeMem(cfgLPQuat, want); err != nil {
		t.Fatalf("writeMem: %v", err)
	}
	got := make([]byte, len(want))
	if err := d.readMem(cfgLPQuat, got); err != nil {
		t.Fatalf("readMem: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("readMem = % X, want % X", got, want)
	}
}

func TestLoadDMPFirmware(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)

	firmware := make([]byte, dmpCodeSize)
	for i := range firmware {
		firmware[i] = byte(i * 7)
	}
	if err := d.loadDMPFirmware(firmware); err != nil {
		t.Fatalf("loadDMPFirmware: %v", err)
	}
	if !bytes.Equal(b.mem[:dmpCodeSize], firmware) {
		t.Error("firmware image not written to dmp memory")
	}
	hi, _ := b.ReadByte(DefaultAddr, regPrgmStartH)
	lo, _ := b.ReadByte(DefaultAddr, regPrgmStartH+1)
	if start := uint16(hi)<<8 | uint16(lo); start != dmpStartAddr {
		t.Errorf("program start = 0x%04X, want 0x%04X", start, dmpStartAddr)
	}

	if err := d.loadDMPFirmware(firmware[:100]); err == nil {
		t.Error("short firmware image accepted")
	}
}

func TestLoadDMPFirmwareDetectsCorruption(t *testing.T) {
	firmware := make([]byte, dmpCodeSize)
	for i := range firmware {
		firmware[i] = byte(i * 7)
	}

	// a flipped bit anywhere must fail the read-back comparison
	for _, corrupt := range []int{0, 1234, dmpCodeSize - 1} {
		b := newFakeBus()
		d := newTestDevice(t, b, nil)
		b.corruptMemAt = corrupt

		err := d.loadDMPFirmware(firmware)
		if !errors.Is(err, ErrFirmwareVerify) {
			t.Errorf("corruption at %d: err = %v, want ErrFirmwareVerify", corrupt, err)
		}
	}
}

func TestLoadDMPFirmwareTransportFailureIsNotVerify(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)
	b.memReadErr = errors.New("i2c transaction failed")

	err := d.loadDMPFirmware(make([]byte, dmpCodeSize))
	if err == nil {
		t.Fatal("failed read-back accepted")
	}
	if errors.Is(err, ErrFirmwareVerify) {
		t.Errorf("transport failure reported as verification failure: %v", err)
	}
	if !errors.Is(err, b.memReadErr) {
		t.Errorf("transport failure not wrapped: %v", err)
	}
}

func TestSetDMPFIFORate(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)

	if err := d.setDMPFIFORate(100); err != nil {
		t.Fatalf("setDMPFIFORate: %v", err)
	}
	// 200Hz internal rate with a divider of 1 halves the output
	if div := uint16(b.mem[dD022])<<8 | uint16(b.mem[dD022+1]); div != 1 {
		t.Errorf("rate divider = %d, want 1", div)
	}
	if err := d.setDMPFIFORate(400); err == nil {
		t.Error("rate above 200Hz accepted")
	}
}

func TestEnableDMPFeaturesPacketLen(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)
	d.dmpOn = true

	if err := d.enableDMPFeatures(feature6xLPQuat | featureSendRawAccel | featureSendRawGyro); err != nil {
		t.Fatalf("enableDMPFeatures: %v", err)
	}
	if d.packetLen != fifoLenNoMag {
		t.Errorf("packetLen = %d, want %d", d.packetLen, fifoLenNoMag)
	}
}

func TestEnableDMPLPQuatUnsupported(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)
	if err := d.enableDMPLPQuat(true); err == nil {
		t.Error("3-axis quaternion output accepted")
	}
	if err := d.enableDMPLPQuat(false); err != nil {
		t.Errorf("disabling 3-axis quaternion output: %v", err)
	}
}

func TestResetFIFORearmsInterrupt(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)
	d.dmpOn = true

	if err := d.resetFIFO(); err != nil {
		t.Fatalf("resetFIFO: %v", err)
	}
	if got, _ := b.ReadByte(DefaultAddr, regIntEnable); got != bitDMPIntEn {
		t.Errorf("INT_ENABLE = 0x%02X, want 0x%02X", got, bitDMPIntEn)
	}
	if got, _ := b.ReadByte(DefaultAddr, regUserCtrl); got != bitDMPEn|bitFIFOEn {
		t.Errorf("USER_CTRL = 0x%02X, want 0x%02X", got, bitDMPEn|bitFIFOEn)
	}
}

func TestDLPFCode(t *testing.T) {
	cases := []struct {
		hz    DLPF
		accel bool
		want  byte
	}{
		{DLPFOff, false, 1},
		{DLPFOff, true, 7},
		{DLPF184Hz, false, 1},
		{DLPF92Hz, false, 2},
		{DLPF41Hz, true, 3},
		{DLPF20Hz, false, 4},
		{DLPF10Hz, true, 5},
		{DLPF5Hz, false, 6},
	}
	for _, tc := range cases {
		got, err := dlpfCode(tc.hz, tc.accel)
		if err != nil {
			t.Errorf("dlpfCode(%d, %v): %v", tc.hz, tc.accel, err)
			continue
		}
		if got != tc.want {
			t.Errorf("dlpfCode(%d, %v) = %d, want %d", tc.hz, tc.accel, got, tc.want)
		}
	}
	if _, err := dlpfCode(DLPF(33), false); err == nil {
		t.Error("unknown cutoff accepted")
	}
}

func TestEnableDMPGyroCalWritesToggle(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)

	if err := d.enableDMPGyroCal(true); err != nil {
		t.Fatalf("enableDMPGyroCal(true): %v", err)
	}
	on := []byte{0xB8, 0xAA, 0xB3, 0x8D, 0xB4, 0x98, 0x0D, 0x35, 0x5D}
	if !bytes.Equal(b.mem[cfgMotionBias:cfgMotionBias+9], on) {
		t.Errorf("motion bias enable = % X, want % X", b.mem[cfgMotionBias:cfgMotionBias+9], on)
	}

	if err := d.enableDMPGyroCal(false); err != nil {
		t.Fatalf("enableDMPGyroCal(false): %v", err)
	}
	off := []byte{0xB8, 0xAA, 0xAA, 0xAA, 0xB0, 0x88, 0xC3, 0xC5, 0xC7}
	if !bytes.Equal(b.mem[cfgMotionBias:cfgMotionBias+9], off) {
		t.Errorf("motion bias disable = % X, want % X", b.mem[cfgMotionBias:cfgMotionBias+9], off)
	}
}

func TestInitDMPMissingFirmware(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), func(c *Config) { c.FirmwarePath = "" })
	if err := d.InitDMP(newFakeEdge()); err == nil {
		t.Error("InitDMP without a firmware path succeeded")
	}
}
