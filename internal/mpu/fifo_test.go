// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestClassifyFIFO(t *testing.T) {
	cases := []struct {
		count int
		want  fifoPlan
	}{
		{0, fifoPlan{outcome: fifoEmpty}},
		{28, fifoPlan{outcome: fifoOnePacket, hasDMP: true}},
		{35, fifoPlan{outcome: fifoOnePacket, hasDMP: true, hasMag: true}},
		{42, fifoPlan{outcome: fifoDegraded, offset: 7, hasDMP: true}},
		{63, fifoPlan{outcome: fifoDegraded, offset: 28, hasDMP: true}},
		{77, fifoPlan{outcome: fifoDegraded, offset: 42, hasDMP: true}},
		{56, fifoPlan{outcome: fifoTwoPackets, offset: 28, hasDMP: true}},
		{70, fifoPlan{outcome: fifoTwoPackets, offset: 35, hasDMP: true, hasMag: true}},
		{7, fifoPlan{outcome: fifoMagOnly, offset: 0, hasMag: true}},
		{14, fifoPlan{outcome: fifoMagOnly, offset: 7, hasMag: true}},
		{21, fifoPlan{outcome: fifoMagOnly, offset: 14, hasMag: true}},
		{13, fifoPlan{outcome: fifoUnrecognized}},
		{100, fifoPlan{outcome: fifoUnrecognized}},
	}
	for _, tc := range cases {
		if got := classifyFIFO(tc.count); got != tc.want {
			t.Errorf("classifyFIFO(%d) = %+v, want %+v", tc.count, got, tc.want)
		}
	}
}

// packQuat writes a unit quaternion in the q30 fixed point format the DMP
// streams.
func packQuat(buf []byte, q [4]float64) {
	for k := 0; k < 4; k++ {
		binary.BigEndian.PutUint32(buf[4*k:], uint32(int32(q[k]*(1<<30))))
	}
}

func dmpPacket(q [4]float64, accel, gyro [3]int16) []byte {
	buf := make([]byte, fifoLenNoMag)
	packQuat(buf, q)
	for k := 0; k < 3; k++ {
		binary.BigEndian.PutUint16(buf[16+2*k:], uint16(accel[k]))
		binary.BigEndian.PutUint16(buf[22+2*k:], uint16(gyro[k]))
	}
	return buf
}

func TestQuatValid(t *testing.T) {
	good := make([]byte, 16)
	packQuat(good, [4]float64{1, 0, 0, 0})
	if !quatValid(good, 0) {
		t.Error("identity quaternion rejected")
	}

	rotated := make([]byte, 16)
	s := math.Sqrt(0.5)
	packQuat(rotated, [4]float64{s, 0, 0, s})
	if !quatValid(rotated, 0) {
		t.Error("45 degree quaternion rejected")
	}

	var zeros [16]byte
	if quatValid(zeros[:], 0) {
		t.Error("all-zero quaternion accepted")
	}

	big := make([]byte, 16)
	packQuat(big, [4]float64{1.9, 0, 0, 0})
	if quatValid(big, 0) {
		t.Error("oversized quaternion accepted")
	}

	if quatValid(good, 4) {
		t.Error("misaligned offset accepted")
	}
	if quatValid(good, -1) || quatValid(good, 1) {
		t.Error("out of range offset accepted")
	}
}

func newTestDevice(t *testing.T, b *fakeBus, mutate func(*Config)) *Device {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CalibrationDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(b, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestReadDMPFIFOParsesPacket(t *testing.T) {
	b := newFakeBus()
	// DMP setup forces 2G and 2000 DPS
	d := newTestDevice(t, b, func(c *Config) {
		c.AccelFSR = AccelFSR2G
		c.GyroFSR = GyroFSR2000DPS
	})
	d.dmpOn = true
	d.packetLen = fifoLenNoMag

	s := math.Sqrt(0.5)
	b.setFIFO(dmpPacket([4]float64{s, 0, 0, s}, [3]int16{100, -200, 16384}, [3]int16{10, -20, 30}))

	fresh, err := d.readDMPFIFO(false)
	if err != nil {
		t.Fatalf("readDMPFIFO: %v", err)
	}
	if !fresh {
		t.Fatal("expected fresh DMP data")
	}

	got := d.Latest()
	if got == nil {
		t.Fatal("no sample published")
	}
	if math.Abs(got.DMPQuat[0]-s) > 1e-6 || math.Abs(got.DMPQuat[3]-s) > 1e-6 {
		t.Errorf("quat = %v", got.DMPQuat)
	}
	// 90 degree yaw
	if math.Abs(got.DMPTaitBryan[2]-math.Pi/2) > 1e-6 {
		t.Errorf("yaw = %f, want %f", got.DMPTaitBryan[2], math.Pi/2)
	}
	if got.RawAccel != [3]int16{100, -200, 16384} {
		t.Errorf("raw accel = %v", got.RawAccel)
	}
	if got.RawGyro != [3]int16{10, -20, 30} {
		t.Errorf("raw gyro = %v", got.RawGyro)
	}
	// DMP mode runs at 2G and 2000 DPS
	wantAz := 16384 * 9.807 * 2 / 32768
	if math.Abs(got.Accel[2]-wantAz) > 1e-9 {
		t.Errorf("accel z = %f, want %f", got.Accel[2], wantAz)
	}
	// mag disabled: fused attitude mirrors the DMP attitude
	if got.FusedQuat != got.DMPQuat {
		t.Errorf("fused quat %v != dmp quat %v", got.FusedQuat, got.DMPQuat)
	}
}

func TestReadDMPFIFOEmpty(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)
	d.dmpOn = true
	d.packetLen = fifoLenNoMag

	fresh, err := d.readDMPFIFO(false)
	if err != nil {
		t.Fatalf("readDMPFIFO: %v", err)
	}
	if fresh {
		t.Error("empty FIFO reported fresh data")
	}
	if d.Latest() != nil {
		t.Error("sample published from empty FIFO")
	}
}

func TestReadDMPFIFONotDMPMode(t *testing.T) {
	d := newTestDevice(t, newFakeBus(), nil)
	if _, err := d.readDMPFIFO(false); err != ErrNotDMPMode {
		t.Errorf("err = %v, want ErrNotDMPMode", err)
	}
}

func TestReadDMPFIFOUnrecognizedResets(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)
	d.dmpOn = true
	d.packetLen = fifoLenNoMag
	b.setFIFO(make([]byte, 13))

	fresh, err := d.readDMPFIFO(false)
	if err != nil {
		t.Fatalf("readDMPFIFO: %v", err)
	}
	if fresh {
		t.Error("unrecognized count reported fresh data")
	}
	// the reset path re-arms the DMP interrupt
	if got, _ := b.ReadByte(DefaultAddr, regIntEnable); got != bitDMPIntEn {
		t.Errorf("INT_ENABLE = 0x%02X after reset, want 0x%02X", got, bitDMPIntEn)
	}
}

func TestReadDMPFIFOCorruptQuatResets(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, nil)
	d.dmpOn = true
	d.packetLen = fifoLenNoMag
	b.setFIFO(make([]byte, fifoLenNoMag)) // zeros fail the magnitude check

	fresh, err := d.readDMPFIFO(false)
	if err != nil {
		t.Fatalf("readDMPFIFO: %v", err)
	}
	if fresh {
		t.Error("corrupt packet reported fresh data")
	}
	if d.Latest() != nil {
		t.Error("sample published from corrupt packet")
	}
}

func TestReadDMPFIFOMagBeforeQuat(t *testing.T) {
	b := newFakeBus()
	d := newTestDevice(t, b, func(c *Config) { c.MagEnabled = true })
	d.dmpOn = true
	d.packetLen = fifoLenMag
	d.magAdjust = [3]float64{1, 1, 1}
	d.magCal.Scales = [3]float64{1, 1, 1}

	// 7 mag bytes then the DMP packet
	packet := make([]byte, fifoLenMag)
	binary.LittleEndian.PutUint16(packet[0:], uint16(100)) // chip x
	binary.LittleEndian.PutUint16(packet[2:], uint16(200)) // chip y
	binary.LittleEndian.PutUint16(packet[4:], uint16(300)) // chip z
	copy(packet[7:], dmpPacket([4]float64{1, 0, 0, 0}, [3]int16{}, [3]int16{}))
	b.setFIFO(packet)

	fresh, err := d.readDMPFIFO(false)
	if err != nil {
		t.Fatalf("readDMPFIFO: %v", err)
	}
	if !fresh {
		t.Fatal("expected fresh DMP data")
	}
	got := d.Latest()
	// chip axes swap onto the body frame: x<-chip y, y<-chip x, z<- -chip z
	want := [3]float64{200 * magRawToUT, 100 * magRawToUT, -300 * magRawToUT}
	for i := 0; i < 3; i++ {
		if math.Abs(got.Mag[i]-want[i]) > 1e-9 {
			t.Errorf("mag[%d] = %f, want %f", i, got.Mag[i], want[i])
		}
	}
}
