// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu

// MPU-9250 I2C addresses.
const (
	DefaultAddr uint16 = 0x68
	MagAddr     uint16 = 0x0C // AK8963 behind the pass-through mux
)

// MPU-9250 register map (the subset this driver touches).
const (
	regXGOffsetH    = 0x13
	regSmplrtDiv    = 0x19
	regConfig       = 0x1A
	regGyroConfig   = 0x1B
	regAccelConfig  = 0x1C
	regAccelConfig2 = 0x1D
	regFIFOEn       = 0x23
	regI2CMstCtrl   = 0x24
	regI2CSlv0Addr  = 0x25
	regI2CSlv0Reg   = 0x26
	regI2CSlv0Ctrl  = 0x27
	regIntPinCfg    = 0x37
	regIntEnable    = 0x38
	regIntStatus    = 0x3A
	regAccelXoutH   = 0x3B
	regTempOutH     = 0x41
	regGyroXoutH    = 0x43
	regUserCtrl     = 0x6A
	regPwrMgmt1     = 0x6B
	regPwrMgmt2     = 0x6C
	regBankSel      = 0x6D
	regMemRW        = 0x6F
	regPrgmStartH   = 0x70
	regFIFOCountH   = 0x72
	regFIFORW       = 0x74
	regWhoAmI       = 0x75
)

// whoAmIValue is the identity the WHO_AM_I register must report.
const whoAmIValue = 0x71

// PWR_MGMT_1 bits.
const (
	bitHReset = 0x80
	bitSleep  = 0x40
)

// USER_CTRL bits.
const (
	bitDMPEn    = 0x80
	bitFIFOEn   = 0x40
	bitI2CMstEn = 0x20
	bitFIFORst  = 0x04
	bitDMPRst   = 0x08
)

// INT_ENABLE bits.
const bitDMPIntEn = 0x02

// INT_PIN_CFG bits.
const (
	bitActl     = 0x80 // interrupt line active low
	bitBypassEn = 0x02
)

// FIFO_EN bits.
const (
	bitFIFOSlv0  = 0x01
	bitFIFOGyroX = 0x40
	bitFIFOGyroY = 0x20
	bitFIFOGyroZ = 0x10
)

// CONFIG and ACCEL_CONFIG_2 base values.
const (
	fifoModeReplaceOld = 0x00
	bitFIFOSize1024    = 0x40
)

// AK8963 registers.
const (
	magST1   = 0x02
	magXoutL = 0x03
	magST2   = 0x09
	magCntl  = 0x0A
	magASAX  = 0x10
)

// AK8963 control and status values.
const (
	magPowerDown = 0x00
	magFuseROM   = 0x0F
	magCont2     = 0x06 // continuous measurement mode 2, 100Hz
	mag16Bit     = 0x10
	magDataReady = 0x01 // ST1
	magOverflow  = 0x08 // ST2 HOFL
)

// magRawToUT converts 16-bit AK8963 counts to microtesla.
const magRawToUT = 0.15
