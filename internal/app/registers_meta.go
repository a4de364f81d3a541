// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

// BitField documents one field inside a register for the debug UI.
type BitField struct {
	Bits   string `json:"bits"`
	Name   string `json:"name"`
	Values string `json:"values,omitempty"`
}

// RegisterInfo is the metadata the debug UI renders for one register.
type RegisterInfo struct {
	Address   byte       `json:"-"`
	Addr      string     `json:"address"`
	Name      string     `json:"name"`
	Desc      string     `json:"description"`
	Access    string     `json:"access"`
	BitFields []BitField `json:"bit_fields,omitempty"`
}

// mpu9250RegisterMap covers the registers this driver programs plus the
// sensor data block. Addresses are filled into Addr as hex by the handler.
func mpu9250RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x13, Name: "XG_OFFSET_H", Desc: "Gyro X bias trim high byte", Access: "RW"},
		{Address: 0x14, Name: "XG_OFFSET_L", Desc: "Gyro X bias trim low byte", Access: "RW"},
		{Address: 0x15, Name: "YG_OFFSET_H", Desc: "Gyro Y bias trim high byte", Access: "RW"},
		{Address: 0x16, Name: "YG_OFFSET_L", Desc: "Gyro Y bias trim low byte", Access: "RW"},
		{Address: 0x17, Name: "ZG_OFFSET_H", Desc: "Gyro Z bias trim high byte", Access: "RW"},
		{Address: 0x18, Name: "ZG_OFFSET_L", Desc: "Gyro Z bias trim low byte", Access: "RW"},
		{Address: 0x19, Name: "SMPLRT_DIV", Desc: "Sample rate divider off the 1kHz internal clock", Access: "RW",
			BitFields: []BitField{
				{Bits: "7:0", Name: "SMPLRT_DIV", Values: "rate = 1kHz / (1 + div)"},
			}},
		{Address: 0x1A, Name: "CONFIG", Desc: "Gyro low pass filter and FIFO overflow mode", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "FIFO_MODE", Values: "0=replace oldest, 1=block new data"},
				{Bits: "2:0", Name: "DLPF_CFG", Values: "1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz"},
			}},
		{Address: 0x1B, Name: "GYRO_CONFIG", Desc: "Gyro full scale range", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "GYRO_FS_SEL", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			}},
		{Address: 0x1C, Name: "ACCEL_CONFIG", Desc: "Accel full scale range", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "ACCEL_FS_SEL", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: 0x1D, Name: "ACCEL_CONFIG2", Desc: "Accel low pass filter and FIFO depth", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "FIFO_SIZE_1024", Values: "1=1024 byte FIFO"},
				{Bits: "2:0", Name: "A_DLPFCFG", Values: "1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz, 7=off"},
			}},
		{Address: 0x23, Name: "FIFO_EN", Desc: "Which sources feed the FIFO", Access: "RW",
			BitFields: []BitField{
				{Bits: "6:4", Name: "GYRO_OUT", Values: "X/Y/Z gyro to FIFO"},
				{Bits: "0", Name: "SLV0", Values: "external slave 0 bytes to FIFO"},
			}},
		{Address: 0x24, Name: "I2C_MST_CTRL", Desc: "Internal I2C master clock and handshake", Access: "RW"},
		{Address: 0x25, Name: "I2C_SLV0_ADDR", Desc: "Slave 0 address, bit 7 selects read", Access: "RW"},
		{Address: 0x26, Name: "I2C_SLV0_REG", Desc: "Slave 0 start register", Access: "RW"},
		{Address: 0x27, Name: "I2C_SLV0_CTRL", Desc: "Slave 0 enable and transfer length", Access: "RW"},
		{Address: 0x37, Name: "INT_PIN_CFG", Desc: "Interrupt pin polarity and bypass mux", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "ACTL", Values: "1=active low"},
				{Bits: "1", Name: "BYPASS_EN", Values: "1=host talks to aux bus directly"},
			}},
		{Address: 0x38, Name: "INT_ENABLE", Desc: "Interrupt sources", Access: "RW",
			BitFields: []BitField{
				{Bits: "1", Name: "DMP_INT_EN", Values: "1=DMP raises the interrupt"},
			}},
		{Address: 0x3A, Name: "INT_STATUS", Desc: "Interrupt status, cleared on read", Access: "R"},
		{Address: 0x3B, Name: "ACCEL_XOUT_H", Desc: "Accel X high byte", Access: "R"},
		{Address: 0x3C, Name: "ACCEL_XOUT_L", Desc: "Accel X low byte", Access: "R"},
		{Address: 0x3D, Name: "ACCEL_YOUT_H", Desc: "Accel Y high byte", Access: "R"},
		{Address: 0x3E, Name: "ACCEL_YOUT_L", Desc: "Accel Y low byte", Access: "R"},
		{Address: 0x3F, Name: "ACCEL_ZOUT_H", Desc: "Accel Z high byte", Access: "R"},
		{Address: 0x40, Name: "ACCEL_ZOUT_L", Desc: "Accel Z low byte", Access: "R"},
		{Address: 0x41, Name: "TEMP_OUT_H", Desc: "Die temperature high byte", Access: "R"},
		{Address: 0x42, Name: "TEMP_OUT_L", Desc: "Die temperature low byte", Access: "R"},
		{Address: 0x43, Name: "GYRO_XOUT_H", Desc: "Gyro X high byte", Access: "R"},
		{Address: 0x44, Name: "GYRO_XOUT_L", Desc: "Gyro X low byte", Access: "R"},
		{Address: 0x45, Name: "GYRO_YOUT_H", Desc: "Gyro Y high byte", Access: "R"},
		{Address: 0x46, Name: "GYRO_YOUT_L", Desc: "Gyro Y low byte", Access: "R"},
		{Address: 0x47, Name: "GYRO_ZOUT_H", Desc: "Gyro Z high byte", Access: "R"},
		{Address: 0x48, Name: "GYRO_ZOUT_L", Desc: "Gyro Z low byte", Access: "R"},
		{Address: 0x6A, Name: "USER_CTRL", Desc: "FIFO, DMP and I2C master switches", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "DMP_EN", Values: "1=coprocessor running"},
				{Bits: "6", Name: "FIFO_EN", Values: "1=FIFO running"},
				{Bits: "5", Name: "I2C_MST_EN", Values: "1=internal master owns the aux bus"},
				{Bits: "3", Name: "DMP_RST", Values: "1=reset coprocessor"},
				{Bits: "2", Name: "FIFO_RST", Values: "1=reset FIFO"},
			}},
		{Address: 0x6B, Name: "PWR_MGMT_1", Desc: "Reset, sleep and clock source", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "H_RESET", Values: "1=reset device"},
				{Bits: "6", Name: "SLEEP", Values: "1=sleep"},
				{Bits: "2:0", Name: "CLKSEL", Values: "0=internal 20MHz, 1=auto"},
			}},
		{Address: 0x6C, Name: "PWR_MGMT_2", Desc: "Per-axis sensor disable", Access: "RW"},
		{Address: 0x6D, Name: "BANK_SEL_H", Desc: "DMP memory bank select high byte", Access: "RW"},
		{Address: 0x6E, Name: "BANK_SEL_L", Desc: "DMP memory bank select low byte", Access: "RW"},
		{Address: 0x6F, Name: "MEM_R_W", Desc: "DMP memory window at the selected bank", Access: "RW"},
		{Address: 0x70, Name: "PRGM_START_H", Desc: "DMP program start address high byte", Access: "RW"},
		{Address: 0x71, Name: "PRGM_START_L", Desc: "DMP program start address low byte", Access: "RW"},
		{Address: 0x72, Name: "FIFO_COUNTH", Desc: "FIFO byte count high byte", Access: "R"},
		{Address: 0x73, Name: "FIFO_COUNTL", Desc: "FIFO byte count low byte", Access: "R"},
		{Address: 0x74, Name: "FIFO_R_W", Desc: "FIFO read/write port", Access: "RW"},
		{Address: 0x75, Name: "WHO_AM_I", Desc: "Device identity, reads 0x71", Access: "R"},
	}
}

// ak8963RegisterMap covers the magnetometer, reachable while bypass is on.
func ak8963RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x00, Name: "WIA", Desc: "Device identity, reads 0x48", Access: "R"},
		{Address: 0x02, Name: "ST1", Desc: "Data ready and overrun status", Access: "R",
			BitFields: []BitField{
				{Bits: "0", Name: "DRDY", Values: "1=new measurement ready"},
				{Bits: "1", Name: "DOR", Values: "1=measurement skipped"},
			}},
		{Address: 0x03, Name: "HXL", Desc: "Field X low byte (little endian)", Access: "R"},
		{Address: 0x04, Name: "HXH", Desc: "Field X high byte", Access: "R"},
		{Address: 0x05, Name: "HYL", Desc: "Field Y low byte", Access: "R"},
		{Address: 0x06, Name: "HYH", Desc: "Field Y high byte", Access: "R"},
		{Address: 0x07, Name: "HZL", Desc: "Field Z low byte", Access: "R"},
		{Address: 0x08, Name: "HZH", Desc: "Field Z high byte", Access: "R"},
		{Address: 0x09, Name: "ST2", Desc: "Saturation flag, reading ends the cycle", Access: "R",
			BitFields: []BitField{
				{Bits: "3", Name: "HOFL", Values: "1=sensor saturated, discard sample"},
			}},
		{Address: 0x0A, Name: "CNTL1", Desc: "Operating mode and resolution", Access: "RW",
			BitFields: []BitField{
				{Bits: "3:0", Name: "MODE", Values: "0=power down, 6=continuous 100Hz, 15=fuse ROM"},
				{Bits: "4", Name: "BIT", Values: "1=16-bit output"},
			}},
		{Address: 0x10, Name: "ASAX", Desc: "Factory sensitivity adjust X", Access: "R"},
		{Address: 0x11, Name: "ASAY", Desc: "Factory sensitivity adjust Y", Access: "R"},
		{Address: 0x12, Name: "ASAZ", Desc: "Factory sensitivity adjust Z", Access: "R"},
	}
}
