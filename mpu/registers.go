/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	registers.go: MPU-9150 and AK8975 register map.
*/

package mpu

// Address is the default I2C address of the MPU-9150 (AD0 low).
const Address byte = 0x68

// Main device registers. Multi-byte registers are big-endian.
const (
	RegYGOffsTC    byte = 0x01 // I2C_MST_VDDIO lives here
	RegProdID      byte = 0x0C
	RegAccelOffs   byte = 0x06 // factory accel bias, 3 x int16; bit 0 of the odd bytes holds the revision
	RegRateDiv     byte = 0x19
	RegLPF         byte = 0x1A
	RegGyroCfg     byte = 0x1B
	RegAccelCfg    byte = 0x1C
	RegMotionThr   byte = 0x1F
	RegMotionDur   byte = 0x20
	RegFIFOEn      byte = 0x23
	RegI2CMst      byte = 0x24
	RegS0Addr      byte = 0x25
	RegS0Reg       byte = 0x26
	RegS0Ctrl      byte = 0x27
	RegS1Addr      byte = 0x28
	RegS1Reg       byte = 0x29
	RegS1Ctrl      byte = 0x2A
	RegS4Ctrl      byte = 0x34
	RegIntPinCfg   byte = 0x37
	RegIntEnable   byte = 0x38
	RegDMPIntStat  byte = 0x39
	RegIntStatus   byte = 0x3A
	RegRawAccel    byte = 0x3B
	RegTemp        byte = 0x41
	RegRawGyro     byte = 0x43
	RegRawCompass  byte = 0x49 // EXT_SENS_DATA_00, filled by slave 0
	RegS0DO        byte = 0x63
	RegS1DO        byte = 0x64
	RegI2CDelayCtl byte = 0x67
	RegUserCtrl    byte = 0x6A
	RegPwrMgmt1    byte = 0x6B
	RegPwrMgmt2    byte = 0x6C
	RegBankSel     byte = 0x6D
	RegMemStart    byte = 0x6E
	RegMemRW       byte = 0x6F
	RegPrgmStartH  byte = 0x70
	RegFIFOCountH  byte = 0x72
	RegFIFORW      byte = 0x74
	RegWhoAmI      byte = 0x75

	// Factory accel gain fuse bits (upper nibble of the self-test registers).
	RegAccelGain byte = 0x03
)

// Register bits.
const (
	bitI2CMstVDDIO byte = 0x80
	bitFIFOEn      byte = 0x40
	bitDMPEn       byte = 0x80
	bitFIFORst     byte = 0x04
	bitDMPRst      byte = 0x08
	bitFIFOOverflw byte = 0x10
	bitDataRdyEn   byte = 0x01
	bitDMPIntEn    byte = 0x02
	bitReset       byte = 0x80
	bitSleep       byte = 0x40
	bitSlaveEn     byte = 0x80
	bitI2CRead     byte = 0x80
	bitAuxIfEn     byte = 0x20
	bitActl        byte = 0x80
	bitLatchEn     byte = 0x20
	bitAnyRdClr    byte = 0x10
	bitBypassEn    byte = 0x02
	bitLPACycle    byte = 0x20
	bitStbyXA      byte = 0x20
	bitStbyYA      byte = 0x10
	bitStbyZA      byte = 0x08
	bitStbyXG      byte = 0x04
	bitStbyYG      byte = 0x02
	bitStbyZG      byte = 0x01
	bitStbyXYZA         = bitStbyXA | bitStbyYA | bitStbyZA
	bitStbyXYZG         = bitStbyXG | bitStbyYG | bitStbyZG
)

// AK8975 magnetometer registers. Data registers are little-endian.
const (
	akmRegWhoAmI byte = 0x00
	akmRegST1    byte = 0x02
	akmRegHXL    byte = 0x03
	akmRegST2    byte = 0x09
	akmRegCntl   byte = 0x0A
	akmRegASAX   byte = 0x10

	akmWhoAmI byte = 0x48

	akmDataReady byte = 0x01
	akmOverflow  byte = 0x80
	akmDataError byte = 0x40

	akmPowerDown         byte = 0x00
	akmSingleMeasurement byte = 0x01
	akmFuseROMAccess     byte = 0x0F

	compassAddrFirst byte = 0x0C
	compassAddrLast  byte = 0x0F
)

// Hardware limits.
const (
	maxFIFO              = 1024
	bankSize             = 256
	loadChunk            = 16
	maxCompassSampleRate = 100
	minSampleRate        = 4
	maxSampleRate        = 1000
	tempSens             = 340
	tempOffset           = -521
	compassFSR           = 1200 // uT
)

// Interrupt status bits as returned by IntStatus (DMP status in the high byte).
const (
	IntStatusDataReady    uint16 = 0x0001
	IntStatusDMP          uint16 = 0x0002
	IntStatusPLLReady     uint16 = 0x0004
	IntStatusI2CMst       uint16 = 0x0008
	IntStatusFIFOOverflow uint16 = 0x0010
	IntStatusZMot         uint16 = 0x0020
	IntStatusMot          uint16 = 0x0040
	IntStatusFreeFall     uint16 = 0x0080
	IntStatusDMP0         uint16 = 0x0100
	IntStatusDMP1         uint16 = 0x0200
	IntStatusDMP2         uint16 = 0x0400
	IntStatusDMP3         uint16 = 0x0800
	IntStatusDMP4         uint16 = 0x1000
	IntStatusDMP5         uint16 = 0x2000
)
