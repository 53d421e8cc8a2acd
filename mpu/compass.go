/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	compass.go: AK8975 discovery, fuse ROM and slave reads through the I2C master.
*/

package mpu

import (
	"time"

	"golang.org/x/exp/slices"
)

var compassAddrs = []byte{compassAddrFirst, 0x0D, 0x0E, compassAddrLast}

// setupCompass finds the AK8975 on the auxiliary bus, reads its sensitivity
// adjustment and programs slave 0 to read ST1..ST2 and slave 1 to trigger a
// single measurement after each read.
func (m *MPU9150) setupCompass() error {
	if err := m.SetBypass(true); err != nil {
		return err
	}

	// A missing device NAKs; that is not a bus fault.
	i := slices.IndexFunc(compassAddrs, func(a byte) bool {
		id, err := m.bus.ReadByteFromReg(a, akmRegWhoAmI)
		return err == nil && id == akmWhoAmI
	})
	if i < 0 {
		m.log.Warn("MPU9150 Info: compass not found")
		return ErrNoCompass
	}
	addr := compassAddrs[i]
	m.chip.compassAddr = addr

	if err := m.writeTo(addr, akmRegCntl, akmPowerDown); err != nil {
		return err
	}
	m.sleep(time.Millisecond)
	if err := m.writeTo(addr, akmRegCntl, akmFuseROMAccess); err != nil {
		return err
	}
	m.sleep(time.Millisecond)

	var asa [3]byte
	if err := m.readFrom(addr, akmRegASAX, asa[:]); err != nil {
		return err
	}
	for ii, v := range asa {
		m.chip.magSensAdj[ii] = int16(v) + 128
	}

	if err := m.writeTo(addr, akmRegCntl, akmPowerDown); err != nil {
		return err
	}
	m.sleep(time.Millisecond)

	if err := m.SetBypass(false); err != nil {
		return err
	}

	seq := []struct{ reg, v byte }{
		{RegI2CMst, 0x40}, // stop between reads, 400kHz
		{RegS0Addr, bitI2CRead | addr},
		{RegS0Reg, akmRegST1},
		{RegS0Ctrl, bitSlaveEn | 8},
		{RegS1Addr, addr},
		{RegS1Reg, akmRegCntl},
		{RegS1Ctrl, bitSlaveEn | 1},
		{RegS1DO, akmSingleMeasurement},
		{RegI2CDelayCtl, 0x03}, // slaves 0 and 1 run at the compass rate
		{RegYGOffsTC, bitI2CMstVDDIO},
	}
	for _, w := range seq {
		if err := m.writeReg(w.reg, w.v); err != nil {
			return err
		}
	}
	m.log.WithField("compass", addr).WithField("asa", m.chip.magSensAdj).Info("MPU9150 Info: compass bound")
	return nil
}

// CompassReg returns the last compass sample copied by slave 0, scaled by the
// factory sensitivity adjustment. Stale or flagged samples are rejected.
func (m *MPU9150) CompassReg() ([3]int16, time.Time, error) {
	var data [3]int16
	if !m.chip.compassOn() {
		return data, time.Time{}, ErrCompassOff
	}

	var buf [8]byte
	if err := m.readRegs(RegRawCompass, buf[:]); err != nil {
		return data, time.Time{}, err
	}
	if buf[0]&akmDataReady == 0 {
		compassRejects.WithLabelValues("not_ready").Inc()
		return data, time.Time{}, ErrCompassNotReady
	}
	if buf[7]&(akmOverflow|akmDataError) != 0 {
		compassRejects.WithLabelValues("overflow").Inc()
		return data, time.Time{}, ErrCompassOverflow
	}

	for ii := range data {
		raw := int16(uint16(buf[2*ii+2])<<8 | uint16(buf[2*ii+1]))
		data[ii] = int16(int32(raw) * int32(m.chip.magSensAdj[ii]) >> 8)
	}
	return data, m.now(), nil
}
