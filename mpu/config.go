/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	config.go: ranges, filters, sampling and power configuration.
*/

package mpu

import (
	"time"

	"github.com/b3nn0/dmpcompass/common"
	"github.com/pkg/errors"
)

// SetGyroFSR sets the gyro full-scale range in dps (250, 500, 1000 or 2000).
func (m *MPU9150) SetGyroFSR(dps int) error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	var fsr GyroFSR
	switch dps {
	case 250:
		fsr = GyroFSR250
	case 500:
		fsr = GyroFSR500
	case 1000:
		fsr = GyroFSR1000
	case 2000:
		fsr = GyroFSR2000
	default:
		return errors.Wrapf(ErrInvalidFSR, "gyro %d dps", dps)
	}
	if m.chip.gyroFSR.Is(fsr) {
		return nil
	}
	if err := m.writeReg(RegGyroCfg, byte(fsr)<<3); err != nil {
		return err
	}
	m.chip.gyroFSR.Set(fsr)
	return nil
}

// SetAccelFSR sets the accel full-scale range in g (2, 4, 8 or 16).
func (m *MPU9150) SetAccelFSR(g int) error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	var fsr AccelFSR
	switch g {
	case 2:
		fsr = AccelFSR2G
	case 4:
		fsr = AccelFSR4G
	case 8:
		fsr = AccelFSR8G
	case 16:
		fsr = AccelFSR16G
	default:
		return errors.Wrapf(ErrInvalidFSR, "accel %dg", g)
	}
	if m.chip.accelFSR.Is(fsr) {
		return nil
	}
	if err := m.writeReg(RegAccelCfg, byte(fsr)<<3); err != nil {
		return err
	}
	m.chip.accelFSR.Set(fsr)
	return nil
}

// SetLPF picks the highest filter cutoff not above hz.
func (m *MPU9150) SetLPF(hz int) error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	lpf := LPF5
	for _, b := range lpfLadder {
		if hz >= b.hz {
			lpf = b.lpf
			break
		}
	}
	if m.chip.lpf.Is(lpf) {
		return nil
	}
	if err := m.writeReg(RegLPF, byte(lpf)); err != nil {
		return err
	}
	m.chip.lpf.Set(lpf)
	return nil
}

// SetSampleRate sets the sampling rate, clamped to [4, 1000]Hz. The rate actually
// achieved is 1000/(1+div) and may differ from the request. The compass rate and
// the LPF (half the sample rate) follow.
func (m *MPU9150) SetSampleRate(hz int) error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	if m.chip.dmpOn {
		return ErrDMPOn
	}
	if m.chip.lpAccelMode {
		if hz > 0 && hz <= 40 {
			return m.LPAccelMode(hz)
		}
		if err := m.LPAccelMode(0); err != nil {
			return err
		}
	}

	hz = common.Clamp(hz, minSampleRate, maxSampleRate)
	div := byte(1000/hz - 1)
	if err := m.writeReg(RegRateDiv, div); err != nil {
		return err
	}
	rate := 1000 / (1 + int(div))
	m.chip.sampleRate.Set(rate)
	m.log.WithField("rate", rate).Debug("MPU9150 Info: sample rate set")

	if cur, ok := m.chip.compassSampleRate.Get(); ok {
		want := common.Min(common.Min(cur, maxCompassSampleRate), rate)
		if err := m.SetCompassSampleRate(want); err != nil {
			return err
		}
	}

	return m.SetLPF(rate >> 1)
}

// SetCompassSampleRate sets the slave sampling rate as a divider of the sample
// rate. It must not exceed the sample rate or 100Hz.
func (m *MPU9150) SetCompassSampleRate(hz int) error {
	sr, ok := m.chip.sampleRate.Get()
	if !ok {
		return errors.Wrap(ErrInvalidRate, "sample rate not configured")
	}
	if hz <= 0 || hz > sr || hz > maxCompassSampleRate {
		return errors.Wrapf(ErrInvalidRate, "compass %dHz", hz)
	}
	div := byte(sr/hz - 1)
	if err := m.writeReg(RegS4Ctrl, div); err != nil {
		return err
	}
	m.chip.compassSampleRate.Set(sr / (int(div) + 1))
	return nil
}

// SetSensors powers on the sensors in mask and puts the rest in standby.
// A zero mask puts the chip to sleep.
func (m *MPU9150) SetSensors(mask Sensor) error {
	var data byte
	switch {
	case mask&XYZGyro != 0:
		data = byte(ClockPLL)
	case mask != 0:
		data = 0
	default:
		data = bitSleep
	}
	if err := m.writeReg(RegPwrMgmt1, data); err != nil {
		m.chip.sensors.Set(0)
		return err
	}
	m.chip.clkSrc = ClockSource(data &^ bitSleep)

	data = 0
	if mask&XGyro == 0 {
		data |= bitStbyXG
	}
	if mask&YGyro == 0 {
		data |= bitStbyYG
	}
	if mask&ZGyro == 0 {
		data |= bitStbyZG
	}
	if mask&XYZAccel == 0 {
		data |= bitStbyXYZA
	}
	if err := m.writeReg(RegPwrMgmt2, data); err != nil {
		m.chip.sensors.Set(0)
		return err
	}

	if mask != 0 && mask != XYZAccel {
		// Latched interrupts are only used in low-power accel mode.
		if err := m.SetIntLatched(false); err != nil {
			return err
		}
	}

	uc, err := m.readReg(RegUserCtrl)
	if err != nil {
		return err
	}
	if mask&XYZCompass != 0 {
		data = akmSingleMeasurement
		uc |= bitAuxIfEn
	} else {
		data = akmPowerDown
		uc &^= bitAuxIfEn
	}
	if m.chip.dmpOn {
		uc |= bitDMPEn
	} else {
		uc &^= bitDMPEn
	}
	if err := m.writeReg(RegS1DO, data); err != nil {
		return err
	}
	if err := m.writeReg(RegUserCtrl, uc); err != nil {
		return err
	}

	m.chip.sensors.Set(mask)
	m.chip.lpAccelMode = false
	m.sleep(50 * time.Millisecond)
	return nil
}

// SetBypass routes the auxiliary I2C bus straight to the host when on. When off
// the chip's I2C master owns it.
func (m *MPU9150) SetBypass(on bool) error {
	if m.chip.bypass.Is(on) {
		return nil
	}

	uc, err := m.readReg(RegUserCtrl)
	if err != nil {
		return err
	}
	if on || !m.chip.compassOn() {
		uc &^= bitAuxIfEn
	} else {
		uc |= bitAuxIfEn
	}
	if err := m.writeReg(RegUserCtrl, uc); err != nil {
		return err
	}
	m.sleep(3 * time.Millisecond)

	var pin byte
	if on {
		pin = bitBypassEn
	}
	if m.chip.activeLowInt {
		pin |= bitActl
	}
	if m.chip.latchedInt {
		pin |= bitLatchEn | bitAnyRdClr
	}
	if err := m.writeReg(RegIntPinCfg, pin); err != nil {
		return err
	}
	m.chip.bypass.Set(on)
	return nil
}

// SetIntLatched selects latched (cleared on any read) or 50us pulsed interrupts.
func (m *MPU9150) SetIntLatched(enable bool) error {
	if m.chip.latchedInt == enable {
		return nil
	}
	var pin byte
	if enable {
		pin = bitLatchEn | bitAnyRdClr
	}
	if m.chip.bypassOn() {
		pin |= bitBypassEn
	}
	if m.chip.activeLowInt {
		pin |= bitActl
	}
	if err := m.writeReg(RegIntPinCfg, pin); err != nil {
		return err
	}
	m.chip.latchedInt = enable
	return nil
}

// setIntEnable toggles the data-ready interrupt, or the DMP interrupt when the DMP is on.
func (m *MPU9150) setIntEnable(enable bool) error {
	var v byte
	if m.chip.dmpOn {
		if enable {
			v = bitDMPIntEn
		}
	} else {
		if m.chip.asleep() {
			return ErrChipAsleep
		}
		if enable && m.chip.intEnable != 0 {
			return nil
		}
		if enable {
			v = bitDataRdyEn
		}
	}
	if err := m.writeReg(RegIntEnable, v); err != nil {
		return err
	}
	m.chip.intEnable = v
	return nil
}

// LPAccelMode puts the chip into accel-only low-power cycling at the next
// supported wake-up rate at or above hz (1.25, 5, 20 or 40Hz). Zero leaves the mode.
func (m *MPU9150) LPAccelMode(hz int) error {
	if hz < 0 || hz > 40 {
		return errors.Wrapf(ErrLPAccelRate, "%dHz", hz)
	}

	if hz == 0 {
		if err := m.SetIntLatched(false); err != nil {
			return err
		}
		if err := m.writeRegs(RegPwrMgmt1, []byte{0, bitStbyXYZG}); err != nil {
			return err
		}
		m.chip.clkSrc = ClockInternal
		m.chip.sensors.Set(XYZAccel)
		m.chip.lpAccelMode = false
		return nil
	}

	if err := m.SetIntLatched(true); err != nil {
		return err
	}

	var (
		rate LPAccelRate
		lpf  int
	)
	switch {
	case hz == 1:
		rate, lpf = LPAccel1_25Hz, 5
	case hz <= 5:
		rate, lpf = LPAccel5Hz, 5
	case hz <= 20:
		rate, lpf = LPAccel20Hz, 10
	default:
		rate, lpf = LPAccel40Hz, 20
	}
	if err := m.SetLPF(lpf); err != nil {
		return err
	}

	if err := m.writeRegs(RegPwrMgmt1, []byte{bitLPACycle, byte(rate)<<6 | bitStbyXYZG}); err != nil {
		return err
	}
	m.chip.sensors.Set(XYZAccel)
	m.chip.clkSrc = ClockInternal
	m.chip.lpAccelMode = true

	if _, err := m.ConfigureFIFO(0); err != nil {
		return err
	}
	return nil
}
