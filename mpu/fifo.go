/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	fifo.go: FIFO routing, reset and draining; DMP on/off; interrupt status.
*/

package mpu

import (
	"time"

	"github.com/pkg/errors"
)

// FIFOConfig is the outcome of ConfigureFIFO. Partial is set when some requested
// sensors are powered off and were left out of the FIFO.
type FIFOConfig struct {
	Requested Sensor
	Applied   Sensor
	Partial   bool
}

// ConfigureFIFO routes the sensors in mask into the FIFO. The compass bit is
// ignored. Sensors that are not powered are skipped and reported as Partial.
// While the DMP is on it owns the FIFO and this is a no-op.
func (m *MPU9150) ConfigureFIFO(mask Sensor) (FIFOConfig, error) {
	mask &^= XYZCompass
	res := FIFOConfig{Requested: mask, Applied: mask}
	if m.chip.dmpOn {
		return res, nil
	}
	if m.chip.asleep() {
		return res, ErrChipAsleep
	}

	prev := m.chip.fifoEnable
	res.Applied = mask & m.chip.powered()
	res.Partial = res.Applied != mask
	m.chip.fifoEnable.Set(res.Applied)

	if err := m.setIntEnable(res.Applied != 0 || m.chip.lpAccelMode); err != nil {
		return res, err
	}
	if res.Applied != 0 {
		if err := m.ResetFIFO(); err != nil {
			m.chip.fifoEnable = prev
			return res, err
		}
	}
	if res.Partial {
		m.log.WithField("requested", mask).WithField("applied", res.Applied).
			Warn("MPU9150 Info: FIFO configured for powered sensors only")
	}
	return res, nil
}

// ResetFIFO clears the FIFO pointers (and the DMP when it is on) and restores
// the cached interrupt and FIFO routing.
func (m *MPU9150) ResetFIFO() error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	if err := m.writeReg(RegIntEnable, 0); err != nil {
		return err
	}
	if err := m.writeReg(RegFIFOEn, 0); err != nil {
		return err
	}
	if err := m.writeReg(RegUserCtrl, 0); err != nil {
		return err
	}

	if m.chip.dmpOn {
		if err := m.writeReg(RegUserCtrl, bitFIFORst|bitDMPRst); err != nil {
			return err
		}
		m.sleep(50 * time.Millisecond)
		uc := bitDMPEn | bitFIFOEn
		if m.chip.compassOn() {
			uc |= bitAuxIfEn
		}
		if err := m.writeReg(RegUserCtrl, uc); err != nil {
			return err
		}
		var ie byte
		if m.chip.intEnable != 0 {
			ie = bitDMPIntEn
		}
		if err := m.writeReg(RegIntEnable, ie); err != nil {
			return err
		}
		if err := m.writeReg(RegFIFOEn, 0); err != nil {
			return err
		}
	} else {
		if err := m.writeReg(RegUserCtrl, bitFIFORst); err != nil {
			return err
		}
		uc := bitFIFOEn
		if m.chip.compassOn() && !m.chip.bypassOn() {
			uc |= bitAuxIfEn
		}
		if err := m.writeReg(RegUserCtrl, uc); err != nil {
			return err
		}
		m.sleep(50 * time.Millisecond)
		var ie byte
		if m.chip.intEnable != 0 {
			ie = bitDataRdyEn
		}
		if err := m.writeReg(RegIntEnable, ie); err != nil {
			return err
		}
		if err := m.writeReg(RegFIFOEn, byte(m.chip.fifoEnable.Or(0))); err != nil {
			return err
		}
	}
	fifoResets.Inc()
	return nil
}

// ReadFIFOStream reads one DMP packet of len(buf) bytes. more is the number of
// complete packets still waiting. An overflowed FIFO is reset and reported as
// ErrFIFOOverflow.
func (m *MPU9150) ReadFIFOStream(buf []byte) (more int, err error) {
	if !m.chip.dmpOn {
		return 0, ErrDMPOff
	}
	if m.chip.asleep() {
		return 0, ErrChipAsleep
	}
	if len(buf) == 0 {
		return 0, errors.New("mpu: zero-length FIFO packet")
	}

	var tmp [2]byte
	if err := m.readRegs(RegFIFOCountH, tmp[:]); err != nil {
		return 0, err
	}
	count := int(tmp[0])<<8 | int(tmp[1])
	if count < len(buf) {
		return 0, ErrFIFOEmpty
	}
	if count > maxFIFO>>1 {
		st, err := m.readReg(RegIntStatus)
		if err != nil {
			return 0, err
		}
		if st&bitFIFOOverflw != 0 {
			fifoOverflows.Inc()
			m.log.WithField("count", count).Warn("MPU9150 Info: FIFO overflow")
			if err := m.ResetFIFO(); err != nil {
				return 0, err
			}
			return 0, ErrFIFOOverflow
		}
	}

	if err := m.readRegs(RegFIFORW, buf); err != nil {
		return 0, err
	}
	return count/len(buf) - 1, nil
}

// IntStatus returns the DMP interrupt status in the high byte and the main
// interrupt status in the low byte.
func (m *MPU9150) IntStatus() (uint16, error) {
	if m.chip.asleep() {
		return 0, ErrChipAsleep
	}
	var tmp [2]byte
	if err := m.readRegs(RegDMPIntStat, tmp[:]); err != nil {
		return 0, err
	}
	return uint16(tmp[0])<<8 | uint16(tmp[1]), nil
}

// SetDMPState starts or stops the motion processor. Starting requires loaded
// firmware and switches the chip to the firmware's fixed sample rate.
func (m *MPU9150) SetDMPState(enable bool) error {
	if m.chip.dmpOn == enable {
		return nil
	}

	if enable {
		if !m.chip.dmpLoaded {
			return ErrDMPNotLoaded
		}
		if err := m.setIntEnable(false); err != nil {
			return err
		}
		if err := m.SetBypass(false); err != nil {
			return err
		}
		if err := m.SetSampleRate(m.chip.dmpSampleRate); err != nil {
			return err
		}
		if err := m.writeReg(RegFIFOEn, 0); err != nil {
			return err
		}
		m.chip.dmpOn = true
		if err := m.setIntEnable(true); err != nil {
			return err
		}
		if err := m.ResetFIFO(); err != nil {
			return err
		}
		m.log.WithField("rate", m.chip.dmpSampleRate).Info("MPU9150 Info: DMP on")
		return nil
	}

	if err := m.setIntEnable(false); err != nil {
		return err
	}
	if err := m.writeReg(RegFIFOEn, byte(m.chip.fifoEnable.Or(0))); err != nil {
		return err
	}
	m.chip.dmpOn = false
	if err := m.ResetFIFO(); err != nil {
		return err
	}
	m.log.Info("MPU9150 Info: DMP off")
	return nil
}
