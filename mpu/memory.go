/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	memory.go: DMP memory access and firmware loading.
*/

package mpu

import (
	"bytes"

	"github.com/pkg/errors"
)

// WriteMem writes data to DMP memory at addr. The access must stay inside one
// 256-byte bank.
func (m *MPU9150) WriteMem(addr uint16, data []byte) error {
	if err := m.checkMem(addr, len(data)); err != nil {
		return err
	}
	if err := m.writeRegs(RegBankSel, []byte{byte(addr >> 8), byte(addr)}); err != nil {
		return err
	}
	return m.writeRegs(RegMemRW, data)
}

// ReadMem fills buf from DMP memory at addr. The access must stay inside one bank.
func (m *MPU9150) ReadMem(addr uint16, buf []byte) error {
	if err := m.checkMem(addr, len(buf)); err != nil {
		return err
	}
	if err := m.writeRegs(RegBankSel, []byte{byte(addr >> 8), byte(addr)}); err != nil {
		return err
	}
	return m.readRegs(RegMemRW, buf)
}

func (m *MPU9150) checkMem(addr uint16, n int) error {
	if m.chip.asleep() {
		return ErrChipAsleep
	}
	if int(addr&0xFF)+n > bankSize {
		return errors.Wrapf(ErrBankCrossing, "0x%04X+%d", addr, n)
	}
	return nil
}

// LoadFirmware writes image to DMP memory in 16-byte chunks, verifying each by
// read-back, then sets the program start address. Firmware can be loaded once
// per driver; later calls fail without touching the bus.
func (m *MPU9150) LoadFirmware(image []byte, start uint16, sampleRate int) error {
	if m.chip.dmpLoaded {
		return ErrFirmwareLoaded
	}
	if image == nil {
		return ErrNilFirmware
	}
	if sampleRate < 4 || sampleRate > 1000 {
		return errors.Wrapf(ErrInvalidRate, "DMP %dHz", sampleRate)
	}

	cur := make([]byte, loadChunk)
	for ii := 0; ii < len(image); ii += loadChunk {
		n := loadChunk
		if len(image)-ii < n {
			n = len(image) - ii
		}
		chunk := image[ii : ii+n]
		if err := m.WriteMem(uint16(ii), chunk); err != nil {
			return err
		}
		if err := m.ReadMem(uint16(ii), cur[:n]); err != nil {
			return err
		}
		if !bytes.Equal(chunk, cur[:n]) {
			return errors.Wrapf(ErrFirmwareMismatch, "at 0x%04X", ii)
		}
	}

	if err := m.writeRegs(RegPrgmStartH, []byte{byte(start >> 8), byte(start)}); err != nil {
		return err
	}
	m.chip.dmpLoaded = true
	m.chip.dmpSampleRate = sampleRate
	m.log.WithField("bytes", len(image)).WithField("start", start).Info("MPU9150 Info: DMP firmware loaded")
	return nil
}
