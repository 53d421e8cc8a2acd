/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	bias.go: accel bias registers and die temperature.
*/

package mpu

// SetAccelBias adds bias (in 2g-range LSB) to the factory accel bias registers,
// scaled by each axis's factory gain fuse.
func (m *MPU9150) SetAccelBias(bias [3]int64) error {
	if bias == [3]int64{} {
		return nil
	}

	var fg [3]byte
	if err := m.readRegs(RegAccelGain, fg[:]); err != nil {
		return err
	}
	var regs [6]byte
	if err := m.readRegs(RegAccelOffs, regs[:]); err != nil {
		return err
	}

	for ii := range bias {
		gain := int64((fg[ii]>>4)+8) & 0x0F
		hw := int16(bias[ii] * 2 / (64 + gain))
		hw += int16(uint16(regs[2*ii])<<8 | uint16(regs[2*ii+1]))
		regs[2*ii] = byte(uint16(hw) >> 8)
		regs[2*ii+1] = byte(hw)
	}
	return m.writeRegs(RegAccelOffs, regs[:])
}

// Temperature returns the die temperature in degrees C.
func (m *MPU9150) Temperature() (float64, error) {
	if m.chip.asleep() {
		return 0, ErrChipAsleep
	}
	var tmp [2]byte
	if err := m.readRegs(RegTemp, tmp[:]); err != nil {
		return 0, err
	}
	raw := int16(uint16(tmp[0])<<8 | uint16(tmp[1]))
	return 35 + (float64(raw)-tempOffset)/tempSens, nil
}
