/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	fakebus.go: in-memory I2C bus with an MPU-9150 register file for tests.
*/

// Package mputest provides a scriptable register bus for exercising the mpu
// driver without hardware.
package mputest

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNAK is returned for transactions to an address with no device.
var ErrNAK = errors.New("mputest: no ACK")

const (
	regBankSel  = 0x6D
	regMemStart = 0x6E
	regMemRW    = 0x6F
	regFIFOCnt  = 0x72
	regFIFORW   = 0x74
)

// Txn is one recorded bus transaction.
type Txn struct {
	Write bool
	Addr  byte
	Reg   byte
	Data  []byte
}

func (t Txn) String() string {
	dir := "R"
	if t.Write {
		dir = "W"
	}
	return fmt.Sprintf("%s 0x%02X/0x%02X % X", dir, t.Addr, t.Reg, t.Data)
}

type failKey struct {
	addr, reg byte
	write     bool
}

// FakeBus records every transaction and serves reads from per-device register
// files. The MPU device at Main also models DMP memory and the FIFO.
type FakeBus struct {
	Main byte
	Regs map[byte]*[256]byte
	Log  []Txn

	// FIFO holds bytes waiting to be read from FIFO_R_W; the count registers
	// report its length.
	FIFO []byte
	// Mem is DMP memory.
	Mem [1 << 16]byte
	// MemXOR is applied to every DMP memory read, to corrupt verification.
	MemXOR byte

	fail map[failKey]error
}

// New returns a bus with an MPU-9150 at addr whose product ID is 4 and whose
// revision bits read 0.
func New(addr byte) *FakeBus {
	f := &FakeBus{
		Main: addr,
		Regs: map[byte]*[256]byte{},
		fail: map[failKey]error{},
	}
	r := f.AddDevice(addr)
	r[0x0C] = 0x04
	r[0x75] = addr
	return f
}

// AddDevice makes addr answer and returns its register file.
func (f *FakeBus) AddDevice(addr byte) *[256]byte {
	r := &[256]byte{}
	f.Regs[addr] = r
	return r
}

// AddCompass attaches an AK8975 at addr with the given sensitivity adjustment.
func (f *FakeBus) AddCompass(addr byte, asa [3]byte) *[256]byte {
	r := f.AddDevice(addr)
	r[0x00] = 0x48
	copy(r[0x10:], asa[:])
	return r
}

// Reg returns the register file of the main device.
func (f *FakeBus) Reg() *[256]byte { return f.Regs[f.Main] }

// FailOn makes every matching transaction return err.
func (f *FakeBus) FailOn(addr, reg byte, write bool, err error) {
	f.fail[failKey{addr, reg, write}] = err
}

// ClearLog forgets recorded transactions.
func (f *FakeBus) ClearLog() { f.Log = nil }

// Writes returns the recorded writes.
func (f *FakeBus) Writes() []Txn {
	var out []Txn
	for _, t := range f.Log {
		if t.Write {
			out = append(out, t)
		}
	}
	return out
}

// WritesTo returns the recorded writes to reg on the main device.
func (f *FakeBus) WritesTo(reg byte) []Txn {
	var out []Txn
	for _, t := range f.Log {
		if t.Write && t.Addr == f.Main && t.Reg == reg {
			out = append(out, t)
		}
	}
	return out
}

func (f *FakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	if err := f.check(addr, reg, false); err != nil {
		return err
	}
	r := f.Regs[addr]
	switch {
	case addr == f.Main && reg == regFIFOCnt && len(value) == 2:
		value[0], value[1] = byte(len(f.FIFO)>>8), byte(len(f.FIFO))
	case addr == f.Main && reg == regFIFORW:
		n := copy(value, f.FIFO)
		f.FIFO = f.FIFO[n:]
	case addr == f.Main && reg == regMemRW:
		p := f.memPtr()
		for ii := range value {
			value[ii] = f.Mem[p+uint16(ii)] ^ f.MemXOR
		}
		f.advance(len(value))
	default:
		for ii := range value {
			value[ii] = r[(int(reg)+ii)&0xFF]
		}
	}
	f.record(false, addr, reg, value)
	return nil
}

func (f *FakeBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	var b [1]byte
	if err := f.ReadFromReg(addr, reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f *FakeBus) WriteToReg(addr, reg byte, value []byte) error {
	if err := f.check(addr, reg, true); err != nil {
		return err
	}
	f.record(true, addr, reg, value)
	r := f.Regs[addr]
	switch {
	case addr == f.Main && reg == regMemRW:
		p := f.memPtr()
		for ii, v := range value {
			f.Mem[p+uint16(ii)] = v
		}
		f.advance(len(value))
	case addr == f.Main && reg == regFIFORW:
	default:
		for ii, v := range value {
			r[(int(reg)+ii)&0xFF] = v
		}
	}
	return nil
}

func (f *FakeBus) WriteByteToReg(addr, reg, value byte) error {
	return f.WriteToReg(addr, reg, []byte{value})
}

func (f *FakeBus) check(addr, reg byte, write bool) error {
	if err, ok := f.fail[failKey{addr, reg, write}]; ok {
		return err
	}
	if _, ok := f.Regs[addr]; !ok {
		return ErrNAK
	}
	return nil
}

func (f *FakeBus) record(write bool, addr, reg byte, value []byte) {
	f.Log = append(f.Log, Txn{Write: write, Addr: addr, Reg: reg, Data: append([]byte(nil), value...)})
}

func (f *FakeBus) memPtr() uint16 {
	r := f.Reg()
	return uint16(r[regBankSel])<<8 | uint16(r[regMemStart])
}

func (f *FakeBus) advance(n int) {
	r := f.Reg()
	r[regMemStart] += byte(n)
}
