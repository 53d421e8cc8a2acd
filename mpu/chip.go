/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	chip.go: cached chip configuration, the driver's view of every hardware-visible setting.
*/

package mpu

import "fmt"

// Sensor is a mask of sensors, using the same bits as the FIFO enable register.
type Sensor byte

const (
	XGyro      Sensor = 0x40
	YGyro      Sensor = 0x20
	ZGyro      Sensor = 0x10
	XYZGyro           = XGyro | YGyro | ZGyro
	XYZAccel   Sensor = 0x08
	XYZCompass Sensor = 0x01

	allSensors = XYZGyro | XYZAccel | XYZCompass
)

func (s Sensor) String() string {
	return fmt.Sprintf("0x%02X", byte(s))
}

// GyroFSR is the gyro full-scale range; its ordinal is the register value >> 3.
type GyroFSR byte

const (
	GyroFSR250 GyroFSR = iota
	GyroFSR500
	GyroFSR1000
	GyroFSR2000
)

var gyroFSRDPS = [...]int{250, 500, 1000, 2000}

// DPS returns the range in degrees per second.
func (f GyroFSR) DPS() int { return gyroFSRDPS[f] }

// AccelFSR is the accel full-scale range; its ordinal is the register value >> 3.
type AccelFSR byte

const (
	AccelFSR2G AccelFSR = iota
	AccelFSR4G
	AccelFSR8G
	AccelFSR16G
)

var accelFSRG = [...]int{2, 4, 8, 16}

// G returns the range in g.
func (f AccelFSR) G() int { return accelFSRG[f] }

// LPF is the digital low pass filter setting written to the config register.
type LPF byte

const (
	LPF256NoLPF2 LPF = iota
	LPF188
	LPF98
	LPF42
	LPF20
	LPF10
	LPF5
	LPF2100NoLPF
)

// lpfLadder is searched top-down; the first threshold <= the request wins.
var lpfLadder = []struct {
	hz  int
	lpf LPF
}{
	{188, LPF188},
	{98, LPF98},
	{42, LPF42},
	{20, LPF20},
	{10, LPF10},
	{0, LPF5},
}

var lpfHz = map[LPF]int{LPF188: 188, LPF98: 98, LPF42: 42, LPF20: 20, LPF10: 10, LPF5: 5}

// Hz returns the nominal cutoff in Hz.
func (l LPF) Hz() int { return lpfHz[l] }

// ClockSource selects the chip clock.
type ClockSource byte

const (
	ClockInternal ClockSource = iota
	ClockPLL
)

// LPAccelRate is the low-power accel wake-up rate.
type LPAccelRate byte

const (
	LPAccel1_25Hz LPAccelRate = iota
	LPAccel5Hz
	LPAccel20Hz
	LPAccel40Hz
)

// Setting holds a cached register value that may not have been written yet.
// An unconfigured setting never compares equal to a requested value, so the
// first configuration call always reaches the bus.
type Setting[T comparable] struct {
	v  T
	ok bool
}

// Set records v as the value currently held by the hardware.
func (s *Setting[T]) Set(v T) { s.v, s.ok = v, true }

// Reset marks the setting as unknown.
func (s *Setting[T]) Reset() { *s = Setting[T]{} }

// Get returns the cached value and whether it has been configured.
func (s Setting[T]) Get() (T, bool) { return s.v, s.ok }

// Is reports whether the setting is configured and equal to v.
func (s Setting[T]) Is(v T) bool { return s.ok && s.v == v }

// Or returns the cached value, or def when unconfigured.
func (s Setting[T]) Or(def T) T {
	if !s.ok {
		return def
	}
	return s.v
}

// ChipConfig mirrors the hardware configuration.
type ChipConfig struct {
	sensors           Setting[Sensor]
	gyroFSR           Setting[GyroFSR]
	accelFSR          Setting[AccelFSR]
	lpf               Setting[LPF]
	clkSrc            ClockSource
	sampleRate        Setting[int]
	fifoEnable        Setting[Sensor]
	intEnable         byte
	bypass            Setting[bool]
	accelHalf         bool
	lpAccelMode       bool
	activeLowInt      bool
	latchedInt        bool
	dmpOn             bool
	dmpLoaded         bool
	dmpSampleRate     int
	compassSampleRate Setting[int]
	compassAddr       byte
	magSensAdj        [3]int16
}

// invalidate forgets every setting so the next configuration call writes to the bus.
// dmpLoaded is write-once for the life of the driver and is not touched here.
func (c *ChipConfig) invalidate() {
	c.sensors.Reset()
	c.gyroFSR.Reset()
	c.accelFSR.Reset()
	c.lpf.Reset()
	c.sampleRate.Reset()
	c.fifoEnable.Reset()
	c.bypass.Reset()
	c.compassSampleRate.Reset()
	c.clkSrc = ClockPLL
	c.activeLowInt = true
	c.latchedInt = false
	c.lpAccelMode = false
	c.dmpOn = false
	c.dmpSampleRate = 0
	c.compassAddr = 0
	c.magSensAdj = [3]int16{}
}

// powered returns the enabled sensor mask. Before the first SetSensors the
// chip is assumed awake, matching the state right after reset.
func (c *ChipConfig) powered() Sensor {
	return c.sensors.Or(allSensors)
}

func (c *ChipConfig) asleep() bool {
	return c.powered() == 0
}

func (c *ChipConfig) compassOn() bool {
	return c.powered()&XYZCompass != 0
}

func (c *ChipConfig) bypassOn() bool {
	b, ok := c.bypass.Get()
	return ok && b
}
