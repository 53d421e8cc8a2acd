/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	mpu.go: MPU-9150 register-level driver.
*/

// Package mpu drives an InvenSense MPU-9150 (MPU-6050 plus AK8975 magnetometer)
// over I2C. Every hardware-visible setting is mirrored in a cache so that
// repeated configuration calls cost no bus traffic.
package mpu

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Bus is the part of embd.I2CBus the driver needs.
type Bus interface {
	ReadFromReg(addr, reg byte, value []byte) error
	ReadByteFromReg(addr, reg byte) (byte, error)
	WriteToReg(addr, reg byte, value []byte) error
	WriteByteToReg(addr, reg, value byte) error
}

// MPU9150 is one owned device. It is not safe for concurrent use.
type MPU9150 struct {
	bus   Bus
	addr  byte
	chip  ChipConfig
	log   logrus.FieldLogger
	sleep func(time.Duration)
	now   func() time.Time
}

// Option configures New.
type Option func(*MPU9150)

// WithAddress selects the I2C address of the device (0x68 or 0x69).
func WithAddress(addr byte) Option {
	return func(m *MPU9150) { m.addr = addr }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *MPU9150) { m.log = l }
}

// WithSleep replaces time.Sleep for the settle delays the chip needs.
func WithSleep(f func(time.Duration)) Option {
	return func(m *MPU9150) { m.sleep = f }
}

// WithClock replaces time.Now for compass timestamps.
func WithClock(f func() time.Time) Option {
	return func(m *MPU9150) { m.now = f }
}

// New returns a driver for the device on bus. No bus traffic happens until Init.
func New(bus Bus, opts ...Option) *MPU9150 {
	m := &MPU9150{
		bus:   bus,
		addr:  Address,
		log:   logrus.StandardLogger(),
		sleep: time.Sleep,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.chip.invalidate()
	m.log = m.log.WithField("addr", m.addr)
	return m
}

// Init resets the device and brings it to a known state: 2000dps, 2g, 42Hz LPF,
// 50Hz sampling, FIFO off, all sensors powered down. When useMag is set the
// AK8975 is located and bound as slave 0/1 with a 10Hz sampling rate.
func (m *MPU9150) Init(useMag bool) error {
	if err := m.writeReg(RegPwrMgmt1, bitReset); err != nil {
		return errors.Wrap(err, "resetting device")
	}
	m.sleep(100 * time.Millisecond)
	if err := m.writeReg(RegPwrMgmt1, 0); err != nil {
		return errors.Wrap(err, "waking device")
	}

	half, err := m.detectRevision()
	if err != nil {
		return err
	}

	m.chip.invalidate()
	m.chip.accelHalf = half

	if err := m.SetGyroFSR(2000); err != nil {
		return err
	}
	if err := m.SetAccelFSR(2); err != nil {
		return err
	}
	if err := m.SetLPF(42); err != nil {
		return err
	}
	if err := m.SetSampleRate(50); err != nil {
		return err
	}
	if _, err := m.ConfigureFIFO(0); err != nil {
		return err
	}

	if useMag {
		if err := m.setupCompass(); err != nil {
			return err
		}
		if err := m.SetCompassSampleRate(10); err != nil {
			return err
		}
	}

	if err := m.SetSensors(0); err != nil {
		return err
	}
	m.log.WithField("half_sensitivity", half).Info("MPU9150 Info: initialized")
	return nil
}

// detectRevision reports whether the accel runs at half sensitivity.
func (m *MPU9150) detectRevision() (bool, error) {
	var data [6]byte
	if err := m.readRegs(RegAccelOffs, data[:]); err != nil {
		return false, errors.Wrap(err, "reading revision")
	}
	rev := (data[5]&1)<<2 | (data[3]&1)<<1 | data[1]&1
	switch {
	case rev == 1:
		return true, nil
	case rev == 2:
		return false, nil
	case rev != 0:
		return false, errors.Wrapf(ErrUnsupportedRevision, "revision %d", rev)
	}

	id, err := m.readReg(RegProdID)
	if err != nil {
		return false, errors.Wrap(err, "reading product id")
	}
	id &= 0x0F
	if id == 0 {
		return false, ErrIncompatibleDevice
	}
	return id == 4, nil
}

// PowerDown turns every sensor off. The device must be re-initialized before use.
func (m *MPU9150) PowerDown() error {
	if err := m.SetSensors(0); err != nil {
		return err
	}
	m.chip.dmpOn = false
	return nil
}

// GyroFSR returns the configured gyro range.
func (m *MPU9150) GyroFSR() (GyroFSR, bool) { return m.chip.gyroFSR.Get() }

// AccelFSR returns the configured accel range in g, doubled on half-sensitivity parts.
func (m *MPU9150) AccelFSR() (int, bool) {
	f, ok := m.chip.accelFSR.Get()
	if !ok {
		return 0, false
	}
	g := f.G()
	if m.chip.accelHalf {
		g <<= 1
	}
	return g, true
}

func (m *MPU9150) LPF() (LPF, bool) { return m.chip.lpf.Get() }

// SampleRate returns the current sampling rate, which is the DMP rate while the DMP is on.
func (m *MPU9150) SampleRate() (int, bool) {
	if m.chip.dmpOn {
		return m.chip.dmpSampleRate, true
	}
	return m.chip.sampleRate.Get()
}

func (m *MPU9150) CompassSampleRate() (int, bool) { return m.chip.compassSampleRate.Get() }

// Sensors returns the powered sensor mask.
func (m *MPU9150) Sensors() Sensor { return m.chip.powered() }

// FIFOEnabled returns the sensors currently routed into the FIFO.
func (m *MPU9150) FIFOEnabled() Sensor { return m.chip.fifoEnable.Or(0) }

func (m *MPU9150) DMPState() bool { return m.chip.dmpOn }

func (m *MPU9150) DMPLoaded() bool { return m.chip.dmpLoaded }

func (m *MPU9150) HalfSensitivity() bool { return m.chip.accelHalf }

// CompassAddr returns the bound magnetometer address, 0 when none.
func (m *MPU9150) CompassAddr() byte { return m.chip.compassAddr }

// MagSensAdj returns the per-axis factory sensitivity adjustment (ASA + 128).
func (m *MPU9150) MagSensAdj() [3]int16 { return m.chip.magSensAdj }

// CompassFSR returns the AK8975 full-scale range in uT.
func (m *MPU9150) CompassFSR() int { return compassFSR }

// GyroSens returns LSB per dps for the configured range.
func (m *MPU9150) GyroSens() (float64, bool) {
	f, ok := m.chip.gyroFSR.Get()
	if !ok {
		return 0, false
	}
	return 32768.0 / float64(f.DPS()), true
}

// AccelSens returns LSB per g for the configured range.
func (m *MPU9150) AccelSens() (int, bool) {
	f, ok := m.chip.accelFSR.Get()
	if !ok {
		return 0, false
	}
	sens := 16384 >> f
	if m.chip.accelHalf {
		sens >>= 1
	}
	return sens, true
}

func (m *MPU9150) writeReg(reg, v byte) error {
	return m.writeTo(m.addr, reg, v)
}

func (m *MPU9150) writeTo(addr, reg, v byte) error {
	if err := m.bus.WriteByteToReg(addr, reg, v); err != nil {
		busErrors.WithLabelValues("write").Inc()
		return &BusError{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

func (m *MPU9150) writeRegs(reg byte, v []byte) error {
	if err := m.bus.WriteToReg(m.addr, reg, v); err != nil {
		busErrors.WithLabelValues("write").Inc()
		return &BusError{Op: "write", Addr: m.addr, Reg: reg, Err: err}
	}
	return nil
}

func (m *MPU9150) readReg(reg byte) (byte, error) {
	v, err := m.bus.ReadByteFromReg(m.addr, reg)
	if err != nil {
		busErrors.WithLabelValues("read").Inc()
		return 0, &BusError{Op: "read", Addr: m.addr, Reg: reg, Err: err}
	}
	return v, nil
}

func (m *MPU9150) readRegs(reg byte, buf []byte) error {
	return m.readFrom(m.addr, reg, buf)
}

func (m *MPU9150) readFrom(addr, reg byte, buf []byte) error {
	if err := m.bus.ReadFromReg(addr, reg, buf); err != nil {
		busErrors.WithLabelValues("read").Inc()
		return &BusError{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}
