/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	compass_test.go: compass facade tests.
*/

package sensors

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/dmp"
	"github.com/b3nn0/dmpcompass/fusion"
	"github.com/b3nn0/dmpcompass/mpu"
	"github.com/b3nn0/dmpcompass/mpu/mputest"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *clock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

type rig struct {
	bus *mputest.FakeBus
	dev *mpu.MPU9150
	img *dmp.Image
	cfg Config
}

func newRig(t *testing.T) *rig {
	t.Helper()
	bus := mputest.New(mpu.Address)
	bus.AddCompass(0x0C, [3]byte{128, 128, 128})
	clk := &clock{t: time.Unix(1700000000, 0)}
	dev := mpu.New(bus, mpu.WithSleep(clk.Sleep), mpu.WithClock(clk.Now))

	cfg := DefaultConfig()
	cfg.YawMixFactor = 1
	cfg.PollInterval = time.Millisecond
	cfg.PollTimeout = 10 * time.Millisecond
	cfg.Now = clk.Now
	cfg.Sleep = clk.Sleep

	return &rig{
		bus: bus,
		dev: dev,
		img: &dmp.Image{Firmware: make([]byte, 48), Start: 0x0400, SampleRate: 200},
		cfg: cfg,
	}
}

func (r *rig) open(t *testing.T) *Compass {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	c, err := Open(r.dev, r.img, r.cfg, logger)
	require.NoError(t, err)
	return c
}

func (r *rig) ready() {
	r.bus.Reg()[mpu.RegDMPIntStat] = 0x01
	r.bus.Reg()[mpu.RegIntStatus] = 0x03
}

func (r *rig) push(quat [4]int32, accel [3]int16) {
	b := make([]byte, dmp.PacketLength)
	for ii, q := range quat {
		binary.BigEndian.PutUint32(b[4*ii:], uint32(q))
	}
	for ii, a := range accel {
		binary.BigEndian.PutUint16(b[16+2*ii:], uint16(a))
	}
	r.bus.FIFO = append(r.bus.FIFO, b...)
}

// setMag stores a ready AK8975 sample (little-endian) where slave 0 leaves it.
func (r *rig) setMag(raw [3]int16, st1, st2 byte) {
	reg := r.bus.Reg()
	reg[mpu.RegRawCompass] = st1
	for ii, v := range raw {
		binary.LittleEndian.PutUint16(reg[int(mpu.RegRawCompass)+1+2*ii:], uint16(v))
	}
	reg[mpu.RegRawCompass+7] = st2
}

var level = [4]int32{1 << 30, 0, 0, 0}

func TestOpen(t *testing.T) {
	r := newRig(t)
	cal := calibration.Data{Offset: [3]int32{100, -200, 0}, Range: [3]int16{16000, 16000, 16000}}.ForAccel()
	r.cfg.AccelCal = &cal
	c := r.open(t)

	assert.True(t, r.dev.DMPState())
	assert.True(t, r.dev.DMPLoaded())
	rate, _ := r.dev.SampleRate()
	assert.Equal(t, 200, rate)
	crate, _ := r.dev.CompassSampleRate()
	assert.Equal(t, 10, crate)
	assert.Equal(t, mpu.XYZGyro|mpu.XYZAccel|mpu.XYZCompass, r.dev.Sensors())
	assert.Equal(t, 1, c.YawMixFactor())

	offs := r.bus.Reg()[mpu.RegAccelOffs : mpu.RegAccelOffs+6]
	assert.Equal(t, []byte{0xFF, 0xFE, 0x00, 0x05, 0x00, 0x00}, offs)
}

func TestOpenNoCompass(t *testing.T) {
	r := newRig(t)
	delete(r.bus.Regs, 0x0C)
	logger, _ := logtest.NewNullLogger()
	_, err := Open(r.dev, r.img, r.cfg, logger)
	assert.True(t, errors.Is(err, mpu.ErrNoCompass))
}

func TestOpenWithoutMag(t *testing.T) {
	r := newRig(t)
	delete(r.bus.Regs, 0x0C)
	r.cfg.UseMag = false
	c := r.open(t)

	r.ready()
	r.push(level, [3]int16{0, 0, 16384})
	s, err := c.Read()
	require.NoError(t, err)
	assert.False(t, s.HasMag)
	assert.Equal(t, s.Unfused, s.Fused)
}

func TestRead(t *testing.T) {
	r := newRig(t)
	c := r.open(t)
	before := testutil.ToFloat64(fusedSamples)

	r.ready()
	r.push(level, [3]int16{10, 20, 16384})
	r.setMag([3]int16{-100, 0, 0}, 0x01, 0x00)

	s, err := c.Read()
	require.NoError(t, err)
	assert.True(t, s.HasMag)
	assert.False(t, s.MagT.IsZero())
	assert.Equal(t, level, s.Quat)
	assert.Equal(t, [3]int16{10, 20, 16384}, s.Accel)
	assert.Equal(t, [3]int16{-100, 0, 0}, s.Mag)
	assert.Equal(t, [3]int16{-10, 20, 16384}, s.CalibratedAccel)
	assert.Equal(t, [3]int16{0, 100, 0}, s.CalibratedMag)
	assert.InDelta(t, -math.Pi/2, s.FusedEuler.Yaw, 1e-9)
	assert.InDelta(t, 270, s.Heading(), 1e-6)
	assert.Equal(t, 0, s.Backlog)
	assert.Equal(t, s.State, c.State())
	assert.Equal(t, before+1, testutil.ToFloat64(fusedSamples))
}

func TestReadDrainsBacklog(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.ready()
	r.setMag([3]int16{0, 100, 0}, 0x01, 0x00)
	r.push(level, [3]int16{1, 0, 0})
	r.push(level, [3]int16{2, 0, 0})
	r.push(level, [3]int16{3, 0, 0})

	s, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, [3]int16{3, 0, 0}, s.Accel)
	assert.Equal(t, 2, s.Backlog)
	assert.Empty(t, r.bus.FIFO)
}

func TestReadNoData(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.bus.Reg()[mpu.RegDMPIntStat] = 0
	r.bus.Reg()[mpu.RegIntStatus] = 0x01
	_, err := c.Read()
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestReadStaleCompass(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.ready()
	r.setMag([3]int16{0, 100, 0}, 0x01, 0x00)
	r.push(level, [3]int16{})
	first, err := c.Read()
	require.NoError(t, err)

	before := testutil.ToFloat64(droppedSamples.WithLabelValues("compass"))
	r.setMag([3]int16{0, 100, 0}, 0x00, 0x00)
	r.push(level, [3]int16{})
	_, err = c.Read()
	assert.True(t, errors.Is(err, mpu.ErrCompassNotReady))
	assert.Equal(t, first.State, c.State())

	r.setMag([3]int16{0, 100, 0}, 0x01, 0x80)
	r.push(level, [3]int16{})
	_, err = c.Read()
	assert.True(t, errors.Is(err, mpu.ErrCompassOverflow))
	assert.Equal(t, before+2, testutil.ToFloat64(droppedSamples.WithLabelValues("compass")))
}

func TestReadBadQuaternion(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.ready()
	r.push([4]int32{}, [3]int16{})
	r.bus.ClearLog()
	_, err := c.Read()
	assert.True(t, errors.Is(err, dmp.ErrBadQuaternion))

	var reset bool
	for _, w := range r.bus.WritesTo(mpu.RegUserCtrl) {
		reset = reset || w.Data[0] == 0x0C
	}
	assert.True(t, reset)
}

func TestReadOverflow(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.ready()
	r.bus.Reg()[mpu.RegIntStatus] = 0x13
	r.bus.FIFO = make([]byte, 600)
	_, err := c.Read()
	assert.True(t, errors.Is(err, mpu.ErrFIFOOverflow))
}

func TestSetYawMixFactor(t *testing.T) {
	r := newRig(t)
	c := r.open(t)
	c.SetYawMixFactor(500)
	assert.Equal(t, fusion.MaxYawMixFactor, c.YawMixFactor())
	c.SetYawMixFactor(0)
	assert.Equal(t, 0, c.YawMixFactor())
}

func TestCapture(t *testing.T) {
	r := newRig(t)
	c := r.open(t)

	r.ready()
	r.setMag([3]int16{-40, 90, 300}, 0x01, 0x00)
	r.push(level, [3]int16{100, -50, 16000})

	var accel, mag calibration.Extremes
	require.NoError(t, c.Capture(30*time.Millisecond, &accel, &mag))
	assert.Equal(t, 1, accel.Count())
	assert.Equal(t, 1, mag.Count())
	lo, hi := mag.MinMax()
	assert.Equal(t, [3]int{-40, 90, 300}, lo)
	assert.Equal(t, lo, hi)
}

func TestClose(t *testing.T) {
	r := newRig(t)
	c := r.open(t)
	c.Close()
	assert.Equal(t, mpu.Sensor(0), r.dev.Sensors())
	assert.Equal(t, byte(0x40), r.bus.Reg()[mpu.RegPwrMgmt1])
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, mpu.RegisterMetrics(reg))
}
