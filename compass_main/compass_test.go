/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	compass_test.go: daemon settings, sampler and sink tests.
*/

package main

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/fusion"
	"github.com/b3nn0/dmpcompass/mpu"
	"github.com/b3nn0/dmpcompass/sensors"
)

type fakeCompass struct {
	reads  []func() (*sensors.Sample, error)
	yawMix int
	temp   float64
	closed bool
}

func (f *fakeCompass) Read() (*sensors.Sample, error) {
	if len(f.reads) == 0 {
		return nil, sensors.ErrNoData
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	return r()
}

func (f *fakeCompass) Close()                        { f.closed = true }
func (f *fakeCompass) SetYawMixFactor(v int)         { f.yawMix = v }
func (f *fakeCompass) YawMixFactor() int             { return f.yawMix }
func (f *fakeCompass) Temperature() (float64, error) { return f.temp, nil }

type recorder struct{ got []*sensors.Sample }

func (r *recorder) Record(s *sensors.Sample) error {
	r.got = append(r.got, s)
	return nil
}

func sample(t time.Time, yawDeg float64) *sensors.Sample {
	s := &sensors.Sample{T: t, HasMag: true}
	s.FusedEuler = fusion.Euler{Roll: 10 * deg, Pitch: -5 * deg, Yaw: yawDeg * deg}
	s.DMP = fusion.FromEuler(s.FusedEuler)
	s.CalibratedAccel = [3]int16{1, 2, 3}
	s.CalibratedMag = [3]int16{4, 5, 6}
	return s
}

func ok(s *sensors.Sample) func() (*sensors.Sample, error) {
	return func() (*sensors.Sample, error) { return s, nil }
}

func fail(err error) func() (*sensors.Sample, error) {
	return func() (*sensors.Sample, error) { return nil, err }
}

func TestReadSettings(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "compass.conf")

	s := defaultSettings()
	require.NoError(t, readSettings(filepath.Join(dir, "missing.conf"), &s))
	assert.Equal(t, defaultSettings(), s)

	require.NoError(t, os.WriteFile(p, []byte(`{"YawMixFactor": 10, "DataLogFile": "/tmp/x.db"}`), 0644))
	require.NoError(t, readSettings(p, &s))
	assert.Equal(t, 10, s.YawMixFactor)
	assert.Equal(t, "/tmp/x.db", s.DataLogFile)
	assert.Equal(t, 50, s.SampleRate)

	require.NoError(t, os.WriteFile(p, []byte(`{"YawMixFactor": 101}`), 0644))
	assert.Error(t, readSettings(p, &s))
	assert.Equal(t, 10, s.YawMixFactor)

	require.NoError(t, os.WriteFile(p, []byte(`{"SampleRate": 20, "CompassRate": 40}`), 0644))
	assert.Error(t, readSettings(p, &s))

	require.NoError(t, os.WriteFile(p, []byte(`{not json`), 0644))
	assert.Error(t, readSettings(p, &s))
}

func TestSensorConfig(t *testing.T) {
	dir := t.TempDir()
	s := defaultSettings()
	s.AccelCalFile = filepath.Join(dir, "accel.txt")
	s.MagCalFile = filepath.Join(dir, "missing.txt")
	s.YawMixFactor = 7
	require.NoError(t, calibration.Save(s.AccelCalFile, calibration.Data{
		Offset: [3]int32{10, 20, 30},
		Range:  [3]int16{16000, 16000, 7232},
	}))

	cfg, warnings := s.sensorConfig()
	require.Len(t, warnings, 1)
	require.NotNil(t, cfg.AccelCal)
	require.NotNil(t, cfg.MagCal)
	assert.Equal(t, [3]int32{10, 20, 30}, cfg.AccelCal.Offset)
	assert.Equal(t, calibration.MagIdentity, *cfg.MagCal)
	assert.Equal(t, 7, cfg.YawMixFactor)
	assert.True(t, cfg.UseMag)
}

func TestSampler(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	fc := &fakeCompass{yawMix: 4, temp: 31.5}
	fc.reads = append(fc.reads,
		ok(sample(t0, 90)),
		fail(mpu.ErrCompassNotReady),
		ok(sample(t0.Add(20*time.Millisecond), 91)),
	)
	rec := &recorder{}
	logger, _ := logtest.NewNullLogger()
	s := newSampler(fc, logger, rec)

	assert.True(t, s.step())
	assert.True(t, s.step())
	assert.True(t, s.step())
	require.Len(t, rec.got, 2)

	st := s.stats()
	assert.Equal(t, uint64(2), st.Samples)
	assert.Equal(t, uint64(1), st.Errors)
	assert.True(t, errors.Is(st.LastErr, mpu.ErrCompassNotReady))
	assert.InDelta(t, 91, st.Last.Heading(), 1e-9)
	assert.Equal(t, 31.5, st.ChipTemp)
	assert.Equal(t, 4, st.YawMix)
}

func TestSamplerBusError(t *testing.T) {
	fc := &fakeCompass{}
	fc.reads = append(fc.reads, fail(&mpu.BusError{Op: "read", Addr: mpu.Address, Reg: mpu.RegIntStatus, Err: errors.New("nak")}))
	logger, hook := logtest.NewNullLogger()
	s := newSampler(fc, logger)
	assert.False(t, s.step())
	assert.Equal(t, "AHRS Info: I2C error reading compass", hook.LastEntry().Message)
}

func TestSamplerYawMix(t *testing.T) {
	fc := &fakeCompass{yawMix: 4}
	logger, _ := logtest.NewNullLogger()
	s := newSampler(fc, logger)

	s.setYawMixFactor(12)
	assert.Equal(t, 4, fc.yawMix)
	assert.Equal(t, 12, s.stats().YawMix)
	s.step()
	assert.Equal(t, 12, fc.yawMix)
}

func TestSamplerRunStops(t *testing.T) {
	fc := &fakeCompass{}
	logger, _ := logtest.NewNullLogger()
	s := newSampler(fc, logger)
	stop := make(chan struct{})
	close(stop)
	s.run(stop)
}

func TestStatus(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	fc := &fakeCompass{yawMix: 4}
	fc.reads = append(fc.reads, ok(sample(t0, 270)))
	logger, _ := logtest.NewNullLogger()
	s := newSampler(fc, logger)

	ss := &statusServer{s: s, started: t0.Add(-time.Hour), firmware: 3062, now: func() time.Time { return t0.Add(2 * time.Second) }}
	st := ss.status()
	assert.Equal(t, "never", st.LastSample)
	assert.Equal(t, "3.1 kB", st.Firmware)

	s.step()
	ss.setCPUTemp(48.5)
	rr := httptest.NewRecorder()
	ss.handleStatusRequest(rr, httptest.NewRequest("GET", "/", nil))

	var got status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "2 seconds ago", got.LastSample)
	assert.True(t, strings.HasPrefix(got.Uptime, "1 hour"), got.Uptime)
	assert.InDelta(t, 270, got.Heading, 1e-6)
	assert.InDelta(t, 10, got.Roll, 1e-9)
	assert.Equal(t, float32(48.5), got.CPUTemp)
	assert.Equal(t, uint64(1), got.Samples)
}

func TestDataLog(t *testing.T) {
	dl, err := openDataLog(filepath.Join(t.TempDir(), "samples.db"))
	require.NoError(t, err)

	t0 := time.Unix(1700000000, 0)
	for ii := 0; ii < dataLogFlushSize+5; ii++ {
		require.NoError(t, dl.Record(sample(t0.Add(time.Duration(ii)*time.Second), float64(ii))))
	}
	n, err := dl.Count()
	require.NoError(t, err)
	assert.Equal(t, dataLogFlushSize, n)

	require.NoError(t, dl.Flush())
	headings, err := dl.Since(t0.Add(time.Duration(dataLogFlushSize) * time.Second))
	require.NoError(t, err)
	require.Len(t, headings, 5)
	assert.InDelta(t, float64(dataLogFlushSize), headings[0], 1e-6)
	require.NoError(t, dl.Close())
}

func TestAnalysisLog(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Unix(1700000000, 0)
	fn := analysisFilename(dir, t0.UTC())
	assert.Equal(t, "compass_20231114_221320.csv", filepath.Base(fn))

	a := newAnalysisLog(fn)
	require.NoError(t, a.Record(sample(t0, 45)))
	require.NoError(t, a.Record(sample(t0.Add(time.Second), 46)))
	require.NoError(t, a.Close())

	buf, err := os.ReadFile(fn)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	require.Len(t, lines, 3)
	header := strings.Split(lines[0], ",")
	assert.Len(t, header, 19)
	last := strings.Split(lines[2], ",")
	for ii, k := range header {
		switch k {
		case "T":
			assert.Equal(t, "1.000000", last[ii])
		case "Heading":
			assert.Equal(t, "46.000000", last[ii])
		case "MValid":
			assert.Equal(t, "1.000000", last[ii])
		}
	}
}

func TestBroadcaster(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	b := newBroadcaster(logger)
	settings := make(chan SettingMessage, 1)
	srv := httptest.NewServer(websocket.Server{Handler: b.handler(func(m SettingMessage) { settings <- m })})
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, websocket.JSON.Send(conn, SettingMessage{Setting: "YawMixFactor", Value: 9}))
	select {
	case m := <-settings:
		assert.Equal(t, SettingMessage{Setting: "YawMixFactor", Value: 9}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("setting not received")
	}
	require.Equal(t, 1, b.clients())

	require.NoError(t, b.Record(sample(time.Unix(1700000000, 0), 123)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg AttitudeMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.InDelta(t, 123, msg.Heading, 1e-6)
	assert.InDelta(t, -5, msg.Pitch, 1e-9)
	assert.True(t, msg.HasMag)
	assert.Equal(t, [3]int16{4, 5, 6}, msg.CalMag)
}

func TestLogRotation(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	lf := newLogFiles(dir, logger)
	lf.freeBytes = func(string) int64 { return 1 << 40 }
	require.NoError(t, lf.open())
	defer lf.Close()

	for ii := 1; ii <= maxLogFiles; ii++ {
		require.NoError(t, os.WriteFile(lf.path+"."+string(rune('0'+ii)), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(lf.path, make([]byte, maxLogSize+1), 0644))
	lf.check()

	logs := lf.rotated()
	require.Len(t, logs, maxLogFiles)
	assert.Equal(t, lf.path+".1", logs[0])
	st, err := os.Stat(lf.path + ".1")
	require.NoError(t, err)
	assert.Equal(t, int64(maxLogSize+1), st.Size())

	lf.freeBytes = func(string) int64 { return 0 }
	lf.check()
	assert.Empty(t, lf.rotated())
}

func TestXATT(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	x, err := dialXATT(ln.LocalAddr().String(), "compass")
	require.NoError(t, err)
	defer x.Close()

	require.NoError(t, x.Record(sample(time.Unix(1700000000, 0), 90)))
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 256)
	n, _, err := ln.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "XATTcompass,90.000000,-5.000000,10.000000", string(buf[:n]))
}
