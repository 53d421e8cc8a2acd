/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	metrics_test.go: counter wiring.
*/

package mpu

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3nn0/dmpcompass/mpu/mputest"
)

func TestRegisterMetrics(t *testing.T) {
	r := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(r))
	assert.Error(t, RegisterMetrics(r), "second registration collides")
}

func TestBusErrorCounter(t *testing.T) {
	bus := mputest.New(Address)
	bus.FailOn(Address, RegPwrMgmt1, true, errors.New("nak"))
	m := New(bus, WithSleep(func(time.Duration) {}))

	before := testutil.ToFloat64(busErrors.WithLabelValues("write"))
	require.Error(t, m.Init(false))
	assert.Equal(t, before+1, testutil.ToFloat64(busErrors.WithLabelValues("write")))
}

func TestCompassRejectCounter(t *testing.T) {
	bus := mputest.New(Address)
	m := New(bus, WithSleep(func(time.Duration) {}))
	m.chip.sensors.Set(allSensors)

	before := testutil.ToFloat64(compassRejects.WithLabelValues("not_ready"))
	_, _, err := m.CompassReg()
	assert.True(t, errors.Is(err, ErrCompassNotReady))
	assert.Equal(t, before+1, testutil.ToFloat64(compassRejects.WithLabelValues("not_ready")))
}

func TestInvalidateKeepsFirmware(t *testing.T) {
	var c ChipConfig
	c.dmpLoaded = true
	c.sampleRate.Set(50)
	c.bypass.Set(true)
	c.invalidate()

	assert.True(t, c.dmpLoaded)
	_, ok := c.sampleRate.Get()
	assert.False(t, ok)
	assert.False(t, c.bypassOn())
	assert.Equal(t, allSensors, c.powered())
	assert.False(t, c.sampleRate.Is(0), "unconfigured never matches")
}
