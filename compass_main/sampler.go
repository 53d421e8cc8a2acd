/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	sampler.go: compass read loop feeding the output sinks.
*/

package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b3nn0/dmpcompass/mpu"
	"github.com/b3nn0/dmpcompass/sensors"
)

// compass is the part of *sensors.Compass the daemon drives.
type compass interface {
	sensors.IMUReader
	SetYawMixFactor(int)
	YawMixFactor() int
	Temperature() (float64, error)
}

// sink consumes fused samples: websocket push, SQLite, CSV.
type sink interface {
	Record(*sensors.Sample) error
}

// busErrorBackoff is how long the sampler waits after an I2C failure.
const busErrorBackoff = 100 * time.Millisecond

type sampler struct {
	c     compass
	sinks []sink
	log   logrus.FieldLogger
	sleep func(time.Duration)

	mu       sync.Mutex
	last     *sensors.Sample
	lastErr  error
	samples  uint64
	errCount uint64
	yawMix   int
	pending  bool // yawMix not yet applied to c
	chipTemp float64
	tempAt   time.Time
}

// chipTempInterval is how often step refreshes the chip temperature.
const chipTempInterval = time.Second

func newSampler(c compass, log logrus.FieldLogger, sinks ...sink) *sampler {
	return &sampler{c: c, sinks: sinks, log: log, sleep: time.Sleep, yawMix: c.YawMixFactor()}
}

// setYawMixFactor takes effect before the next read; the compass is only
// touched from the sampling goroutine.
func (s *sampler) setYawMixFactor(f int) {
	s.mu.Lock()
	s.yawMix, s.pending = f, true
	s.mu.Unlock()
}

// step reads and distributes one sample. It reports false after a bus error.
func (s *sampler) step() bool {
	s.mu.Lock()
	if s.pending {
		s.c.SetYawMixFactor(s.yawMix)
		s.yawMix, s.pending = s.c.YawMixFactor(), false
	}
	s.mu.Unlock()

	smp, err := s.c.Read()
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.errCount++
		s.mu.Unlock()
		if mpu.IsBusError(err) {
			s.log.WithError(err).Warn("AHRS Info: I2C error reading compass")
			return false
		}
		s.log.WithError(err).Debug("AHRS Info: sample discarded")
		return true
	}

	var temp float64
	readTemp := smp.T.Sub(s.tempAt) >= chipTempInterval
	if readTemp {
		var terr error
		if temp, terr = s.c.Temperature(); terr != nil {
			readTemp = false
		}
	}

	s.mu.Lock()
	s.last = smp
	s.samples++
	if readTemp {
		s.chipTemp, s.tempAt = temp, smp.T
	}
	s.mu.Unlock()

	for _, k := range s.sinks {
		if err := k.Record(smp); err != nil {
			s.log.WithError(err).Warn("AHRS Info: sample sink failed")
		}
	}
	return true
}

// run samples until stop is closed.
func (s *sampler) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !s.step() {
			s.sleep(busErrorBackoff)
		}
	}
}

type samplerStats struct {
	Last     *sensors.Sample
	LastErr  error
	Samples  uint64
	Errors   uint64
	YawMix   int
	ChipTemp float64
}

func (s *sampler) stats() samplerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return samplerStats{
		Last:     s.last,
		LastErr:  s.lastErr,
		Samples:  s.samples,
		Errors:   s.errCount,
		YawMix:   s.yawMix,
		ChipTemp: s.chipTemp,
	}
}
