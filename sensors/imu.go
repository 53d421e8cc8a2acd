/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	imu.go: IMU reader interface and fused sample type.
*/

// Package sensors provides a sample-at-a-time interface to the MPU-9150 and
// its motion processor, with calibration and yaw fusion applied.
package sensors

import (
	"math"
	"time"

	"github.com/b3nn0/dmpcompass/fusion"
)

// IMUReader provides an interface to an Inertial Measurement Unit whose
// onboard motion processor delivers orientation quaternions. It is a light
// abstraction on top of the mpu driver so that the daemon can be tested
// without hardware.
type IMUReader interface {
	// Read blocks until the next sample is available and returns it.
	Read() (*Sample, error)
	// Close powers the sensor down.
	Close()
}

// Sample is one read cycle: raw values straight from the chip and the
// calibrated, fused orientation derived from them.
type Sample struct {
	T       time.Time // FIFO packet read time
	MagT    time.Time // compass read time, zero without a compass sample
	Quat    [4]int32  // raw DMP quaternion, q30
	Gyro    [3]int16
	Accel   [3]int16
	Mag     [3]int16
	HasMag  bool
	Backlog int // packets discarded to catch up

	fusion.State
}

// Heading returns the fused yaw in degrees, [0, 360).
func (s *Sample) Heading() float64 {
	return fusion.WrapTwoPi(s.FusedEuler.Yaw) * 180 / math.Pi
}
