/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	fusion.go: complementary yaw filter blending DMP yaw with magnetic heading.
*/

// Package fusion combines the motion processor's gyro-integrated orientation
// with a tilt-compensated magnetometer heading. The DMP supplies roll and pitch
// and the change in yaw; the magnetometer slowly pulls yaw toward magnetic north.
package fusion

import (
	"math"

	"github.com/pkg/errors"
	"github.com/westphae/quaternion"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/common"
)

// ErrNaNHeading means tilt compensation produced no usable heading.
var ErrNaNHeading = errors.New("fusion: magnetic heading is NaN")

// MaxYawMixFactor is the largest accepted yaw mixing factor.
const MaxYawMixFactor = 100

// Input is one raw sample.
type Input struct {
	Quat   quaternion.Quaternion // DMP orientation, not necessarily normalized
	Accel  [3]int16
	Mag    [3]int16
	HasMag bool
}

// State carries the fused orientation from one cycle to the next.
type State struct {
	CalibratedAccel [3]int16
	CalibratedMag   [3]int16

	DMP     quaternion.Quaternion // normalized DMP orientation
	Unfused quaternion.Quaternion // DMP roll and pitch, zero yaw
	TiltMag quaternion.Quaternion // tilt-compensated field
	Fused   quaternion.Quaternion

	DMPEuler   Euler
	FusedEuler Euler // yaw in (-pi, pi]

	LastDMPYaw float64
	LastYaw    float64 // [0, 2pi)
}

// Engine holds the fusion parameters. It keeps no per-sample state.
type Engine struct {
	// YawMixFactor is the inverse gain of the magnetic correction: 1 snaps to
	// the magnetic heading every cycle, 0 ignores the magnetometer.
	YawMixFactor int
	MagCal       *calibration.Data
	AccelCal     *calibration.Data
}

// NewEngine returns an engine with yawMix clamped to [0, 100].
func NewEngine(yawMix int, magCal, accelCal *calibration.Data) *Engine {
	return &Engine{
		YawMixFactor: common.Clamp(yawMix, 0, MaxYawMixFactor),
		MagCal:       magCal,
		AccelCal:     accelCal,
	}
}

// Fuse advances prev by one sample. On error prev is returned unchanged.
func (eng *Engine) Fuse(in Input, prev State) (State, error) {
	s := prev

	s.DMP = Normalize(in.Quat)
	s.DMPEuler = ToEuler(s.DMP)
	s.Unfused = FromEuler(Euler{Roll: s.DMPEuler.Roll, Pitch: s.DMPEuler.Pitch})
	s.CalibratedAccel = eng.AccelCal.ApplyAccel(in.Accel)

	if !in.HasMag {
		s.Fused = s.Unfused
		s.FusedEuler = Euler{Roll: s.DMPEuler.Roll, Pitch: s.DMPEuler.Pitch}
		return s, nil
	}

	dYaw := prev.LastDMPYaw - s.DMPEuler.Yaw
	s.LastDMPYaw = s.DMPEuler.Yaw

	s.CalibratedMag = eng.MagCal.ApplyMag(in.Mag)
	s.TiltMag = TiltCompensate(s.Unfused, [3]float64{
		float64(s.CalibratedMag[0]),
		float64(s.CalibratedMag[1]),
		float64(s.CalibratedMag[2]),
	})
	magYaw := -math.Atan2(s.TiltMag.Y, s.TiltMag.X)
	if math.IsNaN(magYaw) {
		return prev, ErrNaNHeading
	}
	magYaw = WrapTwoPi(magYaw)

	yaw := WrapTwoPi(prev.LastYaw + dYaw)
	if f := common.Clamp(eng.YawMixFactor, 0, MaxYawMixFactor); f > 0 {
		yaw = WrapTwoPi(yaw + WrapPi(magYaw-yaw)/float64(f))
	}
	s.LastYaw = yaw

	s.FusedEuler = Euler{Roll: s.DMPEuler.Roll, Pitch: s.DMPEuler.Pitch, Yaw: WrapPi(yaw)}
	s.Fused = FromEuler(s.FusedEuler)
	return s, nil
}
