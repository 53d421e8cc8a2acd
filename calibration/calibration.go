/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	calibration.go: per-axis offset/range calibration for the accel and magnetometer.
*/

// Package calibration holds the offset and range of each sensor axis, derived
// from the extremes seen while the device is rotated through every orientation.
package calibration

import (
	"math"

	"github.com/b3nn0/dmpcompass/common"
)

const (
	// AccelRange is the calibrated accel full scale.
	AccelRange = 32000
	// MagRange is the calibrated magnetometer full scale.
	MagRange = 4096
)

// Data is the midpoint (Offset) and half-span (Range) of each axis.
type Data struct {
	Offset [3]int32
	Range  [3]int16
}

var (
	// AccelIdentity scales raw accel readings by one.
	AccelIdentity = Data{Range: [3]int16{AccelRange, AccelRange, AccelRange}}
	// MagIdentity scales raw magnetometer readings by one.
	MagIdentity = Data{Range: [3]int16{MagRange, MagRange, MagRange}}
)

// FromExtremes derives calibration from the raw extremes of each axis.
func FromExtremes(minX, maxX, minY, maxY, minZ, maxZ int) Data {
	return FromMinMax([3]int{minX, minY, minZ}, [3]int{maxX, maxY, maxZ})
}

// FromMinMax derives calibration from per-axis min and max triples.
func FromMinMax(lo, hi [3]int) Data {
	var d Data
	for ii := range d.Offset {
		off := (lo[ii] + hi[ii]) / 2
		d.Offset[ii] = int32(off)
		d.Range[ii] = int16(common.Clamp(hi[ii]-off, math.MinInt16, math.MaxInt16))
	}
	return d
}

// ForAccel clamps the ranges to [1, AccelRange].
func (d Data) ForAccel() Data {
	for ii := range d.Range {
		d.Range[ii] = common.Clamp(d.Range[ii], 1, AccelRange)
	}
	return d
}

// ForMag clamps the ranges to [1, MagRange] and the offsets to [-MagRange, MagRange].
func (d Data) ForMag() Data {
	for ii := range d.Range {
		d.Range[ii] = common.Clamp(d.Range[ii], 1, MagRange)
		d.Offset[ii] = common.Clamp(d.Offset[ii], -MagRange, MagRange)
	}
	return d
}

// AccelBias is the bias to add to the hardware accel offset registers.
func (d Data) AccelBias() [3]int64 {
	var b [3]int64
	for ii, o := range d.Offset {
		b[ii] = -int64(o)
	}
	return b
}

// ApplyMag scales a raw magnetometer sample and maps it into the body frame
// (X and Y swapped, X inverted). A nil receiver applies the axis mapping only.
func (d *Data) ApplyMag(raw [3]int16) [3]int16 {
	if d == nil {
		return [3]int16{raw[1], sat(-int64(raw[0])), raw[2]}
	}
	scale := func(ii int) int64 {
		return (int64(raw[ii]) - int64(d.Offset[ii])) * MagRange / d.span(ii)
	}
	return [3]int16{sat(scale(1)), sat(-scale(0)), sat(scale(2))}
}

// ApplyAccel scales a raw accel sample and maps it into the body frame (X
// inverted). The offset is not subtracted, it lives in the hardware bias
// registers. A nil receiver applies the axis mapping only.
func (d *Data) ApplyAccel(raw [3]int16) [3]int16 {
	if d == nil {
		return [3]int16{sat(-int64(raw[0])), raw[1], raw[2]}
	}
	scale := func(ii int) int64 {
		return int64(raw[ii]) * AccelRange / d.span(ii)
	}
	return [3]int16{sat(-scale(0)), sat(scale(1)), sat(scale(2))}
}

// span is the axis range as a divisor; unclamped data never divides by zero.
func (d *Data) span(ii int) int64 {
	return int64(common.Clamp(d.Range[ii], 1, math.MaxInt16))
}

func sat(v int64) int16 {
	return int16(common.Clamp(v, math.MinInt16, math.MaxInt16))
}
