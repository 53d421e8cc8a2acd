/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	extremes.go: min/max capture while the device is being rotated.
*/

package calibration

// Extremes tracks the smallest and largest reading seen on each axis.
type Extremes struct {
	min, max [3]int
	n        int
}

// Add folds one raw sample into the extremes and reports whether any axis
// extended its span.
func (e *Extremes) Add(v [3]int16) bool {
	changed := e.n == 0
	for ii, x := range v {
		x := int(x)
		if e.n == 0 {
			e.min[ii], e.max[ii] = x, x
			continue
		}
		if x < e.min[ii] {
			e.min[ii] = x
			changed = true
		}
		if x > e.max[ii] {
			e.max[ii] = x
			changed = true
		}
	}
	e.n++
	return changed
}

// Count returns the number of samples added.
func (e *Extremes) Count() int { return e.n }

// MinMax returns the per-axis extremes.
func (e *Extremes) MinMax() (lo, hi [3]int) { return e.min, e.max }

// Data derives calibration from the extremes seen so far.
func (e *Extremes) Data() Data { return FromMinMax(e.min, e.max) }
