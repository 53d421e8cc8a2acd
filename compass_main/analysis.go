/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	analysis.go: CSV analysis log of fused samples.
*/

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/b3nn0/goflying/ahrs"

	"github.com/b3nn0/dmpcompass/sensors"
)

const deg = ahrs.Deg

// analysisLog writes every fused sample as a CSV row for offline analysis.
type analysisLog struct {
	l      *ahrs.AHRSLogger
	logMap map[string]interface{}
	t0     time.Time
}

func analysisFilename(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("compass_%s.csv", now.Format("20060102_150405")))
}

func newAnalysisLog(filename string) *analysisLog {
	m := make(map[string]interface{})
	for _, k := range []string{
		"T", "Roll", "Pitch", "Heading", "DMPRoll", "DMPPitch", "DMPYaw",
		"Q0", "Q1", "Q2", "Q3", "A1", "A2", "A3", "M1", "M2", "M3", "MValid", "Backlog",
	} {
		m[k] = 0.0
	}
	return &analysisLog{l: ahrs.NewAHRSLogger(filename, m), logMap: m}
}

// Record updates the shared log map in place; AHRSLogger reads it on Log.
func (a *analysisLog) Record(s *sensors.Sample) error {
	if a.t0.IsZero() {
		a.t0 = s.T
	}
	m := a.logMap
	m["T"] = s.T.Sub(a.t0).Seconds()
	m["Roll"] = s.FusedEuler.Roll / deg
	m["Pitch"] = s.FusedEuler.Pitch / deg
	m["Heading"] = s.Heading()
	m["DMPRoll"] = s.DMPEuler.Roll / deg
	m["DMPPitch"] = s.DMPEuler.Pitch / deg
	m["DMPYaw"] = s.DMPEuler.Yaw / deg
	m["Q0"], m["Q1"], m["Q2"], m["Q3"] = s.DMP.W, s.DMP.X, s.DMP.Y, s.DMP.Z
	m["A1"], m["A2"], m["A3"] = float64(s.CalibratedAccel[0]), float64(s.CalibratedAccel[1]), float64(s.CalibratedAccel[2])
	m["M1"], m["M2"], m["M3"] = float64(s.CalibratedMag[0]), float64(s.CalibratedMag[1]), float64(s.CalibratedMag[2])
	m["MValid"] = 0.0
	if s.HasMag {
		m["MValid"] = 1.0
	}
	m["Backlog"] = float64(s.Backlog)
	a.l.Log()
	return nil
}

func (a *analysisLog) Close() error {
	a.l.Close()
	return nil
}
