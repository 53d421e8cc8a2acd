/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	settings.go: JSON daemon settings, defaults and validation.
*/

package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/fusion"
	"github.com/b3nn0/dmpcompass/mpu"
	"github.com/b3nn0/dmpcompass/sensors"
)

const configLocation = "/etc/compass.conf"

type Settings struct {
	I2CBus       byte
	Address      byte
	SampleRate   int
	CompassRate  int
	YawMixFactor int
	UseMag       bool

	FirmwarePath  string
	FirmwareStart uint16
	FirmwareRate  int

	AccelCalFile string
	MagCalFile   string

	ListenAddr  string
	DataLogFile string // empty disables the SQLite sample log
	AHRSLog     bool   // CSV analysis log in LogDir
	XATTAddr    string // host:port for XATT attitude datagrams, empty disables
	LogDir      string
	DEBUG       bool
}

func defaultSettings() Settings {
	def := sensors.DefaultConfig()
	return Settings{
		I2CBus:        1,
		Address:       mpu.Address,
		SampleRate:    def.SampleRate,
		CompassRate:   def.CompassRate,
		YawMixFactor:  def.YawMixFactor,
		UseMag:        def.UseMag,
		FirmwarePath:  "/etc/compass/dmp.bin",
		FirmwareStart: 0x0400,
		FirmwareRate:  200,
		AccelCalFile:  "/etc/compass/accelcal.txt",
		MagCalFile:    "/etc/compass/magcal.txt",
		ListenAddr:    ":9978",
		LogDir:        "/var/log/compass",
	}
}

// readSettings overlays the JSON file at path onto s. A missing file leaves
// s unchanged and is not an error.
func readSettings(path string, s *Settings) error {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "can't read settings %s", path)
	}
	next := *s
	if err := json.Unmarshal(buf, &next); err != nil {
		return errors.Wrapf(err, "can't read settings %s", path)
	}
	if err := next.validate(); err != nil {
		return errors.Wrapf(err, "settings %s", path)
	}
	*s = next
	return nil
}

func (s *Settings) validate() error {
	if s.SampleRate < 4 || s.SampleRate > 1000 {
		return errors.Errorf("SampleRate %d out of range [4, 1000]", s.SampleRate)
	}
	if s.UseMag && (s.CompassRate <= 0 || s.CompassRate > 100 || s.CompassRate > s.SampleRate) {
		return errors.Errorf("CompassRate %d out of range (0, min(100, %d)]", s.CompassRate, s.SampleRate)
	}
	if s.YawMixFactor < 0 || s.YawMixFactor > fusion.MaxYawMixFactor {
		return errors.Errorf("YawMixFactor %d out of range [0, %d]", s.YawMixFactor, fusion.MaxYawMixFactor)
	}
	if s.FirmwarePath == "" {
		return errors.New("FirmwarePath is required")
	}
	return nil
}

// sensorConfig builds the facade configuration, loading calibration files.
// Missing or unreadable calibration falls back to identity with a warning in
// the returned list.
func (s *Settings) sensorConfig() (sensors.Config, []error) {
	cfg := sensors.DefaultConfig()
	cfg.SampleRate = s.SampleRate
	cfg.CompassRate = s.CompassRate
	cfg.YawMixFactor = s.YawMixFactor
	cfg.UseMag = s.UseMag

	var warnings []error
	if s.AccelCalFile != "" {
		d, err := calibration.Load(s.AccelCalFile, calibration.AccelIdentity)
		if err != nil {
			warnings = append(warnings, err)
		}
		d = d.ForAccel()
		cfg.AccelCal = &d
	}
	if s.MagCalFile != "" {
		d, err := calibration.Load(s.MagCalFile, calibration.MagIdentity)
		if err != nil {
			warnings = append(warnings, err)
		}
		d = d.ForMag()
		cfg.MagCal = &d
	}
	return cfg, warnings
}
