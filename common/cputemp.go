/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	cputemp.go: CPU temperature monitoring.
*/

package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const InvalidCPUTemp = float32(-99.0)

// ThermalZone is the board temperature file on a Raspberry Pi.
const ThermalZone = "/sys/class/thermal/thermal_zone0/temp"

type CPUTempUpdateFunc func(cpuTemp float32)

// ReadCPUTemp reads a sysfs thermal zone file. Millidegree values are scaled
// to degrees C; InvalidCPUTemp is returned when the file can't be parsed.
func ReadCPUTemp(path string) float32 {
	temp, err := os.ReadFile(path)
	if err != nil {
		return InvalidCPUTemp
	}
	tInt, err := strconv.Atoi(strings.TrimSpace(string(temp)))
	if err != nil {
		return InvalidCPUTemp
	}
	if tInt > 1000 {
		return float32(tInt) / float32(1000.0)
	}
	return float32(tInt) // case where Temp is returned as simple integer
}

/* CPUTempMonitor reads the board temperature every interval and calls a
callback until stop is closed. Run it as its own goroutine: reading the
RPi thermal zone sometimes hangs for quite some time. */

func CPUTempMonitor(path string, interval time.Duration, stop <-chan struct{}, updater CPUTempUpdateFunc) {
	timer := time.NewTicker(interval)
	defer timer.Stop()
	for {
		if t := ReadCPUTemp(path); IsCPUTempValid(t) {
			updater(t)
		}
		select {
		case <-timer.C:
		case <-stop:
			return
		}
	}
}

// Check if CPU temperature is valid. Assume <= 0 is invalid.
func IsCPUTempValid(cpuTemp float32) bool {
	return cpuTemp > 0
}
