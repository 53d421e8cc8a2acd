/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	errors.go: driver error values.
*/

package mpu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validation failures. Returned before any bus traffic; the cache is unchanged.
var (
	ErrInvalidFSR     = errors.New("mpu: unsupported full-scale range")
	ErrInvalidRate    = errors.New("mpu: unsupported sample rate")
	ErrLPAccelRate    = errors.New("mpu: low-power accel rate above 40Hz")
	ErrChipAsleep     = errors.New("mpu: no sensors enabled")
	ErrBankCrossing   = errors.New("mpu: DMP memory access crosses a bank boundary")
	ErrFirmwareLoaded = errors.New("mpu: DMP firmware already loaded")
	ErrDMPNotLoaded   = errors.New("mpu: DMP firmware not loaded")
	ErrDMPOn          = errors.New("mpu: operation not allowed while DMP is on")
	ErrDMPOff         = errors.New("mpu: operation requires the DMP")
	ErrNilFirmware    = errors.New("mpu: no firmware image")
)

// Data-integrity failures. The current sample is lost; the loop may continue.
var (
	ErrFIFOOverflow     = errors.New("mpu: FIFO overflow, FIFO reset")
	ErrFIFOEmpty        = errors.New("mpu: not enough data in FIFO")
	ErrFirmwareMismatch = errors.New("mpu: DMP firmware verification failed")
	ErrCompassOff       = errors.New("mpu: compass not enabled")
	ErrCompassNotReady  = errors.New("mpu: compass data not ready")
	ErrCompassOverflow  = errors.New("mpu: compass overflow or data error")
)

// Fatal initialization failures.
var (
	ErrIncompatibleDevice  = errors.New("mpu: product ID read as 0, device is incompatible or an MPU3050")
	ErrUnsupportedRevision = errors.New("mpu: unsupported software product revision")
	ErrNoCompass           = errors.New("mpu: compass not found")
)

// BusError is an I/O failure on one register transaction.
type BusError struct {
	Op   string // "read" or "write"
	Addr byte
	Reg  byte
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("mpu: %s 0x%02X reg 0x%02X: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// IsBusError reports whether err is (or wraps) a bus I/O failure.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}
