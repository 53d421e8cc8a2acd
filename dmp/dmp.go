/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	dmp.go: motion processor firmware loading and FIFO packet decoding.
*/

// Package dmp loads an opaque motion-processor firmware image into the chip
// and decodes the quaternion packets it streams through the FIFO.
package dmp

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTruncatedPacket = errors.New("dmp: truncated FIFO packet")
	ErrBadQuaternion   = errors.New("dmp: quaternion magnitude out of range")
)

// PacketLength is the size of a 6-axis quaternion + raw accel + calibrated gyro packet.
const PacketLength = 4*4 + 3*2 + 3*2

// Quaternion magnitude window, checked in q14 after dropping the low 16 bits.
const (
	quatErrThresh = 1 << 24
	quatMagSqNorm = 1 << 28
	quatMagSqMin  = quatMagSqNorm - quatErrThresh
	quatMagSqMax  = quatMagSqNorm + quatErrThresh
)

// Memory is the chip-side access a firmware load needs.
type Memory interface {
	LoadFirmware(image []byte, start uint16, sampleRate int) error
	WriteMem(addr uint16, data []byte) error
	ReadMem(addr uint16, buf []byte) error
}

// FIFOSource yields one packet per call and the count of packets still waiting.
type FIFOSource interface {
	ReadFIFOStream(buf []byte) (int, error)
}

// MotionDriver is a firmware image together with the layout of the packets it emits.
type MotionDriver interface {
	Load(mem Memory) error
	PacketLength() int
	Decode(pkt []byte) (Packet, error)
}

// Packet is one decoded FIFO packet.
type Packet struct {
	Quat      [4]int32 // w, x, y, z in q30
	Accel     [3]int16
	Gyro      [3]int16
	Timestamp time.Time
	More      int // packets still queued in the FIFO
}

// Patch is a post-load write of firmware-specific configuration.
type Patch struct {
	Addr uint16
	Data []byte
}

// Image is a firmware blob and how to start it.
type Image struct {
	Firmware   []byte
	Start      uint16 // program start address
	SampleRate int    // fixed internal DMP rate, Hz
	Patches    []Patch

	// RateDivAddr is where the firmware keeps its FIFO output divider; zero
	// leaves the output at SampleRate.
	RateDivAddr uint16
	FIFORate    int
}

// FromFile reads a firmware blob from path.
func FromFile(path string, start uint16, sampleRate int) (*Image, error) {
	fw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading DMP firmware")
	}
	if len(fw) == 0 {
		return nil, errors.Errorf("dmp: firmware %s is empty", path)
	}
	return &Image{Firmware: fw, Start: start, SampleRate: sampleRate}, nil
}

// Load writes the firmware, the FIFO rate divider and any patches.
func (img *Image) Load(mem Memory) error {
	if err := mem.LoadFirmware(img.Firmware, img.Start, img.SampleRate); err != nil {
		return err
	}
	if img.RateDivAddr != 0 && img.FIFORate > 0 {
		div, err := img.rateDiv()
		if err != nil {
			return err
		}
		if err := mem.WriteMem(img.RateDivAddr, []byte{byte(div >> 8), byte(div)}); err != nil {
			return errors.Wrap(err, "writing DMP FIFO rate")
		}
	}
	for _, p := range img.Patches {
		if err := mem.WriteMem(p.Addr, p.Data); err != nil {
			return errors.Wrapf(err, "patching DMP memory at 0x%04X", p.Addr)
		}
	}
	return nil
}

func (img *Image) rateDiv() (uint16, error) {
	if img.FIFORate > img.SampleRate {
		return 0, errors.Errorf("dmp: FIFO rate %dHz above DMP rate %dHz", img.FIFORate, img.SampleRate)
	}
	return uint16(img.SampleRate/img.FIFORate - 1), nil
}

// OutputRate is the rate packets arrive in the FIFO.
func (img *Image) OutputRate() int {
	if img.RateDivAddr == 0 || img.FIFORate <= 0 {
		return img.SampleRate
	}
	div, err := img.rateDiv()
	if err != nil {
		return img.SampleRate
	}
	return img.SampleRate / (int(div) + 1)
}

func (img *Image) PacketLength() int { return PacketLength }

// Decode splits a packet into the quaternion, accel and gyro words, all big-endian.
func (img *Image) Decode(pkt []byte) (Packet, error) {
	var p Packet
	if len(pkt) < PacketLength {
		return p, errors.Wrapf(ErrTruncatedPacket, "%d bytes", len(pkt))
	}
	for ii := range p.Quat {
		p.Quat[ii] = int32(binary.BigEndian.Uint32(pkt[4*ii:]))
	}
	for ii := range p.Accel {
		p.Accel[ii] = int16(binary.BigEndian.Uint16(pkt[16+2*ii:]))
	}
	for ii := range p.Gyro {
		p.Gyro[ii] = int16(binary.BigEndian.Uint16(pkt[22+2*ii:]))
	}

	var magSq int64
	for _, q := range p.Quat {
		q14 := int64(q >> 16)
		magSq += q14 * q14
	}
	if magSq < quatMagSqMin || magSq > quatMagSqMax {
		return p, ErrBadQuaternion
	}
	return p, nil
}

// ReadPacket pulls and decodes one packet from src.
func ReadPacket(src FIFOSource, md MotionDriver, now time.Time) (Packet, error) {
	buf := make([]byte, md.PacketLength())
	more, err := src.ReadFIFOStream(buf)
	if err != nil {
		return Packet{}, err
	}
	p, err := md.Decode(buf)
	if err != nil {
		return Packet{}, err
	}
	p.Timestamp = now
	p.More = more
	return p, nil
}
