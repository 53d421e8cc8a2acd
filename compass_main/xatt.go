/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	xatt.go: XATT attitude datagrams over UDP.
*/

package main

import (
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/b3nn0/dmpcompass/sensors"
)

// xattSender sends X-Plane style attitude datagrams,
// "XATT<name>,heading,pitch,roll" in degrees.
type xattSender struct {
	name string
	conn io.WriteCloser
}

func dialXATT(addr, name string) (*xattSender, error) {
	udpaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "ResolveUDPAddr(%s)", addr)
	}
	conn, err := net.DialUDP("udp", nil, udpaddr)
	if err != nil {
		return nil, errors.Wrapf(err, "DialUDP(%s)", addr)
	}
	return &xattSender{name: name, conn: conn}, nil
}

func (x *xattSender) Record(s *sensors.Sample) error {
	msg := fmt.Sprintf("XATT%s,%f,%f,%f", x.name, s.Heading(), s.FusedEuler.Pitch/deg, s.FusedEuler.Roll/deg)
	_, err := x.conn.Write([]byte(msg))
	return err
}

func (x *xattSender) Close() error { return x.conn.Close() }
