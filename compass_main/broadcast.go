/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	broadcast.go: websocket attitude broadcast and setting messages.
*/

package main

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/b3nn0/dmpcompass/sensors"
)

// AttitudeMessage is pushed to websocket clients for every fused sample.
type AttitudeMessage struct {
	T        time.Time
	Roll     float64 // degrees
	Pitch    float64
	Heading  float64 // [0, 360)
	DMPYaw   float64
	HasMag   bool
	Backlog  int
	Accel    [3]int16
	Mag      [3]int16
	CalAccel [3]int16
	CalMag   [3]int16
}

func newAttitudeMessage(s *sensors.Sample) AttitudeMessage {
	return AttitudeMessage{
		T:        s.T,
		Roll:     s.FusedEuler.Roll / deg,
		Pitch:    s.FusedEuler.Pitch / deg,
		Heading:  s.Heading(),
		DMPYaw:   s.DMPEuler.Yaw / deg,
		HasMag:   s.HasMag,
		Backlog:  s.Backlog,
		Accel:    s.Accel,
		Mag:      s.Mag,
		CalAccel: s.CalibratedAccel,
		CalMag:   s.CalibratedMag,
	}
}

// SettingMessage lets a websocket client adjust the running compass.
type SettingMessage struct {
	Setting string `json:"setting"`
	Value   int    `json:"value"`
}

type broadcaster struct {
	sockets    []*websocket.Conn
	sockets_mu *sync.Mutex
	messages   chan []byte
	log        logrus.FieldLogger
}

func newBroadcaster(log logrus.FieldLogger) *broadcaster {
	ret := &broadcaster{
		sockets:    make([]*websocket.Conn, 0),
		sockets_mu: &sync.Mutex{},
		messages:   make(chan []byte, 1024),
		log:        log,
	}
	go ret.writer()
	return ret
}

// Record queues s for every connected client. A full queue drops the message.
func (b *broadcaster) Record(s *sensors.Sample) error {
	msg, err := json.Marshal(newAttitudeMessage(s))
	if err != nil {
		return err
	}
	select {
	case b.messages <- msg:
	default:
	}
	return nil
}

func (b *broadcaster) AddSocket(sock *websocket.Conn) {
	b.sockets_mu.Lock()
	b.sockets = append(b.sockets, sock)
	b.sockets_mu.Unlock()
}

func (b *broadcaster) clients() int {
	b.sockets_mu.Lock()
	defer b.sockets_mu.Unlock()
	return len(b.sockets)
}

func (b *broadcaster) writer() {
	for msg := range b.messages {
		// Send to all.
		p := make([]*websocket.Conn, 0) // Keep a list of the writeable sockets.
		b.sockets_mu.Lock()
		for _, sock := range b.sockets {
			err := sock.SetWriteDeadline(time.Now().Add(time.Second))
			_, err2 := sock.Write(msg)
			if err == nil && err2 == nil {
				p = append(p, sock)
			}
		}
		b.sockets = p // Save the list of writeable sockets.
		b.sockets_mu.Unlock()
	}
}

// handler registers each connection and applies SettingMessages until the
// client goes away.
func (b *broadcaster) handler(onSetting func(SettingMessage)) websocket.Handler {
	return func(conn *websocket.Conn) {
		b.AddSocket(conn)
		for {
			var msg SettingMessage
			err := websocket.JSON.Receive(conn, &msg)
			if err == io.EOF {
				return
			} else if err != nil {
				b.log.WithError(err).Debug("attitude socket")
				return
			}
			onSetting(msg)
		}
	}
}
