/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	status.go: JSON status page.
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
)

type status struct {
	Uptime       string
	LastSample   string
	Samples      uint64
	Errors       uint64
	LastError    string `json:",omitempty"`
	Roll         float64
	Pitch        float64
	Heading      float64
	HasMag       bool
	YawMixFactor int
	ChipTemp     float64
	CPUTemp      float32
	Firmware     string
	Clients      int
}

type statusServer struct {
	s        *sampler
	b        *broadcaster
	started  time.Time
	firmware uint64 // image size, bytes
	now      func() time.Time

	cpuMu   sync.Mutex
	cpuTemp float32
}

func (ss *statusServer) setCPUTemp(t float32) {
	ss.cpuMu.Lock()
	ss.cpuTemp = t
	ss.cpuMu.Unlock()
}

func (ss *statusServer) status() status {
	now := ss.now()
	st := ss.s.stats()
	ret := status{
		Uptime:       humanize.RelTime(ss.started, now, "", ""),
		LastSample:   "never",
		Samples:      st.Samples,
		Errors:       st.Errors,
		YawMixFactor: st.YawMix,
		ChipTemp:     st.ChipTemp,
		Firmware:     humanize.Bytes(ss.firmware),
	}
	if st.LastErr != nil {
		ret.LastError = st.LastErr.Error()
	}
	if st.Last != nil {
		ret.LastSample = humanize.RelTime(st.Last.T, now, "ago", "from now")
		ret.Roll = st.Last.FusedEuler.Roll / deg
		ret.Pitch = st.Last.FusedEuler.Pitch / deg
		ret.Heading = st.Last.Heading()
		ret.HasMag = st.Last.HasMag
	}
	if ss.b != nil {
		ret.Clients = ss.b.clients()
	}
	ss.cpuMu.Lock()
	ret.CPUTemp = ss.cpuTemp
	ss.cpuMu.Unlock()
	return ret
}

func (ss *statusServer) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	statusJSON, _ := json.Marshal(ss.status())
	w.Header().Set("Content-Type", "application/json")
	w.Write(statusJSON)
}
