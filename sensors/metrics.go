/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	metrics.go: Prometheus collectors for the compass facade.
*/

package sensors

import "github.com/prometheus/client_golang/prometheus"

var (
	fusedSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ahrs_fused_samples_total",
		Help: "Samples read and fused.",
	})

	droppedSamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ahrs_dropped_samples_total",
			Help: "Samples discarded, by reason.",
		},
		[]string{"reason"},
	)

	fusedYaw = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ahrs_fused_yaw_radians",
		Help: "Most recent fused yaw.",
	})

	fifoBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ahrs_fifo_backlog_packets",
		Help: "Packets skipped to reach the newest one on the last read.",
	})
)

// RegisterMetrics registers the facade's collectors with r.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{fusedSamples, droppedSamples, fusedYaw, fifoBacklog} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
