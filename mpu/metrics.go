/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	metrics.go: Prometheus counters for bus and FIFO health.
*/

package mpu

import "github.com/prometheus/client_golang/prometheus"

var (
	busErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpu_bus_errors_total",
			Help: "Failed I2C register transactions.",
		},
		[]string{"op"},
	)

	fifoOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mpu_fifo_overflows_total",
		Help: "FIFO overflows detected while draining.",
	})

	fifoResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mpu_fifo_resets_total",
		Help: "FIFO pointer resets.",
	})

	compassRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpu_compass_rejects_total",
			Help: "Compass samples discarded as stale or flagged.",
		},
		[]string{"reason"},
	)
)

// RegisterMetrics registers the driver's collectors with r.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{busErrors, fifoOverflows, fifoResets, compassRejects} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
