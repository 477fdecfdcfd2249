// Copyright 2023 The prunet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emac

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the data plane counters.
type Metrics struct {
	RxPackets   *prometheus.CounterVec
	RxBytes     *prometheus.CounterVec
	RxErrors    *prometheus.CounterVec
	RxOverflows prometheus.Counter
	RxDrains    prometheus.Counter

	TxPackets    *prometheus.CounterVec
	TxBytes      *prometheus.CounterVec
	TxCollisions *prometheus.CounterVec
	TxDropped    *prometheus.CounterVec

	LinkUp *prometheus.GaugeVec
}

// NewMetrics registers the data plane metrics with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the data plane metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RxPackets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_rx_pkts_total",
				Help: "Total number of frames lifted out of the host queues",
			},
			[]string{"port"},
		),
		RxBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_rx_bytes_total",
				Help: "Total received bytes",
			},
			[]string{"port"},
		),
		RxErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_rx_errors_total",
				Help: "Total receive errors by type",
			},
			[]string{"type"},
		),
		RxOverflows: f.NewCounter(
			prometheus.CounterOpts{
				Name: "emac_rx_overflows_total",
				Help: "Total frames the firmware discarded on queue overflow",
			},
		),
		RxDrains: f.NewCounter(
			prometheus.CounterOpts{
				Name: "emac_rx_drains_total",
				Help: "Total receive drain passes",
			},
		),
		TxPackets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_tx_pkts_total",
				Help: "Total frames enqueued for transmit",
			},
			[]string{"port", "queue"},
		),
		TxBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_tx_bytes_total",
				Help: "Total transmitted bytes",
			},
			[]string{"port"},
		),
		TxCollisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_tx_collisions_total",
				Help: "Total transmits diverted to the collision queue",
			},
			[]string{"port"},
		),
		TxDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emac_tx_dropped_total",
				Help: "Total transmits dropped by reason",
			},
			[]string{"port", "reason"},
		),
		LinkUp: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emac_link_up",
				Help: "Link state per port",
			},
			[]string{"port"},
		),
	}
}
