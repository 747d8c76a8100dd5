// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics exposes Prometheus collectors for the profile store.
package metrics // import "github.com/TomPlanche/PassGuard/internal/metrics"

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels recorded with every operation.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

// Recorder receives store measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveOperation records one finished store operation.
	ObserveOperation(op, result string, d time.Duration)
	// SetProfiles records the size of the latest committed collection.
	SetProfiles(n int)
	// AddSubscribers adjusts the number of live watch subscribers.
	AddSubscribers(delta int)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) ObserveOperation(string, string, time.Duration) {}
func (Nop) SetProfiles(int)                                {}
func (Nop) AddSubscribers(int)                             {}

// Prometheus is a Recorder backed by collectors on its own registry.
type Prometheus struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	profiles    prometheus.Gauge
	subscribers prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passguard",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Profile store operations by operation and result.",
		}, []string{"op", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "passguard",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of profile store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		profiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "passguard",
			Name:      "profiles",
			Help:      "Number of profiles in the latest committed collection.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "passguard",
			Name:      "watch_subscribers",
			Help:      "Number of live profile stream subscribers.",
		}),
	}
	p.registry.MustRegister(
		p.operations,
		p.durations,
		p.profiles,
		p.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveOperation(op, result string, d time.Duration) {
	p.operations.WithLabelValues(op, result).Inc()
	p.durations.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) SetProfiles(n int) { p.profiles.Set(float64(n)) }

func (p *Prometheus) AddSubscribers(delta int) { p.subscribers.Add(float64(delta)) }

// Registry returns the registry holding the PassGuard collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
