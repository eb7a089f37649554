// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exports council invocation metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/llm-council/internal/invoker"
)

const namespace = "council"

// UnknownModel labels invocations whose id matched no configured model, so
// caller-supplied ids cannot mint new series.
const UnknownModel = "unknown"

// Recorder counts invocations per model and outcome. It implements
// invoker.Observer.
type Recorder struct {
	registry *prometheus.Registry

	invocations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	responseBytes *prometheus.HistogramVec
}

var _ invoker.Observer = (*Recorder)(nil)

// New creates a Recorder on a private registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a Recorder registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Model CLI invocations by outcome.",
		}, []string{"model", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock time from spawn to normalized result.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"model"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocations_in_flight",
			Help:      "Invocations currently running.",
		}),
		responseBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_bytes",
			Help:      "Size of successful responses after filtering.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"model"}),
	}
	reg.MustRegister(r.invocations, r.duration, r.inFlight, r.responseBytes)
	return r
}

// InvocationStarted implements invoker.Observer.
func (r *Recorder) InvocationStarted(string) {
	r.inFlight.Inc()
}

// InvocationFinished implements invoker.Observer.
func (r *Recorder) InvocationFinished(o invoker.Outcome) {
	r.inFlight.Dec()
	model := modelLabel(o)
	r.invocations.WithLabelValues(model, outcomeLabel(o)).Inc()
	r.duration.WithLabelValues(model).Observe(o.Duration.Seconds())
	if o.Result != nil {
		r.responseBytes.WithLabelValues(model).Observe(float64(len(o.Result.Content)))
	}
}

func modelLabel(o invoker.Outcome) string {
	if !o.Resolved {
		return UnknownModel
	}
	return o.Model
}

func outcomeLabel(o invoker.Outcome) string {
	if o.OK() {
		return "ok"
	}
	return o.Kind().String()
}

// Registry returns the registry the Recorder reports to.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
