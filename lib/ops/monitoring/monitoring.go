/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package monitoring exports fail-away execution metrics to prometheus
package monitoring

import (
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"

	"github.com/gravitational/trace"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters for zone mutations, recovery store writes
// and operation executions.
//
// A nil *Metrics is valid and discards all observations
type Metrics struct {
	Mutations          *prometheus.CounterVec
	StoreWrites        *prometheus.CounterVec
	Executions         *prometheus.CounterVec
	ExecutionDurations *prometheus.HistogramVec
}

// New creates a new set of metrics and registers them with the specified registerer
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaults.MetricsNamespace,
			Name:      "mutations_total",
			Help:      "Number of auto scaling group zone mutations by operation and status",
		}, []string{"operation", "status"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaults.MetricsNamespace,
			Name:      "store_writes_total",
			Help:      "Number of recovery store writes by operation and status",
		}, []string{"operation", "status"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaults.MetricsNamespace,
			Name:      "executions_total",
			Help:      "Number of operation executions by operation and final state",
		}, []string{"operation", "state"}),
		ExecutionDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: defaults.MetricsNamespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of operation executions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.Mutations, m.StoreWrites, m.Executions, m.ExecutionDurations} {
		if err := registerer.Register(c); err != nil {
			return nil, trace.Wrap(err, "failed to register metrics")
		}
	}
	return m, nil
}

// ObserveMutation counts a zone mutation with the specified outcome
func (m *Metrics) ObserveMutation(operation, status string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, status).Inc()
}

// ObserveStoreWrite counts a recovery store write with the specified outcome
func (m *Metrics) ObserveStoreWrite(operation, status string) {
	if m == nil {
		return
	}
	m.StoreWrites.WithLabelValues(operation, status).Inc()
}

// ObserveExecution counts a finished execution and records its duration
func (m *Metrics) ObserveExecution(operation, state string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(operation, state).Inc()
	m.ExecutionDurations.WithLabelValues(operation).Observe(duration.Seconds())
}
