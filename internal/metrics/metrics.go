// Package metrics exposes the logger's Prometheus counters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/flight-logger/internal/simconnect"
)

const namespace = "flightlogger"

// Metrics records dispatcher, engine and sink activity. It implements
// simconnect.Metrics and flightlog.Metrics.
type Metrics struct {
	dispatched     *prometheus.CounterVec
	decodeErrors   prometheus.Counter
	exceptions     *prometheus.CounterVec
	callbackErrors prometheus.Counter
	samples        *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	splits         prometheus.Counter
	connected      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dispatched_total",
			Help:      "Records received from the simulator, by kind.",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Records that could not be decoded.",
		}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_total",
			Help:      "Exception notifications sent by the simulator, by code.",
		}, []string{"code"}),
		callbackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_errors_total",
			Help:      "Callbacks that failed or panicked on the dispatcher.",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Position samples seen by the engine, by decision.",
		}, []string{"decision"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed sink writes, by sink.",
		}, []string{"sink"}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_splits_total",
			Help:      "New logs started after the aircraft was idle.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while connected to the simulator.",
		}),
	}

	reg.MustRegister(
		m.dispatched,
		m.decodeErrors,
		m.exceptions,
		m.callbackErrors,
		m.samples,
		m.sinkErrors,
		m.splits,
		m.connected,
	)

	return &m
}

func (m *Metrics) RecordDispatched(kind simconnect.RecvID) {
	m.dispatched.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Inc()
}

func (m *Metrics) RecordException(code uint32) {
	m.exceptions.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}

func (m *Metrics) RecordCallbackError() {
	m.callbackErrors.Inc()
}

func (m *Metrics) RecordDecision(decision string) {
	m.samples.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordSplit() {
	m.splits.Inc()
}

// SetConnected reports the simulator connection state.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
