package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/roman-kulish/flight-logger/internal/simconnect"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	var _ simconnect.Metrics = m

	m.RecordDispatched(simconnect.RecvIDSimObjectData)
	m.RecordDispatched(simconnect.RecvIDSimObjectData)
	m.RecordDispatched(simconnect.RecvIDEvent)
	if got := testutil.ToFloat64(m.dispatched.WithLabelValues("simobject_data")); got != 2 {
		t.Fatalf("expected 2 data records, got %f", got)
	}

	m.RecordException(simconnect.ExceptionNameUnrecognized)
	if got := testutil.ToFloat64(m.exceptions.WithLabelValues("7")); got != 1 {
		t.Fatalf("expected exception counter 1, got %f", got)
	}

	m.RecordDecodeError()
	m.RecordCallbackError()
	m.RecordSplit()
	if got := testutil.ToFloat64(m.decodeErrors) + testutil.ToFloat64(m.callbackErrors) + testutil.ToFloat64(m.splits); got != 3 {
		t.Fatalf("expected 3 single increments, got %f", got)
	}

	m.RecordDecision("logged")
	m.RecordSinkError("csv")
	if got := testutil.ToFloat64(m.samples.WithLabelValues("logged")); got != 1 {
		t.Fatalf("expected logged samples 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.sinkErrors.WithLabelValues("csv")); got != 1 {
		t.Fatalf("expected csv sink errors 1, got %f", got)
	}

	m.SetConnected(true)
	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Fatalf("expected connected gauge 1, got %f", got)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	if n == 0 {
		t.Fatal("expected registered collectors to report samples")
	}
}
