package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordInvocationIncrementsCounters(t *testing.T) {
	m := InitPrometheus("metacall_test", nil)
	m.RecordInvocation("mock", "concat", "ok", 1.5)

	count := testutil.ToFloat64(m.invocationsTotal.WithLabelValues("mock", "concat", "ok"))
	if count != 1 {
		t.Fatalf("count = %v, want 1", count)
	}
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	m.RecordInvocation("mock", "concat", "ok", 1)
	m.SetActiveHandles("mock", 3)
	m.SetActiveAdapters(2)
	m.SetPointerRegistrySize(5)
	m.IncRejectedDereference()
	m.SetDelayedQueueDepth("mock", 1)
	m.RecordDiscoveryCache(true)
}
