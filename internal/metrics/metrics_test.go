package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Verdict("duplicates")
	m.Verdict("duplicates")
	m.DeleteRequest("bulk")
	m.DeleteFailure("single")
	m.RoleAction("mute", "ok")
	m.WindowSize(7)
	m.PendingDeletes(3)
	m.PendingDeletes(-1)

	if got := testutil.ToFloat64(m.verdicts.WithLabelValues("duplicates")); got != 2 {
		t.Fatalf("expected 2 verdicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.deletions.WithLabelValues("bulk")); got != 1 {
		t.Fatalf("expected 1 bulk delete, got %v", got)
	}
	if got := testutil.ToFloat64(m.deleteFailures.WithLabelValues("single")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.roleActions.WithLabelValues("mute", "ok")); got != 1 {
		t.Fatalf("expected 1 role action, got %v", got)
	}
	if got := testutil.ToFloat64(m.windowSize); got != 7 {
		t.Fatalf("expected window size 7, got %v", got)
	}
	if got := testutil.ToFloat64(m.pendingDeletes); got != 2 {
		t.Fatalf("expected 2 pending, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Verdict("x")
	m.DeleteRequest("single")
	m.DeleteFailure("bulk")
	m.RoleAction("kick", "failed")
	m.WindowSize(1)
	m.PendingDeletes(1)
}
