package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePackageDuration("grpc", "install", 90*time.Second)
	pr.IncPackageOutcome("succeeded")
	pr.ObserveCellDuration("ubuntu22.04-amd64", 20*time.Minute, true)
	pr.IncCellOutcome(true)
	pr.IncCloneRetry("protobuf")
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

// TestPrometheusRecorderReregistration constructs two recorders against the
// same registry; the second must reuse the registered collectors, and samples
// recorded through either recorder land in the same series.
func TestPrometheusRecorderReregistration(t *testing.T) {
	reg := prom.NewRegistry()
	a := NewPrometheusRecorder(reg)
	b := NewPrometheusRecorder(reg)

	a.IncPackageOutcome("succeeded")
	b.IncPackageOutcome("succeeded")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "cxxpack_package_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 2 {
		t.Fatalf("expected combined count 2, got %v", total)
	}
}

func TestNilRecorderSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObservePackageDuration("x", "build", time.Second)
	pr.IncPackageOutcome("failed")
	pr.ObserveCellDuration("c", time.Second, false)
	pr.IncCellOutcome(false)
	pr.IncCloneRetry("x")
}
