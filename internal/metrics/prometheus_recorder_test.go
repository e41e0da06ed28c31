package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("transfer", 150*time.Millisecond)
	pr.IncStageResult("transfer", ResultSuccess)
	pr.IncStageResult("finalize_ownership", ResultFatal)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome(OutcomeFailed)

	if got := testutil.ToFloat64(pr.stageResults.WithLabelValues("transfer", "success")); got != 1 {
		t.Fatalf("transfer success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pr.runOutcome.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed outcome = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pr.runDuration); got != 0.5 {
		t.Fatalf("run duration = %v, want 0.5", got)
	}
	if n := testutil.CollectAndCount(pr.stageDuration); n != 1 {
		t.Fatalf("stage duration series = %d, want 1", n)
	}
}

func TestPrometheusRecorderWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncStageResult("build_site", ResultSuccess)
	pr.IncRunOutcome(OutcomeSuccess)

	path := filepath.Join(t.TempDir(), "docdeploy.prom")
	if err := pr.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{
		`docdeploy_stage_results_total{result="success",stage="build_site"} 1`,
		`docdeploy_run_outcomes_total{outcome="success"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.IncStageResult("x", ResultSuccess)
	pr.ObserveRunDuration(time.Second)
	pr.IncRunOutcome(OutcomeSuccess)
}
