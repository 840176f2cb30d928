package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordBuild("face", 5*time.Millisecond, 4096)
	m.RecordBuild("face", 7*time.Millisecond, 8192)
	m.RecordRequest("/v1/stats", "200", time.Millisecond)
	m.LocalQuadrants.Set(19)
	m.GhostQuadrants.Set(4)

	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("face")); got != 2 {
		t.Errorf("builds total = %v", got)
	}
	if got := testutil.ToFloat64(m.AugmentationMemory); got != 8192 {
		t.Errorf("augmentation memory = %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/stats", "200")); got != 1 {
		t.Errorf("requests total = %v", got)
	}
	if got := testutil.ToFloat64(m.LocalQuadrants); got != 19 {
		t.Errorf("local quadrants = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}
}
