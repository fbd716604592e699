package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}

// counterValue は指定名のカウンタメトリクスの値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestRecordUpstreamStatus_IncrementsCounter は上流ステータスカウンタが増加することを検証する。
func TestRecordUpstreamStatus_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamStatus(200)
	c.RecordUpstreamStatus(200)
	c.RecordUpstreamStatus(502)

	if got := counterValue(t, reg, "drainman_upstream_status_total"); got != 3 {
		t.Errorf("upstream_status_total = %v, want 3", got)
	}
}

// TestRecordUpstreamFailure_IncrementsCounter はトランスポート失敗カウンタが増加することを検証する。
func TestRecordUpstreamFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamFailure()

	if got := counterValue(t, reg, "drainman_upstream_failure_total"); got != 1 {
		t.Errorf("upstream_failure_total = %v, want 1", got)
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシヒストグラムが記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "drainman_upstream_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("drainman_upstream_latency_seconds metric not found")
	}
}

// TestRecordPollCycle_IncrementsCounter はポーリングサイクルカウンタが増加することを検証する。
func TestRecordPollCycle_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollCycle()
	c.RecordPollCycle()

	if got := counterValue(t, reg, "drainman_poll_cycles_total"); got != 2 {
		t.Errorf("poll_cycles_total = %v, want 2", got)
	}
}

// TestRecordPollError_IncrementsCounter はポーリングエラーカウンタが増加することを検証する。
func TestRecordPollError_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollError()

	if got := counterValue(t, reg, "drainman_poll_errors_total"); got != 1 {
		t.Errorf("poll_errors_total = %v, want 1", got)
	}
}

// TestRecordSessionsPruned_AddsToCounter は期限切れセッション削除数が加算されることを検証する。
func TestRecordSessionsPruned_AddsToCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsPruned(3)
	c.RecordSessionsPruned(2)

	if got := counterValue(t, reg, "drainman_sessions_pruned_total"); got != 5 {
		t.Errorf("sessions_pruned_total = %v, want 5", got)
	}
}
