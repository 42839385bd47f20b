package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.IncProcessed("delivered")
	m.IncProcessed("delivered")
	m.IncDropped("poison")
	m.ObserveDispatch("join_request", 30*time.Millisecond)
	m.IncSent("interactive")
	m.IncSendFailed("broadcast")
	m.IncCallback("already_processed")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	processed, ok := byName["stream_entries_processed"]
	if !ok {
		t.Fatalf("stream_entries_processed not registered")
	}
	if got := processed.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 processed, got %v", got)
	}

	if _, ok := byName["dispatch_duration_seconds"]; !ok {
		t.Fatalf("dispatch histogram not registered")
	}
	if _, ok := byName["callbacks_handled"]; !ok {
		t.Fatalf("callback counter not registered")
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewPipelineMetrics(nil)
	m.IncProcessed("delivered")
	m.IncDropped("poison")
	m.IncCallback("success")

	var empty *PipelineMetrics
	empty.IncSent("plain")
}
