package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	obs.IncCounter("trendflow_captures_total", 5)
	if got := testutil.ToFloat64(obs.counters["trendflow_captures_total"]); got != 5 {
		t.Fatalf("expected capture counter 5, got %f", got)
	}

	obs.IncCounter("trendflow_archive_dropped_total", 2)
	if got := testutil.ToFloat64(obs.counters["trendflow_archive_dropped_total"]); got != 2 {
		t.Fatalf("expected drop counter 2, got %f", got)
	}

	obs.SetGauge("trendflow_wal_size_bytes", 42)
	if got := testutil.ToFloat64(obs.gauges["trendflow_wal_size_bytes"]); got != 42 {
		t.Fatalf("expected wal gauge 42, got %f", got)
	}

	obs.ObserveLatency("archive_sink_latency_seconds", 0.5)
	if samples := testutil.CollectAndCount(obs.histos["archive_sink_latency_seconds"].(prometheus.Collector)); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.ObserveValue("trendflow_readrange_items", 12)
	if n, err := testutil.GatherAndCount(reg, "trendflow_readrange_items"); err != nil || n != 1 {
		t.Fatalf("readrange histogram: n=%d err=%v", n, err)
	}

	obs.RecordDLQ(1, nil, nil)
	if got := testutil.ToFloat64(obs.counters["trendflow_dlq_total"]); got != 1 {
		t.Fatalf("expected dlq counter 1, got %f", got)
	}

	// unknown names are ignored
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)
}

func TestPromObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObs(prometheus.NewRegistry(), slog.New(slog.NewTextHandler(&buf, nil)))

	obs.LogError("capture_failed", errors.New("timeout"), ports.Field{Key: "log", Value: 4})
	obs.RecordDLQ(9, &domain.ArchiveRecord{LogInstance: 4, Seq: 17}, errors.New("sink down"))

	out := buf.String()
	for _, want := range []string{"capture_failed", "log=4", "err=timeout", "wal_id=9", "seq=17"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}
