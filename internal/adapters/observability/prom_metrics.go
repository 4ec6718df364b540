package observability

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// PromObs reports through Prometheus collectors and a structured logger.
// Names it does not know are ignored.
type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

var _ ports.Observability = (*PromObs)(nil)

// NewPromObs registers the collectors on reg (the default registerer when
// nil) and logs through logger (JSON on stderr when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			"trendflow_captures_total":         counter("trendflow_captures_total", "Samples taken by trend logs, including failed reads."),
			"trendflow_capture_failures_total": counter("trendflow_capture_failures_total", "Samples recorded as failure entries."),
			"trendflow_records_archived_total": counter("trendflow_records_archived_total", "Log records written to the archive database."),
			"trendflow_archive_dropped_total":  counter("trendflow_archive_dropped_total", "Log records not archived because a buffer was full."),
			"trendflow_dlq_total":              counter("trendflow_dlq_total", "Log records sent to the DLQ after transform or sink failures."),
		},
		gauges: map[string]prometheus.Gauge{
			"trendflow_wal_size_bytes": gauge("trendflow_wal_size_bytes", "Size of the archive journal on disk."),
			"trendflow_queue_length":   gauge("trendflow_queue_length", "Journaled records waiting for the archive sink."),
		},
		histos: map[string]prometheus.Observer{
			"archive_sink_latency_seconds": prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "archive_sink_latency_seconds",
				Help:    "Time to write one batch to the archive sink.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			}),
			"trendflow_readrange_items": prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "trendflow_readrange_items",
				Help:    "Entries returned per ReadRange request.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			}),
		},
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	for _, h := range p.histos {
		reg.MustRegister(h.(prometheus.Collector))
	}
	return p
}

// Logger exposes the underlying logger for components that log directly.
func (p *PromObs) Logger() *slog.Logger { return p.logger }

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("err", err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("err", err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	p.ObserveValue(name, seconds)
}

func (p *PromObs) ObserveValue(name string, v float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, r *domain.ArchiveRecord, err error) {
	p.IncCounter("trendflow_dlq_total", 1)
	if r == nil {
		p.logger.Warn("dlq", slog.Uint64("wal_id", uint64(id)), slog.Any("err", err))
		return
	}
	p.logger.Warn("dlq",
		slog.Uint64("wal_id", uint64(id)),
		slog.Any("log", r.LogInstance),
		slog.Any("seq", r.Seq),
		slog.Any("err", err))
}
