package trendflow

import (
	"context"
	"fmt"
	"time"
)

// Flow assembles a Runtime in code: start from a YAML file, a Config or
// nothing at all, declare the sampling side with StreamIN (trend logs, the
// points they read, the clock and timezone they record in) and the archive
// side with StreamOUT.
//
//	rt, err := trendflow.NewFlow(260001).
//		StreamIN(trendflow.TrendLog(zoneTemp), trendflow.LocalPoint(ai1)).
//		StreamOUT(trendflow.ArchiveSQL("sqlite", "trends.db"))
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// StreamInOption configures what the logs sample and when.
type StreamInOption func(*Flow)

// StreamOutOption configures where captured records are archived.
type StreamOutOption func(*Flow)

// Conf loads a YAML configuration into a Flow.
func Conf(path string) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg)
}

// ConfFromConfig starts a Flow from an in-memory Config. The Flow edits cfg
// in place.
func ConfFromConfig(cfg *Config) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Flow{cfg: cfg}, nil
}

// NewFlow starts an empty Flow for the given device instance. Everything
// else takes its configuration default; at least one TrendLog is required
// before StreamOUT.
func NewFlow(deviceInstance uint32) *Flow {
	return &Flow{cfg: &Config{Device: DeviceConfig{Instance: deviceInstance}}}
}

// Config returns the configuration the Flow will build from.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options passes RuntimeOption values straight through, for adapters the
// StreamIN/StreamOUT vocabulary does not cover (collector, WAL, queue,
// observability).
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.with(opts...)
	return f
}

// StreamIN applies sampling-side options.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies archive-side options and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and blocks until ctx is cancelled.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func (f *Flow) with(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

// TrendLog declares a trend log, replacing any log with the same instance.
func TrendLog(l LogConfig) StreamInOption {
	return func(f *Flow) {
		for i := range f.cfg.Logs {
			if f.cfg.Logs[i].Instance == l.Instance {
				f.cfg.Logs[i] = l
				return
			}
		}
		f.cfg.Logs = append(f.cfg.Logs, l)
	}
}

// LocalPoint adds an object to the local point table, replacing any point
// for the same object.
func LocalPoint(p PointConfig) StreamInOption {
	return func(f *Flow) {
		for i := range f.cfg.Points {
			if f.cfg.Points[i].Object == p.Object {
				f.cfg.Points[i] = p
				return
			}
		}
		f.cfg.Points = append(f.cfg.Points, p)
	}
}

// OPCUABridge serves the objects bound in cfg from an OPC UA server. The
// local point table is still asked first.
func OPCUABridge(cfg OPCUAConfig) StreamInOption {
	return func(f *Flow) {
		f.cfg.OPCUA = &cfg
	}
}

// ReadFrom samples every log through r instead of the point table and the
// OPC UA bridge.
func ReadFrom(r PropertyReader) StreamInOption {
	return func(f *Flow) {
		if r != nil {
			f.with(WithPropertyReader(r))
		}
	}
}

// InLocation interprets Start_Time, Stop_Time and record timestamps in loc
// instead of the configured device timezone.
func InLocation(loc *time.Location) StreamInOption {
	return func(f *Flow) {
		if loc != nil {
			f.with(WithLocation(loc))
		}
	}
}

// Clock replaces the wall clock used to stamp property-write status records.
func Clock(now func() time.Time) StreamInOption {
	return func(f *Flow) {
		if now != nil {
			f.with(WithClock(now))
		}
	}
}

// TickEvery sets how often the logs are evaluated for capture.
func TickEvery(d time.Duration) StreamInOption {
	return func(f *Flow) {
		f.cfg.Device.Tick = d
	}
}

// ArchiveSQL archives into a postgres or sqlite database.
func ArchiveSQL(driver, dsn string) StreamOutOption {
	return func(f *Flow) {
		f.cfg.Archive.Driver = driver
		f.cfg.Archive.DSN = dsn
	}
}

// NoArchive keeps records only in the trend-log buffers.
func NoArchive() StreamOutOption {
	return func(f *Flow) {
		f.cfg.Archive.Driver = "none"
		f.cfg.Archive.DSN = ""
	}
}

// ArchiveSink archives through s. The journal and queue stay in front of it.
func ArchiveSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.with(WithSink(s))
		}
	}
}

// ArchiveCallback archives by calling fn with every batch.
func ArchiveCallback(name string, fn RecordBatchSink) StreamOutOption {
	return func(f *Flow) {
		f.with(WithSink(NewCallbackSink(name, fn)))
	}
}

// ArchiveTransform rewrites or rejects records before they reach the sink.
// Rejected records are reported to the dead-letter hook and not retried.
func ArchiveTransform(tr Transformer) StreamOutOption {
	return func(f *Flow) {
		if tr != nil {
			f.with(WithTransformer(tr))
		}
	}
}
