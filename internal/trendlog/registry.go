package trendlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// ErrUnknownLog is returned for an instance that is not configured. It is
// the object/unknown-object protocol error.
var ErrUnknownLog = bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)

// ErrDuplicateLog is returned when two logs share an instance number.
var ErrDuplicateLog = errors.New("trendlog: duplicate log instance")

// Metric names reported through ports.Observability.
const (
	MetricCaptures        = "trendflow_captures_total"
	MetricCaptureFailures = "trendflow_capture_failures_total"
	MetricReadRangeItems  = "trendflow_readrange_items"
)

// Registry owns every trend log of the device. All operations (capture
// ticks, property access and range queries) run under one mutex, so a query
// never observes a half-applied append.
type Registry struct {
	mu sync.Mutex

	device         bacnet.ObjectID
	loc            *time.Location
	reader         ports.PropertyReader
	obs            ports.Observability
	now            func() time.Time
	captureTimeout time.Duration

	logs  map[uint32]*Log
	order []uint32
	emit  func(*domain.ArchiveRecord)
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLocation sets the zone used to render and parse local timestamps.
func WithLocation(loc *time.Location) RegistryOption {
	return func(r *Registry) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithObservability routes capture metrics and errors.
func WithObservability(obs ports.Observability) RegistryOption {
	return func(r *Registry) {
		if obs != nil {
			r.obs = obs
		}
	}
}

// WithClock replaces time.Now for property side effects.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCaptureTimeout bounds a single source read.
func WithCaptureTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.captureTimeout = d
		}
	}
}

// NewRegistry creates an empty registry for the device with the given
// instance number. reader supplies sampled values.
func NewRegistry(deviceInstance uint32, reader ports.PropertyReader, opts ...RegistryOption) *Registry {
	r := &Registry{
		device:         bacnet.ObjectID{Type: bacnet.ObjectDevice, Instance: deviceInstance},
		loc:            time.Local,
		reader:         reader,
		obs:            nopObservability{},
		now:            time.Now,
		captureTimeout: 3 * time.Second,
		logs:           make(map[uint32]*Log),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Device is the device object that owns the logs.
func (r *Registry) Device() bacnet.ObjectID { return r.device }

// Location is the zone of local timestamps.
func (r *Registry) Location() *time.Location { return r.loc }

// Add builds and registers a log.
func (r *Registry) Add(cfg Config) error {
	l, err := NewLog(cfg)
	if err != nil {
		return fmt.Errorf("trend log %d: %w", cfg.Instance, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[l.instance]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateLog, l.instance)
	}
	l.appended = r.recordAppended
	r.logs[l.instance] = l
	r.order = append(r.order, l.instance)
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return nil
}

// Instances lists configured log instances in ascending order.
func (r *Registry) Instances() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.order...)
}

// SetEmitter installs the callback that receives every appended record. It
// is called with the registry lock held and must not block.
func (r *Registry) SetEmitter(fn func(*domain.ArchiveRecord)) {
	r.mu.Lock()
	r.emit = fn
	r.mu.Unlock()
}

// Tick runs one scheduler pass at now over every log.
func (r *Registry) Tick(ctx context.Context, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sec := now.Unix()
	for _, inst := range r.order {
		l := r.logs[inst]
		if !l.EffectiveEnabled(now) || !l.due(sec) {
			continue
		}
		l.lastCapture = sec
		r.capture(ctx, l, now)
	}
}

func (r *Registry) capture(ctx context.Context, l *Log, now time.Time) {
	cctx, cancel := context.WithTimeout(ctx, r.captureTimeout)
	rec := l.fetch(cctx, r.reader, now.Truncate(time.Second))
	cancel()

	r.obs.IncCounter(MetricCaptures, 1)
	if f, ok := rec.Datum.(domain.Failure); ok {
		r.obs.IncCounter(MetricCaptureFailures, 1)
		r.obs.LogError("capture_failed", fmt.Errorf("source %s: class=%d code=%d", l.source, f.Class, f.Code),
			ports.Field{Key: "log", Value: l.instance})
	}
	wasEnabled := l.enabled
	l.append(rec)
	if wasEnabled && !l.enabled {
		r.obs.LogInfo("log_stopped_when_full", ports.Field{Key: "log", Value: l.instance})
	}
}

func (r *Registry) recordAppended(l *Log, seq uint32, rec domain.Record) {
	if r.emit != nil {
		r.emit(domain.NewArchiveRecord(l.instance, seq, rec))
	}
}

// Stats is a snapshot of one log's counters.
type Stats struct {
	Instance         uint32 `json:"instance"`
	Name             string `json:"name"`
	Enabled          bool   `json:"enabled"`
	EffectiveEnabled bool   `json:"effective_enabled"`
	LoggingType      string `json:"logging_type"`
	BufferSize       int    `json:"buffer_size"`
	RecordCount      int    `json:"record_count"`
	TotalRecordCount uint32 `json:"total_record_count"`
	FirstSequence    uint32 `json:"first_sequence"`
	Source           string `json:"source"`
}

// Stats returns counters for every log, ordered by instance.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]Stats, 0, len(r.order))
	for _, inst := range r.order {
		l := r.logs[inst]
		out = append(out, Stats{
			Instance:         l.instance,
			Name:             l.name,
			Enabled:          l.enabled,
			EffectiveEnabled: l.EffectiveEnabled(now),
			LoggingType:      l.loggingType.String(),
			BufferSize:       l.ring.Cap(),
			RecordCount:      l.ring.Len(),
			TotalRecordCount: l.ring.Total(),
			FirstSequence:    l.ring.FirstSequence(),
			Source:           l.source.String(),
		})
	}
	return out
}

// Records copies the live records of a log, oldest first.
func (r *Registry) Records(instance uint32) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.lookup(instance)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, l.ring.Len())
	for k := 1; k <= l.ring.Len(); k++ {
		rec, _ := l.ring.Get(k)
		out = append(out, rec)
	}
	return out, nil
}

func (r *Registry) lookup(instance uint32) (*Log, error) {
	l, ok := r.logs[instance]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLog, instance)
	}
	return l, nil
}

type nopObservability struct{}

func (nopObservability) LogInfo(string, ...ports.Field)                           {}
func (nopObservability) LogError(string, error, ...ports.Field)                   {}
func (nopObservability) LogCritical(string, error, ...ports.Field)                {}
func (nopObservability) IncCounter(string, float64)                               {}
func (nopObservability) ObserveLatency(string, float64)                           {}
func (nopObservability) ObserveValue(string, float64)                             {}
func (nopObservability) SetGauge(string, float64)                                 {}
func (nopObservability) RecordDLQ(ports.WALEntryID, *domain.ArchiveRecord, error) {}
