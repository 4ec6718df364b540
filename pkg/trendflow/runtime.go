package trendflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/TrendFlow/internal/adapters/httpapi"
	"github.com/ghalamif/TrendFlow/internal/adapters/observability"
	"github.com/ghalamif/TrendFlow/internal/adapters/opcua"
	"github.com/ghalamif/TrendFlow/internal/adapters/points"
	"github.com/ghalamif/TrendFlow/internal/adapters/queue"
	"github.com/ghalamif/TrendFlow/internal/adapters/sink"
	"github.com/ghalamif/TrendFlow/internal/adapters/wal"
	"github.com/ghalamif/TrendFlow/internal/app/pipeline"
	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
	"github.com/ghalamif/TrendFlow/internal/trendlog"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	reader        PropertyReader
	collector     Collector
	sink          Sink
	transformer   Transformer
	wal           WAL
	queue         RecordQueue
	observability Observability
	prometheus    *prometheus.Registry
	location      *time.Location
	clock         func() time.Time
}

// WithPropertyReader replaces the point table and OPC UA bridge as the
// source of sampled values.
func WithPropertyReader(r PropertyReader) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.reader = r
	}
}

// WithCollector replaces the tick collector. A custom collector is
// responsible for calling Registry().Tick.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink injects a custom sink so records can be archived to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithTransformer overrides the default no-op transformer.
func WithTransformer(t Transformer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transformer = t
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithRecordQueue injects a custom queue implementation.
func WithRecordQueue(q RecordQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithPrometheusRegistry serves /metrics from reg instead of a registry
// private to the runtime.
func WithPrometheusRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.prometheus = reg
	}
}

// WithLocation overrides device.timezone for window bounds and record
// timestamps.
func WithLocation(loc *time.Location) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.location = loc
	}
}

// WithClock replaces the wall clock used for property writes.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = now
	}
}

// Runtime wires the trend logs to their value sources, the archive
// pipeline (collector → WAL → queue → sink) and the HTTP surface.
type Runtime struct {
	cfg         *Config
	policy      ports.Policy
	obs         ports.Observability
	prom        *prometheus.Registry
	registry    *trendlog.Registry
	points      *points.Table
	opcua       *opcua.Reader
	collector   ports.Collector
	wal         ports.WAL
	queue       ports.RecordQueue
	transformer ports.Transformer
	sink        ports.Sink
	db          *sql.DB

	mu          sync.Mutex
	servers     []*http.Server
	cancel      context.CancelFunc
	done        []<-chan struct{}
	gaugeStopCh chan struct{}
}

// NewRuntime bootstraps the default adapters (point table, optional OPC UA
// bridge, tick collector, file WAL, in-memory queue, SQL archive sink,
// Prometheus observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	loc := overrides.location
	var err error
	if loc == nil {
		if loc, err = cfg.Location(); err != nil {
			return nil, err
		}
	}

	rt := &Runtime{cfg: cfg, policy: cfg.Policy}

	rt.prom = overrides.prometheus
	if rt.prom == nil {
		rt.prom = prometheus.NewRegistry()
		rt.prom.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.obs = observability.NewPromObs(rt.prom, nil)
	}

	reader := overrides.reader
	if reader == nil {
		if reader, err = rt.defaultReader(); err != nil {
			return nil, err
		}
	}

	regOpts := []trendlog.RegistryOption{
		trendlog.WithLocation(loc),
		trendlog.WithObservability(rt.obs),
	}
	if overrides.clock != nil {
		regOpts = append(regOpts, trendlog.WithClock(overrides.clock))
	}
	rt.registry = trendlog.NewRegistry(cfg.Device.Instance, reader, regOpts...)
	logs, err := cfg.TrendLogs(loc)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if err := rt.registry.Add(l); err != nil {
			return nil, err
		}
	}

	rt.collector = overrides.collector
	if rt.collector == nil {
		rt.collector = trendlog.NewCollector(rt.registry, cfg.Device.Tick, rt.obs)
	}

	rt.sink = overrides.sink
	if rt.sink == nil {
		if rt.sink, rt.db, err = openArchive(cfg.Archive); err != nil {
			return nil, err
		}
	}
	if rt.sink == nil {
		// archive.driver none: the logs run without an archive path
		return rt, nil
	}

	rt.wal = overrides.wal
	if rt.wal == nil {
		if rt.wal, err = wal.NewFileWAL(cfg.WAL.Dir); err != nil {
			rt.closeDB()
			return nil, err
		}
	}

	rt.queue = overrides.queue
	if rt.queue == nil {
		rt.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	if err := pipeline.ReplayWAL(rt.wal, rt.queue, rt.policy, rt.obs); err != nil {
		rt.closeDB()
		return nil, err
	}

	rt.transformer = overrides.transformer
	if rt.transformer == nil {
		rt.transformer = pipeline.NopTransformer{}
	}
	return rt, nil
}

func (rt *Runtime) defaultReader() (ports.PropertyReader, error) {
	table, err := points.New(rt.cfg.Points)
	if err != nil {
		return nil, err
	}
	rt.points = table
	if rt.cfg.OPCUA == nil {
		return table, nil
	}
	rt.opcua, err = opcua.NewReader(*rt.cfg.OPCUA)
	if err != nil {
		return nil, err
	}
	return readerChain{table, rt.opcua}, nil
}

func openArchive(cfg ArchiveConfig) (ports.Sink, *sql.DB, error) {
	var dialect sink.Dialect
	switch cfg.Driver {
	case "none":
		return nil, nil, nil
	case "postgres":
		dialect = sink.Postgres
	case "sqlite":
		dialect = sink.SQLite
	default:
		return nil, nil, fmt.Errorf("archive driver %q", cfg.Driver)
	}

	db, err := sink.Open(dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	s := sink.NewSQLSink(db, cfg.Table, dialect)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("archive schema: %w", err)
	}
	return s, db, nil
}

// readerChain asks each reader in turn until one knows the object.
type readerChain []ports.PropertyReader

var errUnknownObject = bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)

func (c readerChain) ReadProperty(ctx context.Context, ref bacnet.ObjectPropertyRef) ([]byte, error) {
	for _, r := range c {
		v, err := r.ReadProperty(ctx, ref)
		if errors.Is(err, errUnknownObject) {
			continue
		}
		return v, err
	}
	return nil, errUnknownObject
}

// Registry exposes the trend logs for property access and ReadRange.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Points is the local point table, or nil when a custom PropertyReader
// was supplied.
func (rt *Runtime) Points() *PointTable { return rt.points }

// Start connects the OPC UA bridge, begins capturing and archiving, and
// launches the HTTP listeners. It returns immediately; call Run to block on
// a context instead.
func (rt *Runtime) Start() error {
	if rt == nil {
		return fmt.Errorf("runtime is nil")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancel != nil {
		return fmt.Errorf("runtime already started")
	}

	ctx, cancel := context.WithCancel(context.Background())

	if rt.opcua != nil {
		cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
		err := rt.opcua.Connect(cctx)
		ccancel()
		if err != nil {
			cancel()
			return err
		}
	}

	if rt.sink != nil {
		done, err := pipeline.RunEdgePipeline(ctx, rt.collector, rt.wal, rt.queue, rt.policy, rt.obs)
		if err != nil {
			cancel()
			return err
		}
		ingestDone := make(chan struct{})
		go func() {
			pipeline.RunIngestPipeline(ctx, rt.wal, rt.queue, rt.transformer, rt.sink, rt.policy, rt.obs)
			close(ingestDone)
		}()
		rt.done = append(rt.done, done, ingestDone)
	} else {
		ch := make(chan *domain.ArchiveRecord, 64)
		if err := rt.collector.Start(ch); err != nil {
			cancel()
			return err
		}
		rt.done = append(rt.done, discard(ctx, ch))
	}

	rt.cancel = cancel
	rt.startHTTP()
	return nil
}

func discard(ctx context.Context, ch <-chan *domain.ArchiveRecord) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return done
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rt.Shutdown(shutdownCtx)
}

// Shutdown stops capturing, drains the pipelines and closes the HTTP
// listeners, the OPC UA session, the journal and the archive database.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var errs []error

	if rt.gaugeStopCh != nil {
		close(rt.gaugeStopCh)
		rt.gaugeStopCh = nil
	}

	for _, srv := range rt.servers {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	rt.servers = nil

	if rt.collector != nil {
		if err := rt.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if rt.cancel != nil {
		rt.cancel()
		for _, done := range rt.done {
			select {
			case <-done:
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
			}
		}
		rt.done = nil
	}

	if rt.opcua != nil {
		if err := rt.opcua.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c, ok := rt.wal.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := rt.closeDB(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (rt *Runtime) closeDB() error {
	if rt.db == nil {
		return nil
	}
	err := rt.db.Close()
	rt.db = nil
	return err
}

// Handler serves /metrics, /healthz and the trend-log API on one mux.
func (rt *Runtime) Handler() http.Handler {
	mux := rt.baseMux()
	httpapi.New(rt.registry).Register(mux)
	return mux
}

func (rt *Runtime) baseMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.prom, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (rt *Runtime) startHTTP() {
	if rt.cfg.HTTP.Addr == "" || rt.cfg.HTTP.Addr == rt.cfg.Metrics.Addr {
		rt.serve(rt.cfg.Metrics.Addr, rt.Handler())
	} else {
		rt.serve(rt.cfg.Metrics.Addr, rt.baseMux())
		api := http.NewServeMux()
		httpapi.New(rt.registry).Register(api)
		rt.serve(rt.cfg.HTTP.Addr, api)
	}

	rt.gaugeStopCh = make(chan struct{})
	go rt.recordResourceGauges(rt.gaugeStopCh, time.Second)
}

func (rt *Runtime) serve(addr string, h http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rt.servers = append(rt.servers, srv)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.obs.LogError("http_server_exited", err, ports.Field{Key: "addr", Value: addr})
		}
	}()
}

func (rt *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if rt.wal == nil {
				continue
			}
			stats := rt.wal.Stats()
			rt.obs.SetGauge("trendflow_wal_size_bytes", float64(stats.SizeBytes))
			rt.obs.SetGauge("trendflow_queue_length", float64(rt.queue.Len()))
		}
	}
}
