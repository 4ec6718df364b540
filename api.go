package trendflow

import (
	"time"

	base "github.com/ghalamif/TrendFlow/pkg/trendflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/TrendFlow directly.
type (
	Config           = base.Config
	DeviceConfig     = base.DeviceConfig
	Policy           = base.Policy
	LogConfig        = base.LogConfig
	SourceConfig     = base.SourceConfig
	PointConfig      = base.PointConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUAPointConfig = base.OPCUAPointConfig
	ArchiveConfig    = base.ArchiveConfig
	MetricsConfig    = base.MetricsConfig
	WALConfig        = base.WALConfig
	HTTPConfig       = base.HTTPConfig
	Flow             = base.Flow
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	ArchiveRecord    = base.ArchiveRecord
	RecordBatchSink  = base.RecordBatchSink
	ChannelSink      = base.ChannelSink
	Registry         = base.Registry
	PointTable       = base.PointTable
	RangeRequest     = base.RangeRequest
	RangeResult      = base.RangeResult
	RangeMode        = base.RangeMode
	ObjectID         = base.ObjectID
	PropertyID       = base.PropertyID
	PropertyReader   = base.PropertyReader
	Collector        = base.Collector
	Sink             = base.Sink
	Transformer      = base.Transformer
	RecordQueue      = base.RecordQueue
	WAL              = base.WAL
	Observability    = base.Observability
	Field            = base.Field
	QueuedRecord     = base.QueuedRecord
	WALEntryID       = base.WALEntryID
	WALStats         = base.WALStats
)

// ReadRange addressing modes.
const (
	ByPosition = base.ByPosition
	BySequence = base.BySequence
	ByTime     = base.ByTime
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string) (*Flow, error) {
	return base.Conf(path)
}

func ConfFromConfig(cfg *Config) (*Flow, error) {
	return base.ConfFromConfig(cfg)
}

func NewFlow(deviceInstance uint32) *Flow {
	return base.NewFlow(deviceInstance)
}

func TrendLog(l LogConfig) StreamInOption {
	return base.TrendLog(l)
}

func LocalPoint(p PointConfig) StreamInOption {
	return base.LocalPoint(p)
}

func OPCUABridge(cfg OPCUAConfig) StreamInOption {
	return base.OPCUABridge(cfg)
}

func ReadFrom(r PropertyReader) StreamInOption {
	return base.ReadFrom(r)
}

func InLocation(loc *time.Location) StreamInOption {
	return base.InLocation(loc)
}

func Clock(now func() time.Time) StreamInOption {
	return base.Clock(now)
}

func TickEvery(d time.Duration) StreamInOption {
	return base.TickEvery(d)
}

func ArchiveSQL(driver, dsn string) StreamOutOption {
	return base.ArchiveSQL(driver, dsn)
}

func NoArchive() StreamOutOption {
	return base.NoArchive()
}

func ArchiveSink(s Sink) StreamOutOption {
	return base.ArchiveSink(s)
}

func ArchiveCallback(name string, fn RecordBatchSink) StreamOutOption {
	return base.ArchiveCallback(name, fn)
}

func ArchiveTransform(tr Transformer) StreamOutOption {
	return base.ArchiveTransform(tr)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithPropertyReader(r PropertyReader) RuntimeOption {
	return base.WithPropertyReader(r)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithTransformer(tr Transformer) RuntimeOption {
	return base.WithTransformer(tr)
}

func WithWAL(w WAL) RuntimeOption {
	return base.WithWAL(w)
}

func WithRecordQueue(q RecordQueue) RuntimeOption {
	return base.WithRecordQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLocation(loc *time.Location) RuntimeOption {
	return base.WithLocation(loc)
}

func WithClock(now func() time.Time) RuntimeOption {
	return base.WithClock(now)
}

// Sink adapters.
func NewCallbackSink(name string, fn RecordBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) *ChannelSink {
	return base.NewChannelSink(name, buffer)
}

func OnlyLogs(s Sink, instances ...uint32) Sink {
	return base.OnlyLogs(s, instances...)
}

// ParseObjectID parses "<object-type>:<instance>", e.g. "analog-input:1".
func ParseObjectID(s string) (ObjectID, error) {
	return base.ParseObjectID(s)
}
