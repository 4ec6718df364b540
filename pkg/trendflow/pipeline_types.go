package trendflow

import (
	"github.com/ghalamif/TrendFlow/internal/adapters/points"
	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
	"github.com/ghalamif/TrendFlow/internal/trendlog"
)

// ArchiveRecord is one trend-log entry as it flows through the
// WAL→queue→sink archive path.
type ArchiveRecord = domain.ArchiveRecord

// QueuedRecord represents an item buffered inside the bounded queue.
type QueuedRecord = ports.QueuedRecord

// Collector drives the trend logs and streams appended records into the pipeline.
type Collector = ports.Collector

// PropertyReader supplies the values trend logs sample.
type PropertyReader = ports.PropertyReader

// RecordQueue is the bounded, in-memory queue that decouples the journal and sink.
type RecordQueue = ports.RecordQueue

// Transformer lets callers rewrite records before they are archived.
type Transformer = ports.Transformer

// Sink consumes batches of records and persists them to any downstream system.
type Sink = ports.Sink

// Observability emits metrics/logs about captures, archiving and DLQ conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID

// Registry owns the trend logs: property access, ReadRange and the
// scheduler tick.
type Registry = trendlog.Registry

// PointTable holds the device-local objects trend logs can sample.
type PointTable = points.Table

type (
	RangeRequest = trendlog.RangeRequest
	RangeResult  = trendlog.RangeResult
	RangeMode    = trendlog.Mode
	ObjectID     = bacnet.ObjectID
	PropertyID   = bacnet.PropertyID
)

const (
	ByPosition = trendlog.ByPosition
	BySequence = trendlog.BySequence
	ByTime     = trendlog.ByTime
)

// ParseObjectID parses "<object-type>:<instance>", e.g. "analog-input:1".
func ParseObjectID(s string) (ObjectID, error) {
	return bacnet.ParseObjectID(s)
}
