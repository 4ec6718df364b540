package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

const (
	MetricRecordsArchived = "trendflow_records_archived_total"
	MetricSinkLatency     = "archive_sink_latency_seconds"
)

// compactBytes is the journal size above which a fully committed journal
// is rewritten empty.
const compactBytes = 4 << 20

// batch is a dequeued run of records after transformation. upto is the
// highest journal id it covers, rejected records included.
type batch struct {
	records []*domain.ArchiveRecord
	upto    ports.WALEntryID
}

// RunIngestPipeline drains q in batches through tr into sink and commits
// the journal behind every written batch. It returns when ctx is cancelled.
// A batch the sink rejects is retried before anything else is dequeued, so
// the commit mark never passes an unwritten record; if the pipeline stops
// first, the uncommitted journal replays it on the next start.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.RecordQueue, tr ports.Transformer, sink ports.Sink, pol ports.Policy, obs ports.Observability) {
	sleep := idleSleep(pol)
	var pending *batch
	for {
		if ctx.Err() != nil {
			return
		}

		if pending == nil {
			items := q.DequeueBatch(pol.MaxBatchSize)
			if len(items) == 0 {
				wait(ctx, sleep)
				continue
			}
			pending = transform(items, tr, obs)
		}

		if len(pending.records) > 0 && !write(sink, pending.records, obs) {
			wait(ctx, sleep)
			continue
		}
		commit(wal, q, pending.upto, obs)
		pending = nil
	}
}

func transform(items []ports.QueuedRecord, tr ports.Transformer, obs ports.Observability) *batch {
	b := &batch{records: make([]*domain.ArchiveRecord, 0, len(items))}
	for _, item := range items {
		if item.ID > b.upto {
			b.upto = item.ID
		}
		r, err := tr.Transform(item.Record)
		if err != nil {
			obs.RecordDLQ(item.ID, item.Record, err)
			continue
		}
		r.TransformVer = tr.Version()
		b.records = append(b.records, r)
	}
	return b
}

func write(sink ports.Sink, records []*domain.ArchiveRecord, obs ports.Observability) bool {
	start := time.Now()
	if err := sink.WriteBatch(records); err != nil {
		obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: sink.Name()},
			ports.Field{Key: "records", Value: len(records)})
		return false
	}
	obs.ObserveLatency(MetricSinkLatency, time.Since(start).Seconds())
	obs.IncCounter(MetricRecordsArchived, float64(len(records)))
	return true
}

func commit(wal ports.WAL, q ports.RecordQueue, upto ports.WALEntryID, obs ports.Observability) {
	if err := wal.Commit(upto); err != nil {
		obs.LogError("wal_commit_failed", err)
		return
	}
	stats := wal.Stats()
	if q.Len() > 0 || stats.OldestUncommitted <= stats.LatestAppended || stats.SizeBytes < compactBytes {
		return
	}
	if err := wal.TruncateCommitted(); err != nil {
		obs.LogError("wal_compact_failed", err)
	}
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// NopTransformer archives records unchanged.
type NopTransformer struct{}

func (NopTransformer) Transform(r *domain.ArchiveRecord) (*domain.ArchiveRecord, error) {
	return r, nil
}

func (NopTransformer) Version() uint16 { return 1 }
