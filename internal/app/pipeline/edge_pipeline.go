package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// MetricArchiveDropped counts records that never reached the journal or the
// queue.
const MetricArchiveDropped = "trendflow_archive_dropped_total"

// RunEdgePipeline starts col and journals every record it emits before
// enqueueing it for the sink. Once ctx is cancelled, records still buffered
// in the channel are journaled without being queued and the returned channel
// is closed.
func RunEdgePipeline(ctx context.Context, col ports.Collector, wal ports.WAL, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) (<-chan struct{}, error) {
	ch := make(chan *domain.ArchiveRecord, pol.MaxQueueLen)

	if err := col.Start(ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				drain(ch, wal, obs)
				return
			case r := <-ch:
				archive(r, wal, q, pol, obs)
			}
		}
	}()

	return done, nil
}

func archive(r *domain.ArchiveRecord, wal ports.WAL, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) {
	if !waitForWALCapacity(wal, pol, obs) {
		obs.IncCounter(MetricArchiveDropped, 1)
		return
	}

	id, err := wal.Append(r)
	if err != nil {
		obs.LogCritical("wal_append_failed", err,
			ports.Field{Key: "log", Value: r.LogInstance},
			ports.Field{Key: "seq", Value: r.Seq})
		obs.IncCounter(MetricArchiveDropped, 1)
		return
	}

	if !enqueueWithPolicy(q, id, r, pol, obs) {
		// still journaled; the next replay picks it up
		obs.IncCounter(MetricArchiveDropped, 1)
	}
}

func drain(ch <-chan *domain.ArchiveRecord, wal ports.WAL, obs ports.Observability) {
	for {
		select {
		case r := <-ch:
			if _, err := wal.Append(r); err != nil {
				obs.LogCritical("wal_append_failed", err, ports.Field{Key: "log", Value: r.LogInstance})
			}
		default:
			return
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

func waitForWALCapacity(wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.RecordQueue, id ports.WALEntryID, r *domain.ArchiveRecord, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, r); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

// ReplayWAL re-enqueues every journaled record the sink has not committed.
func ReplayWAL(wal ports.WAL, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) error {
	stats := wal.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	sleep := idleSleep(pol)
	var replayed int
	err := wal.Iterate(start, func(id ports.WALEntryID, r *domain.ArchiveRecord) error {
		for {
			if q.Enqueue(id, r) {
				replayed++
				return nil
			}
			switch pol.OnQueueFull {
			case "drop", "reject":
				return fmt.Errorf("queue full during WAL replay at id %d", id)
			default:
				time.Sleep(sleep)
			}
		}
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "records", Value: replayed},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}
