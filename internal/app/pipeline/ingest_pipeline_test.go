package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/TrendFlow/internal/adapters/queue"
	"github.com/ghalamif/TrendFlow/internal/adapters/wal"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]*domain.ArchiveRecord
	fail    int
}

func (s *recordingSink) WriteBatch(records []*domain.ArchiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("database unavailable")
	}
	s.batches = append(s.batches, records)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type rejectOdd struct{}

func (rejectOdd) Transform(r *domain.ArchiveRecord) (*domain.ArchiveRecord, error) {
	if r.Seq%2 == 1 {
		return nil, errors.New("odd sequence")
	}
	return r, nil
}

func (rejectOdd) Version() uint16 { return 7 }

func journal(t *testing.T, w ports.WAL, q ports.RecordQueue, n int) {
	t.Helper()
	for seq := 1; seq <= n; seq++ {
		r := &domain.ArchiveRecord{LogInstance: 1, Seq: uint32(seq), Kind: "unsigned"}
		id, err := w.Append(r)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !q.Enqueue(id, r) {
			t.Fatalf("enqueue %d", seq)
		}
	}
}

func runIngest(t *testing.T, w ports.WAL, q ports.RecordQueue, tr ports.Transformer, sink ports.Sink, obs ports.Observability, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunIngestPipeline(ctx, w, q, tr, sink, ports.Policy{MaxBatchSize: 2, IdleSleep: time.Millisecond}, obs)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !until() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

func TestRunIngestPipelineWritesAndCommits(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()
	q := queue.NewMemQueue(8)
	journal(t, w, q, 5)

	sink := &recordingSink{}
	obs := &mockObs{}
	runIngest(t, w, q, NopTransformer{}, sink, obs, func() bool {
		return w.Stats().OldestUncommitted == 6
	})

	if sink.written() != 5 {
		t.Fatalf("expected 5 archived records, got %d", sink.written())
	}
	if len(sink.batches[0]) != 2 {
		t.Fatalf("expected batches of 2, got %d", len(sink.batches[0]))
	}
	if sink.batches[0][0].TransformVer != 1 {
		t.Fatalf("expected transform version stamped, got %d", sink.batches[0][0].TransformVer)
	}
	if got := obs.counter(MetricRecordsArchived); got != 5 {
		t.Fatalf("expected archived counter 5, got %v", got)
	}
}

func (s *recordingSink) seqs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint32
	for _, b := range s.batches {
		for _, r := range b {
			out = append(out, r.Seq)
		}
	}
	return out
}

func TestRunIngestPipelineRetriesFailedBatch(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()
	q := queue.NewMemQueue(8)
	journal(t, w, q, 4)

	sink := &recordingSink{fail: 1}
	obs := &mockObs{}
	runIngest(t, w, q, NopTransformer{}, sink, obs, func() bool {
		return w.Stats().OldestUncommitted == 5
	})

	got := sink.seqs()
	if len(got) != 4 || got[0] != 1 || got[1] != 2 || got[2] != 3 || got[3] != 4 {
		t.Fatalf("expected records 1..4 archived in order, got %v", got)
	}
	if obs.errCount() != 1 {
		t.Fatalf("expected one sink failure logged, got %d", obs.errCount())
	}

	replayed := queue.NewMemQueue(8)
	if err := ReplayWAL(w, replayed, ports.Policy{OnQueueFull: "drop"}, obs); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Len() != 0 {
		t.Fatalf("nothing should be left to replay, got %d", replayed.Len())
	}
}

func TestRunIngestPipelineLeavesFailingBatchUncommitted(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()
	q := queue.NewMemQueue(8)
	journal(t, w, q, 4)

	down := &recordingSink{fail: 1 << 30}
	obs := &mockObs{}
	runIngest(t, w, q, NopTransformer{}, down, obs, func() bool {
		return obs.errCount() >= 3
	})

	if down.written() != 0 {
		t.Fatalf("expected nothing written, got %d", down.written())
	}
	if got := w.Stats().OldestUncommitted; got != 1 {
		t.Fatalf("failed batch must stay uncommitted, oldest=%d", got)
	}

	// a restart replays every record the sink never took
	replayed := queue.NewMemQueue(8)
	if err := ReplayWAL(w, replayed, ports.Policy{OnQueueFull: "drop"}, obs); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Len() != 4 {
		t.Fatalf("expected 4 replayed records, got %d", replayed.Len())
	}

	up := &recordingSink{}
	runIngest(t, w, replayed, NopTransformer{}, up, obs, func() bool {
		return w.Stats().OldestUncommitted == 5
	})
	if up.written() != 4 {
		t.Fatalf("expected 4 records archived after replay, got %d", up.written())
	}
}

func TestRunIngestPipelineSendsRejectsToDLQ(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()
	q := queue.NewMemQueue(8)
	journal(t, w, q, 4)

	sink := &recordingSink{}
	obs := &mockObs{}
	runIngest(t, w, q, rejectOdd{}, sink, obs, func() bool {
		return w.Stats().OldestUncommitted == 5
	})

	if sink.written() != 2 {
		t.Fatalf("expected 2 archived records, got %d", sink.written())
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.dlq) != 2 || obs.dlq[0] != 1 || obs.dlq[1] != 3 {
		t.Fatalf("unexpected dlq ids %v", obs.dlq)
	}
	if sink.batches[0][0].TransformVer != 7 {
		t.Fatalf("expected transform version 7, got %d", sink.batches[0][0].TransformVer)
	}
}
