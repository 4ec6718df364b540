package trendflow

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []ArchiveRecord
	sink := NewCallbackSink("cb", func(batch []ArchiveRecord) error {
		received = append(received, batch...)
		return nil
	})

	num := 3.5
	input := &ArchiveRecord{
		LogInstance: 4,
		Seq:         42,
		Timestamp:   time.Unix(1, 0),
		Kind:        "real",
		Value:       "3.5",
		Numeric:     &num,
	}

	if err := sink.WriteBatch([]*ArchiveRecord{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 record, got %d", len(received))
	}
	got := received[0]
	if got.LogInstance != input.LogInstance || got.Seq != input.Seq {
		t.Fatalf("mismatched record payload: %+v vs %+v", got, input)
	}
	num = 0
	if got.Numeric == nil || *got.Numeric != 3.5 {
		t.Fatalf("expected numeric value to be copied, got %v", got.Numeric)
	}

	if err := sink.WriteBatch(nil); err != nil || len(received) != 1 {
		t.Fatalf("empty batch must not reach the callback, err=%v", err)
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.WriteBatch([]*ArchiveRecord{{Seq: 1}}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
}

func TestChannelSinkDeliversBatches(t *testing.T) {
	sink := NewChannelSink("chan", 1)
	defer sink.Close()

	input := &ArchiveRecord{LogInstance: 2, Seq: 7}
	if err := sink.WriteBatch([]*ArchiveRecord{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	select {
	case batch := <-sink.Batches():
		if len(batch) != 1 || batch[0].Seq != 7 {
			t.Fatalf("unexpected batch data: %+v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}
}

func TestChannelSinkCloseReleasesBlockedWriter(t *testing.T) {
	sink := NewChannelSink("", 0)
	if sink.Name() != "channel" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.WriteBatch([]*ArchiveRecord{{Seq: 1}})
	}()

	time.Sleep(10 * time.Millisecond)
	sink.Close()
	sink.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release the blocked writer")
	}
	if _, open := <-sink.Batches(); open {
		t.Fatalf("expected Batches to be closed")
	}
	if err := sink.WriteBatch([]*ArchiveRecord{{Seq: 2}}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed after close, got %v", err)
	}
}

func TestOnlyLogsFiltersByInstance(t *testing.T) {
	var seqs []uint32
	inner := NewCallbackSink("inner", func(batch []ArchiveRecord) error {
		for _, r := range batch {
			seqs = append(seqs, r.Seq)
		}
		return nil
	})
	sink := OnlyLogs(inner, 2, 5)

	err := sink.WriteBatch([]*ArchiveRecord{
		{LogInstance: 1, Seq: 10},
		{LogInstance: 2, Seq: 11},
		{LogInstance: 5, Seq: 12},
		{LogInstance: 3, Seq: 13},
	})
	if err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 11 || seqs[1] != 12 {
		t.Fatalf("unexpected filtered records %v", seqs)
	}
	if sink.Name() != "inner" {
		t.Fatalf("expected the wrapped sink name, got %s", sink.Name())
	}

	if err := sink.WriteBatch([]*ArchiveRecord{{LogInstance: 9, Seq: 14}}); err != nil || len(seqs) != 2 {
		t.Fatalf("batch without selected logs must be skipped, err=%v seqs=%v", err, seqs)
	}
}
