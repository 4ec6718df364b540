package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

func record(log, seq uint32) *domain.ArchiveRecord {
	return &domain.ArchiveRecord{
		LogInstance: log,
		Seq:         seq,
		Timestamp:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Kind:        "unsigned",
		Value:       "1",
	}
}

func collect(t *testing.T, w *FileWAL, from ports.WALEntryID) []uint32 {
	t.Helper()
	var seqs []uint32
	if err := w.Iterate(from, func(_ ports.WALEntryID, r *domain.ArchiveRecord) error {
		seqs = append(seqs, r.Seq)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return seqs
}

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	id1, err := w.Append(record(1, 10))
	if err != nil || id1 != 1 {
		t.Fatalf("append record 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(record(1, 11))
	if err != nil || id2 != 2 {
		t.Fatalf("append record 2: %v id=%d", err, id2)
	}

	if got := collect(t, w, 1); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("unexpected replay %v", got)
	}
	if got := collect(t, w, 2); len(got) != 1 || got[0] != 11 {
		t.Fatalf("iterate from 2 returned %v", got)
	}

	if err := w.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2, stats.OldestUncommitted)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}

	// a torn tail from a crash mid-append is cut on reopen
	if err := appendGarbage(filepath.Join(dir, "records.wal")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.Close()
	if got := collect(t, w3, 1); len(got) != 2 {
		t.Fatalf("records lost after torn tail: %v", got)
	}
	id3, err := w3.Append(record(1, 12))
	if err != nil || id3 != 3 {
		t.Fatalf("append after reopen: %v id=%d", err, id3)
	}
}

func TestFileWALTruncateCommitted(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	for seq := uint32(1); seq <= 4; seq++ {
		if _, err := w.Append(record(2, seq)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	before := w.Stats().SizeBytes
	if err := w.Commit(3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if got := collect(t, w, 0); len(got) != 1 || got[0] != 4 {
		t.Fatalf("after truncate got %v", got)
	}
	if after := w.Stats().SizeBytes; after >= before {
		t.Fatalf("size did not shrink: %d -> %d", before, after)
	}
	id, err := w.Append(record(2, 5))
	if err != nil || id != 5 {
		t.Fatalf("ids must continue after truncate: %v id=%d", err, id)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
