package trendflow

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ghalamif/TrendFlow/internal/domain"
)

// ErrChannelSinkClosed is returned by a ChannelSink written after Close.
var ErrChannelSinkClosed = errors.New("trendflow: channel sink closed")

// RecordBatchSink receives archived records in journal order. The records
// are copies the callee may keep.
type RecordBatchSink func([]ArchiveRecord) error

// NewCallbackSink archives by calling fn. An error from fn leaves the batch
// journaled and it is offered again.
func NewCallbackSink(name string, fn RecordBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return funcSink{name: name, fn: fn}
}

type funcSink struct {
	name string
	fn   RecordBatchSink
}

func (s funcSink) Name() string { return s.name }

func (s funcSink) WriteBatch(records []*domain.ArchiveRecord) error {
	switch {
	case s.fn == nil:
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	case len(records) == 0:
		return nil
	}
	return s.fn(detach(records))
}

// ChannelSink publishes archived batches on a channel. While the consumer
// is not reading, the archive pipeline waits and records stay journaled.
type ChannelSink struct {
	name string
	ch   chan []ArchiveRecord
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewChannelSink returns a sink whose batches are read from Batches.
func NewChannelSink(name string, buffer int) *ChannelSink {
	if name == "" {
		name = "channel"
	}
	return &ChannelSink{
		name: name,
		ch:   make(chan []ArchiveRecord, max(buffer, 0)),
		done: make(chan struct{}),
	}
}

func (s *ChannelSink) Name() string { return s.name }

// Batches is closed by Close.
func (s *ChannelSink) Batches() <-chan []ArchiveRecord { return s.ch }

func (s *ChannelSink) WriteBatch(records []*domain.ArchiveRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrChannelSinkClosed
	}
	if len(records) == 0 {
		return nil
	}
	select {
	case <-s.done:
		return ErrChannelSinkClosed
	case s.ch <- detach(records):
		return nil
	}
}

// Close releases a blocked writer and then closes Batches. It is safe to
// call more than once.
func (s *ChannelSink) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// OnlyLogs archives the records of the listed trend logs through s and
// drops the rest.
func OnlyLogs(s Sink, instances ...uint32) Sink {
	return logFilter{Sink: s, logs: slices.Clone(instances)}
}

type logFilter struct {
	Sink
	logs []uint32
}

func (f logFilter) WriteBatch(records []*domain.ArchiveRecord) error {
	kept := make([]*domain.ArchiveRecord, 0, len(records))
	for _, r := range records {
		if slices.Contains(f.logs, r.LogInstance) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return f.Sink.WriteBatch(kept)
}

func detach(records []*domain.ArchiveRecord) []ArchiveRecord {
	out := make([]ArchiveRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
