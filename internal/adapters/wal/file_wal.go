package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// entry layout: [8 bytes id][4 bytes len][len bytes json record]
const entryHeaderLen = 12

// FileWAL journals archive records to a single append-only file. The id of
// the newest record handed to the archive sink is kept in a side file.
type FileWAL struct {
	mu        sync.Mutex
	dir       string
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.WALEntryID
	committed ports.WALEntryID
	sizeBytes int64
}

var _ ports.WAL = (*FileWAL)(nil)

func NewFileWAL(dir string) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &FileWAL{
		dir:      dir,
		path:     filepath.Join(dir, "records.wal"),
		metaPath: filepath.Join(dir, "records.committed"),
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	if err := w.scan(); err != nil {
		w.file.Close()
		return nil, err
	}
	if err := w.loadCommitted(); err != nil {
		w.file.Close()
		return nil, err
	}
	if w.nextID < w.committed {
		w.nextID = w.committed
	}
	return w, nil
}

func (w *FileWAL) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 64<<10)
	return nil
}

// scan walks the journal to find the last id and cuts a torn tail left by a
// crash mid-append.
func (w *FileWAL) scan() error {
	rf, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	var (
		offset int64
		lastID ports.WALEntryID
	)
	err = readEntries(bufio.NewReader(rf), func(id ports.WALEntryID, body []byte) error {
		offset += entryHeaderLen + int64(len(body))
		lastID = id
		return nil
	})
	if err != nil && !errors.Is(err, errTornEntry) {
		return err
	}
	if err := w.file.Truncate(offset); err != nil {
		return err
	}
	w.sizeBytes = offset
	w.nextID = lastID
	return nil
}

var errTornEntry = errors.New("wal: torn entry")

func readEntries(r io.Reader, fn func(id ports.WALEntryID, body []byte) error) error {
	for {
		var hdr [entryHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return errTornEntry
			}
			return fmt.Errorf("wal read header: %w", err)
		}
		id := ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		body := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errTornEntry
			}
			return fmt.Errorf("wal read body: %w", err)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
}

func (w *FileWAL) loadCommitted() error {
	data, err := os.ReadFile(w.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal commit marker: %w", err)
	}
	w.committed = ports.WALEntryID(u)
	return nil
}

func appendEntry(dst io.Writer, id ports.WALEntryID, body []byte) error {
	var hdr [entryHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
	if _, err := dst.Write(hdr[:]); err != nil {
		return err
	}
	_, err := dst.Write(body)
	return err
}

func (w *FileWAL) Append(r *domain.ArchiveRecord) (ports.WALEntryID, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID + 1
	if err := appendEntry(w.writer, id, body); err != nil {
		return 0, err
	}
	w.nextID = id
	w.sizeBytes += entryHeaderLen + int64(len(body))
	return id, nil
}

// Iterate replays every journaled record with an id of at least from.
func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, r *domain.ArchiveRecord) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = readEntries(bufio.NewReader(f), func(id ports.WALEntryID, body []byte) error {
		if id < from {
			return nil
		}
		var rec domain.ArchiveRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("wal entry %d: %w", id, err)
		}
		return fn(id, &rec)
	})
	if errors.Is(err, errTornEntry) {
		return fmt.Errorf("corrupt wal: %w", err)
	}
	return err
}

func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if upto <= w.committed {
		return nil
	}
	w.committed = upto
	return os.WriteFile(w.metaPath, []byte(fmt.Sprintf("%d\n", w.committed)), 0o644)
}

// TruncateCommitted rewrites the journal without the committed prefix and
// swaps it in with a rename.
func (w *FileWAL) TruncateCommitted() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	src, err := os.Open(w.path)
	if err != nil {
		return err
	}
	tmpPath := w.path + ".compact"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		src.Close()
		return err
	}
	bw := bufio.NewWriter(tmp)
	var kept int64
	err = readEntries(bufio.NewReader(src), func(id ports.WALEntryID, body []byte) error {
		if id <= w.committed {
			return nil
		}
		kept += entryHeaderLen + int64(len(body))
		return appendEntry(bw, id, body)
	})
	src.Close()
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return errors.Join(err, w.open())
	}
	w.sizeBytes = kept
	return w.open()
}

// Sync flushes buffered entries and fsyncs the journal.
func (w *FileWAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.writer.Flush(), w.file.Close())
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.nextID,
		SizeBytes:         w.sizeBytes,
	}
}
