package ports

import "github.com/ghalamif/TrendFlow/internal/domain"

type QueuedRecord struct {
	ID     WALEntryID
	Record *domain.ArchiveRecord
}

type RecordQueue interface {
	Enqueue(id WALEntryID, r *domain.ArchiveRecord) bool
	DequeueBatch(max int) []QueuedRecord
	Len() int
}
