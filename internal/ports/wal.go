package ports

import "github.com/ghalamif/TrendFlow/internal/domain"

type WALEntryID uint64

type WAL interface {
	Append(r *domain.ArchiveRecord) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, r *domain.ArchiveRecord) error) error
	Commit(upto WALEntryID) error
	TruncateCommitted() error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
