package ports

import "github.com/ghalamif/TrendFlow/internal/domain"

type Sink interface {
	WriteBatch(records []*domain.ArchiveRecord) error
	Name() string
}
