package ports

import "github.com/ghalamif/TrendFlow/internal/domain"

type Transformer interface {
	Transform(*domain.ArchiveRecord) (*domain.ArchiveRecord, error)
	Version() uint16
}
