package ports

import "github.com/ghalamif/TrendFlow/internal/domain"

// Collector drives the trend logs and streams every appended record onto out.
type Collector interface {
	Start(out chan<- *domain.ArchiveRecord) error
	Stop() error
}
