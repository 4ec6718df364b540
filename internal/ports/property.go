package ports

import (
	"context"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
)

// PropertyReader reads one property of an object and returns its value as
// application-tagged octets. A failed read returns a *bacnet.Error carrying
// the class and code to record.
type PropertyReader interface {
	ReadProperty(ctx context.Context, ref bacnet.ObjectPropertyRef) ([]byte, error)
}
