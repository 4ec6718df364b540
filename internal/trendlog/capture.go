package trendlog

import (
	"context"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// fetch samples the log's source through reader. It never fails: a read or
// decode problem becomes a Failure record.
func (l *Log) fetch(ctx context.Context, reader ports.PropertyReader, now time.Time) domain.Record {
	rec := domain.Record{Timestamp: now}
	if reader == nil {
		rec.Datum = failure(bacnet.NewError(bacnet.ClassDevice, bacnet.CodeOptionalFunctionalityNotSupported))
		return rec
	}

	raw, err := reader.ReadProperty(ctx, l.source)
	if err != nil {
		rec.Datum = failure(bacnet.AsError(err))
		return rec
	}
	v, _, err := bacnet.DecodeApplicationValue(raw)
	if err != nil {
		rec.Datum = failure(bacnet.NewError(bacnet.ClassProperty, bacnet.CodeDatatypeNotSupported))
		return rec
	}
	rec.Datum = DatumFromValue(v)

	statusRef := l.source
	statusRef.Property = bacnet.PropStatusFlags
	statusRef.ArrayIndex = bacnet.ArrayAll
	raw, err = reader.ReadProperty(ctx, statusRef)
	if err != nil {
		return rec
	}
	if sv, _, err := bacnet.DecodeApplicationValue(raw); err == nil {
		rec.Status, rec.HasStatus = StatusFromValue(sv)
	}
	return rec
}
