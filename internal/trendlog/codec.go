package trendlog

import (
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

// Bit positions of BACnetLogStatus.
const (
	logStatusDisabled    = 0
	logStatusPurged      = 1
	logStatusInterrupted = 2
)

// Context tags of BACnetLogRecord and its log-datum choice.
const (
	tagTimestamp   uint8 = 0
	tagLogDatum    uint8 = 1
	tagStatusFlags uint8 = 2

	datumStatus     uint8 = 0
	datumBoolean    uint8 = 1
	datumReal       uint8 = 2
	datumEnumerated uint8 = 3
	datumUnsigned   uint8 = 4
	datumSigned     uint8 = 5
	datumBitString  uint8 = 6
	datumNull       uint8 = 7
	datumFailure    uint8 = 8
	datumTimeChange uint8 = 9
	datumAny        uint8 = 10
)

// maxBitStringBits is the widest bit string a record can hold.
const maxBitStringBits = 32

// AppendRecord encodes rec as a BACnetLogRecord, rendering its timestamp in loc.
func AppendRecord(b []byte, rec domain.Record, loc *time.Location) []byte {
	if loc == nil {
		loc = time.Local
	}
	b = bacnet.AppendOpeningTag(b, tagTimestamp)
	b = bacnet.AppendApplicationDateTime(b, bacnet.DateTimeFromTime(rec.Timestamp.In(loc)))
	b = bacnet.AppendClosingTag(b, tagTimestamp)

	b = bacnet.AppendOpeningTag(b, tagLogDatum)
	b = appendDatum(b, rec.Datum)
	b = bacnet.AppendClosingTag(b, tagLogDatum)

	if rec.HasStatus {
		b = bacnet.AppendContextBitString(b, tagStatusFlags, bacnet.BitStringFromUint(uint32(rec.Status), 4))
	}
	return b
}

func appendDatum(b []byte, d domain.Datum) []byte {
	switch v := d.(type) {
	case domain.LogStatus:
		bs := bacnet.NewBitString(3).
			WithBit(logStatusDisabled, v.Disabled).
			WithBit(logStatusPurged, v.Purged).
			WithBit(logStatusInterrupted, v.Interrupted)
		return bacnet.AppendContextBitString(b, datumStatus, bs)
	case domain.Boolean:
		return bacnet.AppendContextBoolean(b, datumBoolean, bool(v))
	case domain.Real:
		return bacnet.AppendContextReal(b, datumReal, float32(v))
	case domain.Enumerated:
		return bacnet.AppendContextEnumerated(b, datumEnumerated, uint32(v))
	case domain.Unsigned:
		return bacnet.AppendContextUnsigned(b, datumUnsigned, uint32(v))
	case domain.Signed:
		return bacnet.AppendContextSigned(b, datumSigned, int32(v))
	case domain.BitString:
		return bacnet.AppendContextBitString(b, datumBitString, bacnet.BitStringFromUint(v.Bits, int(v.Len)))
	case domain.Null:
		return bacnet.AppendContextNull(b, datumNull)
	case domain.Failure:
		b = bacnet.AppendOpeningTag(b, datumFailure)
		b = bacnet.AppendApplicationEnumerated(b, v.Class)
		b = bacnet.AppendApplicationEnumerated(b, v.Code)
		return bacnet.AppendClosingTag(b, datumFailure)
	case domain.TimeChange:
		return bacnet.AppendContextReal(b, datumTimeChange, float32(v))
	default:
		b = bacnet.AppendOpeningTag(b, datumAny)
		return bacnet.AppendClosingTag(b, datumAny)
	}
}

// DatumFromValue converts a decoded application value into the matching
// datum. Bit strings wider than 32 bits keep their first 32 bits. Types a
// record cannot hold become a property/datatype-not-supported failure.
func DatumFromValue(v any) domain.Datum {
	switch val := v.(type) {
	case bacnet.Null:
		return domain.Null{}
	case bool:
		return domain.Boolean(val)
	case float32:
		return domain.Real(val)
	case bacnet.Enumerated:
		return domain.Enumerated(val)
	case uint32:
		return domain.Unsigned(val)
	case int32:
		return domain.Signed(val)
	case bacnet.BitString:
		bs := val.Truncate(maxBitStringBits)
		return domain.BitString{Bits: bs.Uint32(), Len: uint8(bs.Len())}
	default:
		return failure(bacnet.NewError(bacnet.ClassProperty, bacnet.CodeDatatypeNotSupported))
	}
}

// StatusFromValue extracts the four status flags from a decoded Status_Flags
// value.
func StatusFromValue(v any) (domain.StatusFlags, bool) {
	bs, ok := v.(bacnet.BitString)
	if !ok {
		return 0, false
	}
	return domain.StatusFlags(bs.Truncate(4).Uint32()), true
}

func failure(e *bacnet.Error) domain.Failure {
	return domain.Failure{Class: uint32(e.Class), Code: uint32(e.Code)}
}
