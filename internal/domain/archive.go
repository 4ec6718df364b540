package domain

import (
	"strconv"
	"time"
)

// ArchiveRecord is a trend-log record flattened for the archive path
// (journal, queue and SQL sink).
type ArchiveRecord struct {
	LogInstance  uint32    `json:"log"`
	Seq          uint32    `json:"seq"`
	Timestamp    time.Time `json:"ts"`
	Kind         string    `json:"kind"`
	Value        string    `json:"value"`
	Numeric      *float64  `json:"numeric,omitempty"`
	Status       *uint8    `json:"status,omitempty"`
	TransformVer uint16    `json:"transform_ver"`
}

// NewArchiveRecord flattens r, which was stored in log under seq.
func NewArchiveRecord(log, seq uint32, r Record) *ArchiveRecord {
	a := &ArchiveRecord{
		LogInstance: log,
		Seq:         seq,
		Timestamp:   r.Timestamp,
		Kind:        r.Datum.Kind().String(),
	}
	if r.HasStatus {
		st := uint8(r.Status)
		a.Status = &st
	}

	num := func(f float64) {
		a.Numeric = &f
		a.Value = strconv.FormatFloat(f, 'g', -1, 64)
	}

	switch d := r.Datum.(type) {
	case LogStatus:
		switch {
		case d.Purged:
			a.Value = "buffer-purged"
		case d.Interrupted:
			a.Value = "log-interrupted"
		case d.Disabled:
			a.Value = "log-disabled"
		default:
			a.Value = "log-enabled"
		}
	case Boolean:
		if d {
			num(1)
		} else {
			num(0)
		}
		a.Value = strconv.FormatBool(bool(d))
	case Real:
		num(float64(d))
	case TimeChange:
		num(float64(d))
	case Enumerated:
		num(float64(d))
	case Unsigned:
		num(float64(d))
	case Signed:
		num(float64(d))
	case BitString:
		a.Value = strconv.FormatUint(uint64(d.Bits), 2)
	case Failure:
		a.Value = strconv.FormatUint(uint64(d.Class), 10) + ":" + strconv.FormatUint(uint64(d.Code), 10)
	case Null:
		a.Value = "null"
	case Any:
		a.Value = ""
	}
	return a
}

// Clone returns a copy that shares no pointers with a.
func (a *ArchiveRecord) Clone() ArchiveRecord {
	c := *a
	if a.Numeric != nil {
		v := *a.Numeric
		c.Numeric = &v
	}
	if a.Status != nil {
		st := *a.Status
		c.Status = &st
	}
	return c
}
