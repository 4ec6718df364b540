package domain

import (
	"fmt"
	"time"
)

// Datum is the payload of a trend-log record. It is implemented only by the
// types in this file, one per log-datum choice.
type Datum interface {
	Kind() Kind
	datum()
}

// Kind names a Datum variant.
type Kind uint8

const (
	KindStatus Kind = iota
	KindBoolean
	KindReal
	KindEnumerated
	KindUnsigned
	KindSigned
	KindBitString
	KindNull
	KindFailure
	KindTimeChange
	KindAny
)

var kindNames = [...]string{"status", "boolean", "real", "enumerated", "unsigned", "signed", "bitstring", "null", "failure", "time_change", "any"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// LogStatus is a synthetic record marking a change in the log itself.
type LogStatus struct {
	Disabled    bool
	Purged      bool
	Interrupted bool
}

type (
	Boolean    bool
	Real       float32
	Enumerated uint32
	Unsigned   uint32
	Signed     int32
	// TimeChange carries the clock adjustment in seconds.
	TimeChange float32
	Null       struct{}
	// Any stands in for an abstract-syntax value the log does not retain.
	Any struct{}
)

// BitString holds at most 32 bits; wider sources are truncated on capture.
type BitString struct {
	Bits uint32
	Len  uint8
}

// Failure records that the monitored property could not be read.
type Failure struct {
	Class uint32
	Code  uint32
}

func (LogStatus) Kind() Kind  { return KindStatus }
func (Boolean) Kind() Kind    { return KindBoolean }
func (Real) Kind() Kind       { return KindReal }
func (Enumerated) Kind() Kind { return KindEnumerated }
func (Unsigned) Kind() Kind   { return KindUnsigned }
func (Signed) Kind() Kind     { return KindSigned }
func (BitString) Kind() Kind  { return KindBitString }
func (Null) Kind() Kind       { return KindNull }
func (Failure) Kind() Kind    { return KindFailure }
func (TimeChange) Kind() Kind { return KindTimeChange }
func (Any) Kind() Kind        { return KindAny }

func (LogStatus) datum()  {}
func (Boolean) datum()    {}
func (Real) datum()       {}
func (Enumerated) datum() {}
func (Unsigned) datum()   {}
func (Signed) datum()     {}
func (BitString) datum()  {}
func (Null) datum()       {}
func (Failure) datum()    {}
func (TimeChange) datum() {}
func (Any) datum()        {}

// StatusFlags are the four BACnet status flags of the sampled object.
type StatusFlags uint8

const (
	StatusInAlarm StatusFlags = 1 << iota
	StatusFault
	StatusOverridden
	StatusOutOfService
)

// Record is one trend-log entry. HasStatus is set only for real captures
// whose status flags could be read.
type Record struct {
	Timestamp time.Time
	Datum     Datum
	Status    StatusFlags
	HasStatus bool
}

// StatusRecord builds a synthetic log-status record.
func StatusRecord(ts time.Time, st LogStatus) Record {
	return Record{Timestamp: ts, Datum: st}
}
