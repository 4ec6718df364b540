package trendlog

import (
	"fmt"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

// Hundredths of a second per second: Log_Interval and Interval_Offset travel
// in hundredths and are stored in whole seconds.
const centisPerSecond = 100

var (
	errWriteDenied   = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeWriteAccessDenied)
	errReadDenied    = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeReadAccessDenied)
	errInvalidType   = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeInvalidDataType)
	errOutOfRange    = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeValueOutOfRange)
	errUnknownProp   = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeUnknownProperty)
	errNotAnArray    = bacnet.NewError(bacnet.ClassProperty, bacnet.CodePropertyIsNotAnArray)
	errNoCOV         = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeOptionalFunctionalityNotSupported)
	errLogBufferFull = bacnet.NewError(bacnet.ClassObject, bacnet.CodeLogBufferFull)
)

// ReadProperty returns the value of one trend-log property. Values are
// bool, uint32, string, bacnet.Enumerated, bacnet.BitString,
// bacnet.ObjectID, bacnet.DateTime or bacnet.ObjectPropertyRef.
func (r *Registry) ReadProperty(instance uint32, prop bacnet.PropertyID, arrayIndex uint32) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.lookup(instance)
	if err != nil {
		return nil, err
	}
	if arrayIndex != bacnet.ArrayAll {
		if _, known := readers[prop]; known || prop == bacnet.PropLogBuffer {
			return nil, errNotAnArray
		}
		return nil, errUnknownProp
	}
	if prop == bacnet.PropLogBuffer {
		return nil, errReadDenied
	}
	read, ok := readers[prop]
	if !ok {
		return nil, errUnknownProp
	}
	return read(r, l), nil
}

var readers = map[bacnet.PropertyID]func(r *Registry, l *Log) any{
	bacnet.PropObjectIdentifier: func(_ *Registry, l *Log) any { return l.ObjectID() },
	bacnet.PropObjectName:       func(_ *Registry, l *Log) any { return l.name },
	bacnet.PropObjectType:       func(_ *Registry, _ *Log) any { return bacnet.Enumerated(bacnet.ObjectTrendLog) },
	bacnet.PropStatusFlags:      func(_ *Registry, _ *Log) any { return bacnet.NewBitString(4) },
	bacnet.PropEventState:       func(_ *Registry, _ *Log) any { return bacnet.Enumerated(bacnet.EventStateNormal) },
	bacnet.PropEnable:           func(_ *Registry, l *Log) any { return l.enabled },
	bacnet.PropStopWhenFull:     func(_ *Registry, l *Log) any { return l.stopWhenFull },
	bacnet.PropBufferSize:       func(_ *Registry, l *Log) any { return uint32(l.ring.Cap()) },
	bacnet.PropRecordCount:      func(_ *Registry, l *Log) any { return uint32(l.ring.Len()) },
	bacnet.PropTotalRecordCount: func(_ *Registry, l *Log) any { return l.ring.Total() },
	bacnet.PropLoggingType:      func(_ *Registry, l *Log) any { return bacnet.Enumerated(l.loggingType) },
	bacnet.PropStartTime: func(r *Registry, l *Log) any {
		return windowBound(l.window.Start, l.window.StartWildcard, r.loc)
	},
	bacnet.PropStopTime: func(r *Registry, l *Log) any {
		return windowBound(l.window.Stop, l.window.StopWildcard, r.loc)
	},
	bacnet.PropLogInterval:             func(_ *Registry, l *Log) any { return l.interval * centisPerSecond },
	bacnet.PropIntervalOffset:          func(_ *Registry, l *Log) any { return l.offset * centisPerSecond },
	bacnet.PropAlignIntervals:          func(_ *Registry, l *Log) any { return l.align },
	bacnet.PropTrigger:                 func(_ *Registry, l *Log) any { return l.trigger },
	bacnet.PropLogDeviceObjectProperty: func(_ *Registry, l *Log) any { return l.source },
}

func windowBound(t time.Time, wildcard bool, loc *time.Location) bacnet.DateTime {
	if wildcard {
		return bacnet.WildcardDateTime
	}
	return bacnet.DateTimeFromTime(t.In(loc))
}

// WriteProperty applies a write to one trend-log property. Rejected writes
// leave the log untouched and return a *bacnet.Error.
func (r *Registry) WriteProperty(instance uint32, prop bacnet.PropertyID, arrayIndex uint32, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.lookup(instance)
	if err != nil {
		return err
	}
	if arrayIndex != bacnet.ArrayAll {
		if _, known := readers[prop]; known || prop == bacnet.PropLogBuffer {
			return errNotAnArray
		}
		return errUnknownProp
	}
	now := r.now()

	switch prop {
	case bacnet.PropEnable:
		v, ok := value.(bool)
		if !ok {
			return errInvalidType
		}
		if v && l.stopWhenFull && l.ring.Full() {
			return errLogBufferFull
		}
		before := l.EffectiveEnabled(now)
		l.enabled = v
		l.noteEnableChange(now, before)

	case bacnet.PropStopWhenFull:
		v, ok := value.(bool)
		if !ok {
			return errInvalidType
		}
		turnedOn := v && !l.stopWhenFull
		l.stopWhenFull = v
		if turnedOn && l.ring.Full() && l.enabled {
			l.enabled = false
			l.insertStatus(now, domain.LogStatus{Disabled: true})
		}

	case bacnet.PropRecordCount:
		v, ok := value.(uint32)
		if !ok {
			return errInvalidType
		}
		if v != 0 {
			return errOutOfRange
		}
		l.purge(now)

	case bacnet.PropLoggingType:
		v, ok := value.(bacnet.Enumerated)
		if !ok {
			return errInvalidType
		}
		switch bacnet.LoggingType(v) {
		case bacnet.LoggingPolled:
			l.loggingType = bacnet.LoggingPolled
			if l.interval == 0 {
				l.interval = DefaultPollInterval
			}
		case bacnet.LoggingTriggered:
			l.loggingType = bacnet.LoggingTriggered
			l.interval = 0
		case bacnet.LoggingCOV:
			return errNoCOV
		default:
			return errOutOfRange
		}

	case bacnet.PropStartTime, bacnet.PropStopTime:
		v, ok := value.(bacnet.DateTime)
		if !ok {
			return errInvalidType
		}
		bound, wildcard, err := r.parseBound(v)
		if err != nil {
			return err
		}
		before := l.EffectiveEnabled(now)
		if prop == bacnet.PropStartTime {
			l.window.Start, l.window.StartWildcard = bound, wildcard
		} else {
			l.window.Stop, l.window.StopWildcard = bound, wildcard
		}
		l.noteEnableChange(now, before)

	case bacnet.PropLogInterval:
		v, ok := value.(uint32)
		if !ok {
			return errInvalidType
		}
		secs := v / centisPerSecond
		if secs == 0 {
			secs = 1
		}
		l.interval = secs

	case bacnet.PropIntervalOffset:
		v, ok := value.(uint32)
		if !ok {
			return errInvalidType
		}
		l.offset = v / centisPerSecond

	case bacnet.PropAlignIntervals:
		v, ok := value.(bool)
		if !ok {
			return errInvalidType
		}
		l.align = v

	case bacnet.PropTrigger:
		v, ok := value.(bool)
		if !ok {
			return errInvalidType
		}
		if l.loggingType == bacnet.LoggingPolled && l.align {
			return errWriteDenied
		}
		l.trigger = v

	case bacnet.PropLogDeviceObjectProperty:
		v, ok := value.(bacnet.ObjectPropertyRef)
		if !ok {
			return errInvalidType
		}
		if v.Object.Instance > bacnet.MaxInstance || v.Device.Instance > bacnet.MaxInstance {
			return errOutOfRange
		}
		if v != l.source {
			l.source = v
			l.purge(now)
		}

	default:
		if _, known := readers[prop]; known || prop == bacnet.PropLogBuffer {
			return errWriteDenied
		}
		return errUnknownProp
	}
	return nil
}

// parseBound turns a written Start_Time/Stop_Time into a local instant. A
// wildcard date, the all-zero value and the epoch all mean "unbounded".
func (r *Registry) parseBound(v bacnet.DateTime) (time.Time, bool, error) {
	if v.IsWildcard() || v.IsZero() {
		return time.Time{}, true, nil
	}
	if !v.Date.Encodable() {
		return time.Time{}, false, errOutOfRange
	}
	t, err := v.In(r.loc)
	if err != nil {
		return time.Time{}, false, errOutOfRange
	}
	if t.Unix() == 0 {
		return time.Time{}, true, nil
	}
	return t, false, nil
}

// DecodeWriteValue decodes the application-tagged value of a WriteProperty
// request into the Go type WriteProperty expects for prop.
func DecodeWriteValue(prop bacnet.PropertyID, data []byte) (any, error) {
	switch prop {
	case bacnet.PropLogDeviceObjectProperty:
		ref, _, err := bacnet.DecodeObjectPropertyRef(data)
		if err != nil {
			return nil, errInvalidType
		}
		return ref, nil
	case bacnet.PropStartTime, bacnet.PropStopTime:
		d, n, err := bacnet.DecodeApplicationValue(data)
		if err != nil {
			return nil, errInvalidType
		}
		tm, _, err := bacnet.DecodeApplicationValue(data[n:])
		if err != nil {
			return nil, errInvalidType
		}
		date, ok1 := d.(bacnet.Date)
		clock, ok2 := tm.(bacnet.Time)
		if !ok1 || !ok2 {
			return nil, errInvalidType
		}
		return bacnet.DateTime{Date: date, Time: clock}, nil
	}

	v, _, err := bacnet.DecodeApplicationValue(data)
	if err != nil {
		return nil, errInvalidType
	}
	var ok bool
	switch prop {
	case bacnet.PropEnable, bacnet.PropStopWhenFull, bacnet.PropAlignIntervals, bacnet.PropTrigger:
		_, ok = v.(bool)
	case bacnet.PropRecordCount, bacnet.PropLogInterval, bacnet.PropIntervalOffset:
		_, ok = v.(uint32)
	case bacnet.PropLoggingType:
		_, ok = v.(bacnet.Enumerated)
	default:
		ok = true
	}
	if !ok {
		return nil, errInvalidType
	}
	return v, nil
}

// EncodePropertyValue encodes a value returned by ReadProperty.
func EncodePropertyValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case bool:
		return bacnet.AppendApplicationBoolean(nil, val), nil
	case uint32:
		return bacnet.AppendApplicationUnsigned(nil, val), nil
	case string:
		return bacnet.AppendApplicationCharacterString(nil, val), nil
	case bacnet.Enumerated:
		return bacnet.AppendApplicationEnumerated(nil, uint32(val)), nil
	case bacnet.BitString:
		return bacnet.AppendApplicationBitString(nil, val), nil
	case bacnet.ObjectID:
		return bacnet.AppendApplicationObjectID(nil, val), nil
	case bacnet.DateTime:
		return bacnet.AppendApplicationDateTime(nil, val), nil
	case bacnet.ObjectPropertyRef:
		return bacnet.AppendObjectPropertyRef(nil, val), nil
	default:
		return nil, fmt.Errorf("trendlog: cannot encode %T", v)
	}
}
