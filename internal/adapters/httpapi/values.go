package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
)

// sourceJSON is the JSON form of Log_Device_Object_Property.
type sourceJSON struct {
	Device     string  `json:"device,omitempty"`
	Object     string  `json:"object"`
	Property   string  `json:"property"`
	ArrayIndex *uint32 `json:"array_index,omitempty"`
}

// jsonValue renders a property value for a response body.
func jsonValue(prop bacnet.PropertyID, v any, loc *time.Location) any {
	switch val := v.(type) {
	case bacnet.Enumerated:
		switch prop {
		case bacnet.PropLoggingType:
			return bacnet.LoggingType(val).String()
		case bacnet.PropObjectType:
			return bacnet.ObjectType(val).String()
		}
		return uint32(val)
	case bacnet.DateTime:
		if val.IsWildcard() {
			return nil
		}
		t, err := val.In(loc)
		if err != nil {
			return val.String()
		}
		return t.Format(time.RFC3339)
	case bacnet.ObjectID:
		return val.String()
	case bacnet.ObjectPropertyRef:
		out := sourceJSON{Object: val.Object.String(), Property: val.Property.String()}
		if val.Device.Type == bacnet.ObjectDevice {
			out.Device = val.Device.String()
		}
		if val.ArrayIndex != bacnet.ArrayAll {
			idx := val.ArrayIndex
			out.ArrayIndex = &idx
		}
		return out
	case bacnet.BitString:
		bits := make([]bool, val.Len())
		for i := range bits {
			bits[i] = val.Bit(i)
		}
		return bits
	default:
		return v
	}
}

// parseValue decodes a JSON write value into the type the registry expects
// for prop.
func parseValue(prop bacnet.PropertyID, raw json.RawMessage, loc *time.Location) (any, error) {
	switch prop {
	case bacnet.PropEnable, bacnet.PropStopWhenFull, bacnet.PropAlignIntervals, bacnet.PropTrigger:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%s wants a boolean", prop)
		}
		return b, nil

	case bacnet.PropRecordCount, bacnet.PropLogInterval, bacnet.PropIntervalOffset:
		var n uint32
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%s wants an unsigned integer", prop)
		}
		return n, nil

	case bacnet.PropLoggingType:
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			lt, err := bacnet.ParseLoggingType(name)
			if err != nil {
				return nil, err
			}
			return bacnet.Enumerated(lt), nil
		}
		var n uint32
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%s wants a name or number", prop)
		}
		return bacnet.Enumerated(n), nil

	case bacnet.PropStartTime, bacnet.PropStopTime:
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%s wants an RFC 3339 time or null", prop)
		}
		if s == nil || *s == "" {
			return bacnet.WildcardDateTime, nil
		}
		t, err := time.Parse(time.RFC3339, *s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prop, err)
		}
		return bacnet.DateTimeFromTime(t.In(loc)), nil

	case bacnet.PropLogDeviceObjectProperty:
		var src sourceJSON
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("%s: %w", prop, err)
		}
		return parseSource(src)

	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func parseSource(src sourceJSON) (bacnet.ObjectPropertyRef, error) {
	ref := bacnet.ObjectPropertyRef{ArrayIndex: bacnet.ArrayAll}
	obj, err := bacnet.ParseObjectID(src.Object)
	if err != nil {
		return ref, err
	}
	ref.Object = obj
	if ref.Property, err = bacnet.ParsePropertyID(src.Property); err != nil {
		return ref, err
	}
	if src.Device != "" {
		if ref.Device, err = bacnet.ParseObjectID(src.Device); err != nil {
			return ref, err
		}
		if ref.Device.Type != bacnet.ObjectDevice {
			return ref, fmt.Errorf("device %q is not a device object", src.Device)
		}
	}
	if src.ArrayIndex != nil {
		ref.ArrayIndex = *src.ArrayIndex
	}
	return ref, nil
}
