package bacnet

import (
	"fmt"
	"strconv"
)

// ObjectType is the BACnet object type number carried in an object identifier.
type ObjectType uint16

const (
	ObjectAnalogInput      ObjectType = 0
	ObjectAnalogOutput     ObjectType = 1
	ObjectAnalogValue      ObjectType = 2
	ObjectBinaryInput      ObjectType = 3
	ObjectBinaryOutput     ObjectType = 4
	ObjectBinaryValue      ObjectType = 5
	ObjectDevice           ObjectType = 8
	ObjectMultiStateInput  ObjectType = 13
	ObjectMultiStateOutput ObjectType = 14
	ObjectMultiStateValue  ObjectType = 19
	ObjectTrendLog         ObjectType = 20
)

var objectTypeNames = map[ObjectType]string{
	ObjectAnalogInput:      "analog-input",
	ObjectAnalogOutput:     "analog-output",
	ObjectAnalogValue:      "analog-value",
	ObjectBinaryInput:      "binary-input",
	ObjectBinaryOutput:     "binary-output",
	ObjectBinaryValue:      "binary-value",
	ObjectDevice:           "device",
	ObjectMultiStateInput:  "multi-state-input",
	ObjectMultiStateOutput: "multi-state-output",
	ObjectMultiStateValue:  "multi-state-value",
	ObjectTrendLog:         "trend-log",
}

func (t ObjectType) String() string {
	if s, ok := objectTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("object-type(%d)", uint16(t))
}

// ParseObjectType accepts the hyphenated BACnet name of an object type.
func ParseObjectType(s string) (ObjectType, error) {
	for t, name := range objectTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", s)
}

// PropertyID identifies a property of an object.
type PropertyID uint32

const (
	PropDescription             PropertyID = 28
	PropEventState              PropertyID = 36
	PropObjectIdentifier        PropertyID = 75
	PropObjectName              PropertyID = 77
	PropObjectType              PropertyID = 79
	PropOutOfService            PropertyID = 81
	PropPresentValue            PropertyID = 85
	PropStatusFlags             PropertyID = 111
	PropUnits                   PropertyID = 117
	PropBufferSize              PropertyID = 126
	PropLogBuffer               PropertyID = 131
	PropLogDeviceObjectProperty PropertyID = 132
	PropEnable                  PropertyID = 133
	PropLogInterval             PropertyID = 134
	PropRecordCount             PropertyID = 141
	PropStartTime               PropertyID = 142
	PropStopTime                PropertyID = 143
	PropStopWhenFull            PropertyID = 144
	PropTotalRecordCount        PropertyID = 145
	PropAlignIntervals          PropertyID = 193
	PropIntervalOffset          PropertyID = 195
	PropLoggingType             PropertyID = 197
	PropTrigger                 PropertyID = 205
)

var propertyNames = map[PropertyID]string{
	PropDescription:             "description",
	PropEventState:              "event-state",
	PropObjectIdentifier:        "object-identifier",
	PropObjectName:              "object-name",
	PropObjectType:              "object-type",
	PropOutOfService:            "out-of-service",
	PropPresentValue:            "present-value",
	PropStatusFlags:             "status-flags",
	PropUnits:                   "units",
	PropBufferSize:              "buffer-size",
	PropLogBuffer:               "log-buffer",
	PropLogDeviceObjectProperty: "log-device-object-property",
	PropEnable:                  "enable",
	PropLogInterval:             "log-interval",
	PropRecordCount:             "record-count",
	PropStartTime:               "start-time",
	PropStopTime:                "stop-time",
	PropStopWhenFull:            "stop-when-full",
	PropTotalRecordCount:        "total-record-count",
	PropAlignIntervals:          "align-intervals",
	PropIntervalOffset:          "interval-offset",
	PropLoggingType:             "logging-type",
	PropTrigger:                 "trigger",
}

func (p PropertyID) String() string {
	if s, ok := propertyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("property(%d)", uint32(p))
}

// ParsePropertyID accepts the hyphenated BACnet name, the snake_case form
// used in configuration files and URLs, or a decimal property number.
func ParsePropertyID(s string) (PropertyID, error) {
	for p, name := range propertyNames {
		if name == s || snake(name) == s {
			return p, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 22); err == nil {
		return PropertyID(n), nil
	}
	return 0, fmt.Errorf("unknown property %q", s)
}

func snake(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// LoggingType is the Logging_Type enumeration of a trend log.
type LoggingType uint32

const (
	LoggingPolled    LoggingType = 0
	LoggingCOV       LoggingType = 1
	LoggingTriggered LoggingType = 2
)

func (l LoggingType) String() string {
	switch l {
	case LoggingPolled:
		return "polled"
	case LoggingCOV:
		return "cov"
	case LoggingTriggered:
		return "triggered"
	default:
		return fmt.Sprintf("logging-type(%d)", uint32(l))
	}
}

// ParseLoggingType maps the configuration spelling onto the enumeration.
func ParseLoggingType(s string) (LoggingType, error) {
	switch s {
	case "polled", "":
		return LoggingPolled, nil
	case "cov":
		return LoggingCOV, nil
	case "triggered":
		return LoggingTriggered, nil
	default:
		return 0, fmt.Errorf("unknown logging type %q", s)
	}
}

// EventStateNormal is the only event state a trend log without intrinsic
// reporting ever reports.
const EventStateNormal uint32 = 0

// ArrayAll marks the absence of a property array index.
const ArrayAll uint32 = 0xFFFFFFFF

// MaxInstance is the largest valid object instance number.
const MaxInstance uint32 = 0x3FFFFF
