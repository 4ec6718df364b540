package bacnet

import (
	"errors"
	"fmt"
)

// ErrorClass is the BACnet error class reported with a rejected request.
type ErrorClass uint32

const (
	ClassDevice        ErrorClass = 0
	ClassObject        ErrorClass = 1
	ClassProperty      ErrorClass = 2
	ClassResources     ErrorClass = 3
	ClassSecurity      ErrorClass = 4
	ClassServices      ErrorClass = 5
	ClassVT            ErrorClass = 6
	ClassCommunication ErrorClass = 7
)

var classNames = [...]string{"device", "object", "property", "resources", "security", "services", "vt", "communication"}

func (c ErrorClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("error-class(%d)", uint32(c))
}

// ErrorCode is the BACnet error code reported with a rejected request.
type ErrorCode uint32

const (
	CodeOther                             ErrorCode = 0
	CodeDeviceBusy                        ErrorCode = 3
	CodeInconsistentParameters            ErrorCode = 7
	CodeInvalidDataType                   ErrorCode = 9
	CodeMissingRequiredParameter          ErrorCode = 16
	CodeReadAccessDenied                  ErrorCode = 27
	CodeServiceRequestDenied              ErrorCode = 29
	CodeTimeout                           ErrorCode = 30
	CodeUnknownObject                     ErrorCode = 31
	CodeUnknownProperty                   ErrorCode = 32
	CodeUnsupportedObjectType             ErrorCode = 36
	CodeValueOutOfRange                   ErrorCode = 37
	CodeWriteAccessDenied                 ErrorCode = 40
	CodeInvalidArrayIndex                 ErrorCode = 42
	CodeOptionalFunctionalityNotSupported ErrorCode = 45
	CodeDatatypeNotSupported              ErrorCode = 47
	CodePropertyIsNotAnArray              ErrorCode = 50
	CodeLogBufferFull                     ErrorCode = 75
)

var codeNames = map[ErrorCode]string{
	CodeOther:                             "other",
	CodeDeviceBusy:                        "device-busy",
	CodeInconsistentParameters:            "inconsistent-parameters",
	CodeInvalidDataType:                   "invalid-data-type",
	CodeMissingRequiredParameter:          "missing-required-parameter",
	CodeReadAccessDenied:                  "read-access-denied",
	CodeServiceRequestDenied:              "service-request-denied",
	CodeTimeout:                           "timeout",
	CodeUnknownObject:                     "unknown-object",
	CodeUnknownProperty:                   "unknown-property",
	CodeUnsupportedObjectType:             "unsupported-object-type",
	CodeValueOutOfRange:                   "value-out-of-range",
	CodeWriteAccessDenied:                 "write-access-denied",
	CodeInvalidArrayIndex:                 "invalid-array-index",
	CodeOptionalFunctionalityNotSupported: "optional-functionality-not-supported",
	CodeDatatypeNotSupported:              "datatype-not-supported",
	CodePropertyIsNotAnArray:              "property-is-not-an-array",
	CodeLogBufferFull:                     "log-buffer-full",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("error-code(%d)", uint32(c))
}

// Error is a protocol-level rejection: the pair that goes back on the wire
// in an Error PDU.
type Error struct {
	Class ErrorClass
	Code  ErrorCode
}

// NewError returns a protocol error for the given class and code.
func NewError(class ErrorClass, code ErrorCode) *Error {
	return &Error{Class: class, Code: code}
}

func (e *Error) Error() string {
	return fmt.Sprintf("bacnet: %s: %s", e.Class, e.Code)
}

// Is matches another *Error with the same class and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// AsError extracts the protocol error from err. Errors that carry no BACnet
// class and code are reported as device/other.
func AsError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return NewError(ClassDevice, CodeOther)
}
