package bacnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Application tag numbers.
const (
	TagNull            uint8 = 0
	TagBoolean         uint8 = 1
	TagUnsigned        uint8 = 2
	TagSigned          uint8 = 3
	TagReal            uint8 = 4
	TagDouble          uint8 = 5
	TagOctetString     uint8 = 6
	TagCharacterString uint8 = 7
	TagBitString       uint8 = 8
	TagEnumerated      uint8 = 9
	TagDate            uint8 = 10
	TagTime            uint8 = 11
	TagObjectID        uint8 = 12
)

const (
	classContext = 0x08
	lvtExtended  = 5
	lvtOpening   = 6
	lvtClosing   = 7
)

var (
	ErrTruncated     = errors.New("bacnet: truncated data")
	ErrUnexpectedTag = errors.New("bacnet: unexpected tag")
	ErrValueTooLong  = errors.New("bacnet: value too long")
)

// Tag is a decoded tag header.
type Tag struct {
	Number  uint8
	Context bool
	Opening bool
	Closing bool
	// Length is the content length, or the value of an application boolean.
	Length uint32
}

func appendTag(b []byte, number uint8, context bool, lvt uint32) []byte {
	var first byte
	if context {
		first |= classContext
	}
	var ext []byte
	if number <= 14 {
		first |= number << 4
	} else {
		first |= 0xF0
		ext = append(ext, number)
	}
	switch {
	case lvt <= 4:
		first |= byte(lvt)
		b = append(b, first)
		return append(b, ext...)
	case lvt <= 253:
		b = append(b, first|lvtExtended)
		b = append(b, ext...)
		return append(b, byte(lvt))
	case lvt <= 65535:
		b = append(b, first|lvtExtended)
		b = append(b, ext...)
		b = append(b, 254)
		return binary.BigEndian.AppendUint16(b, uint16(lvt))
	default:
		b = append(b, first|lvtExtended)
		b = append(b, ext...)
		b = append(b, 255)
		return binary.BigEndian.AppendUint32(b, lvt)
	}
}

// AppendOpeningTag appends a context opening tag.
func AppendOpeningTag(b []byte, number uint8) []byte {
	return appendMarker(b, number, lvtOpening)
}

// AppendClosingTag appends a context closing tag.
func AppendClosingTag(b []byte, number uint8) []byte {
	return appendMarker(b, number, lvtClosing)
}

func appendMarker(b []byte, number uint8, lvt byte) []byte {
	if number <= 14 {
		return append(b, number<<4|classContext|lvt)
	}
	return append(b, 0xF0|classContext|lvt, number)
}

func unsignedBytes(v uint32) []byte {
	switch {
	case v < 1<<8:
		return []byte{byte(v)}
	case v < 1<<16:
		return binary.BigEndian.AppendUint16(nil, uint16(v))
	case v < 1<<24:
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		return binary.BigEndian.AppendUint32(nil, v)
	}
}

func signedBytes(v int32) []byte {
	switch {
	case v >= -128 && v <= 127:
		return []byte{byte(v)}
	case v >= -32768 && v <= 32767:
		return binary.BigEndian.AppendUint16(nil, uint16(v))
	case v >= -8388608 && v <= 8388607:
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		return binary.BigEndian.AppendUint32(nil, uint32(v))
	}
}

func appendContent(b []byte, number uint8, context bool, content []byte) []byte {
	b = appendTag(b, number, context, uint32(len(content)))
	return append(b, content...)
}

func AppendApplicationNull(b []byte) []byte {
	return appendTag(b, TagNull, false, 0)
}

func AppendApplicationBoolean(b []byte, v bool) []byte {
	if v {
		return appendTag(b, TagBoolean, false, 1)
	}
	return appendTag(b, TagBoolean, false, 0)
}

func AppendApplicationUnsigned(b []byte, v uint32) []byte {
	return appendContent(b, TagUnsigned, false, unsignedBytes(v))
}

func AppendApplicationSigned(b []byte, v int32) []byte {
	return appendContent(b, TagSigned, false, signedBytes(v))
}

func AppendApplicationReal(b []byte, v float32) []byte {
	return appendContent(b, TagReal, false, binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

func AppendApplicationDouble(b []byte, v float64) []byte {
	return appendContent(b, TagDouble, false, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

func AppendApplicationEnumerated(b []byte, v uint32) []byte {
	return appendContent(b, TagEnumerated, false, unsignedBytes(v))
}

func AppendApplicationCharacterString(b []byte, s string) []byte {
	content := append([]byte{0}, s...)
	return appendContent(b, TagCharacterString, false, content)
}

func AppendApplicationBitString(b []byte, bs BitString) []byte {
	return appendContent(b, TagBitString, false, bs.content())
}

func AppendApplicationObjectID(b []byte, id ObjectID) []byte {
	return appendContent(b, TagObjectID, false, binary.BigEndian.AppendUint32(nil, id.encode()))
}

func AppendApplicationDate(b []byte, d Date) []byte {
	return appendContent(b, TagDate, false, d.content())
}

func AppendApplicationTime(b []byte, t Time) []byte {
	return appendContent(b, TagTime, false, t.content())
}

// AppendApplicationDateTime appends a BACnetDateTime as an application Date
// followed by an application Time.
func AppendApplicationDateTime(b []byte, dt DateTime) []byte {
	b = AppendApplicationDate(b, dt.Date)
	return AppendApplicationTime(b, dt.Time)
}

func AppendContextNull(b []byte, number uint8) []byte {
	return appendTag(b, number, true, 0)
}

func AppendContextBoolean(b []byte, number uint8, v bool) []byte {
	var octet byte
	if v {
		octet = 1
	}
	return appendContent(b, number, true, []byte{octet})
}

func AppendContextUnsigned(b []byte, number uint8, v uint32) []byte {
	return appendContent(b, number, true, unsignedBytes(v))
}

func AppendContextSigned(b []byte, number uint8, v int32) []byte {
	return appendContent(b, number, true, signedBytes(v))
}

func AppendContextReal(b []byte, number uint8, v float32) []byte {
	return appendContent(b, number, true, binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

func AppendContextEnumerated(b []byte, number uint8, v uint32) []byte {
	return appendContent(b, number, true, unsignedBytes(v))
}

func AppendContextBitString(b []byte, number uint8, bs BitString) []byte {
	return appendContent(b, number, true, bs.content())
}

func AppendContextObjectID(b []byte, number uint8, id ObjectID) []byte {
	return appendContent(b, number, true, binary.BigEndian.AppendUint32(nil, id.encode()))
}

// DecodeTag reads one tag header and returns it with the header length.
func DecodeTag(b []byte) (Tag, int, error) {
	if len(b) == 0 {
		return Tag{}, 0, ErrTruncated
	}
	first := b[0]
	n := 1
	t := Tag{Number: first >> 4, Context: first&classContext != 0}
	if t.Number == 0x0F {
		if len(b) < 2 {
			return Tag{}, 0, ErrTruncated
		}
		t.Number = b[1]
		n++
	}
	lvt := first & 0x07
	switch {
	case t.Context && lvt == lvtOpening:
		t.Opening = true
		return t, n, nil
	case t.Context && lvt == lvtClosing:
		t.Closing = true
		return t, n, nil
	case lvt == lvtExtended:
		if len(b) < n+1 {
			return Tag{}, 0, ErrTruncated
		}
		switch l := b[n]; l {
		case 254:
			if len(b) < n+3 {
				return Tag{}, 0, ErrTruncated
			}
			t.Length = uint32(binary.BigEndian.Uint16(b[n+1:]))
			n += 3
		case 255:
			if len(b) < n+5 {
				return Tag{}, 0, ErrTruncated
			}
			t.Length = binary.BigEndian.Uint32(b[n+1:])
			n += 5
		default:
			t.Length = uint32(l)
			n++
		}
	default:
		t.Length = uint32(lvt)
	}
	return t, n, nil
}

// ContentLen is the number of content octets that follow the header.
func (t Tag) ContentLen() int {
	if t.Opening || t.Closing {
		return 0
	}
	if !t.Context && t.Number == TagBoolean {
		return 0
	}
	return int(t.Length)
}

// Enumerated distinguishes an application enumerated value from an unsigned one.
type Enumerated uint32

// Null is the application null value.
type Null struct{}

// DecodeApplicationValue decodes one application-tagged value. The returned
// value is one of Null, bool, uint32, int32, float32, float64, []byte, string,
// BitString, Enumerated, Date, Time or ObjectID.
func DecodeApplicationValue(b []byte) (any, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return nil, 0, err
	}
	if t.Context || t.Opening || t.Closing {
		return nil, 0, fmt.Errorf("%w: context tag %d", ErrUnexpectedTag, t.Number)
	}
	l := t.ContentLen()
	if len(b) < n+l {
		return nil, 0, ErrTruncated
	}
	content := b[n : n+l]
	total := n + l

	switch t.Number {
	case TagNull:
		return Null{}, total, nil
	case TagBoolean:
		return t.Length != 0, total, nil
	case TagUnsigned:
		v, err := decodeUnsigned(content)
		return v, total, err
	case TagSigned:
		v, err := decodeSigned(content)
		return v, total, err
	case TagReal:
		if l != 4 {
			return nil, 0, fmt.Errorf("%w: real of %d octets", ErrUnexpectedTag, l)
		}
		return math.Float32frombits(binary.BigEndian.Uint32(content)), total, nil
	case TagDouble:
		if l != 8 {
			return nil, 0, fmt.Errorf("%w: double of %d octets", ErrUnexpectedTag, l)
		}
		return math.Float64frombits(binary.BigEndian.Uint64(content)), total, nil
	case TagOctetString:
		return append([]byte(nil), content...), total, nil
	case TagCharacterString:
		if l == 0 {
			return "", total, nil
		}
		return string(content[1:]), total, nil
	case TagBitString:
		bs, err := decodeBitString(content)
		return bs, total, err
	case TagEnumerated:
		v, err := decodeUnsigned(content)
		return Enumerated(v), total, err
	case TagDate:
		d, err := decodeDate(content)
		return d, total, err
	case TagTime:
		tm, err := decodeTime(content)
		return tm, total, err
	case TagObjectID:
		if l != 4 {
			return nil, 0, fmt.Errorf("%w: object id of %d octets", ErrUnexpectedTag, l)
		}
		return decodeObjectID(binary.BigEndian.Uint32(content)), total, nil
	default:
		return nil, 0, fmt.Errorf("%w: application tag %d", ErrUnexpectedTag, t.Number)
	}
}

// DecodeContextUnsigned decodes a context-tagged unsigned with the given tag number.
func DecodeContextUnsigned(b []byte, number uint8) (uint32, int, error) {
	content, n, err := contextContent(b, number)
	if err != nil {
		return 0, 0, err
	}
	v, err := decodeUnsigned(content)
	return v, n, err
}

// DecodeContextEnumerated decodes a context-tagged enumerated value.
func DecodeContextEnumerated(b []byte, number uint8) (uint32, int, error) {
	return DecodeContextUnsigned(b, number)
}

// DecodeContextObjectID decodes a context-tagged object identifier.
func DecodeContextObjectID(b []byte, number uint8) (ObjectID, int, error) {
	content, n, err := contextContent(b, number)
	if err != nil {
		return ObjectID{}, 0, err
	}
	if len(content) != 4 {
		return ObjectID{}, 0, fmt.Errorf("%w: object id of %d octets", ErrUnexpectedTag, len(content))
	}
	return decodeObjectID(binary.BigEndian.Uint32(content)), n, nil
}

// PeekContextTag reports whether b starts with a context tag of the given number.
func PeekContextTag(b []byte, number uint8) bool {
	t, _, err := DecodeTag(b)
	return err == nil && t.Context && !t.Opening && !t.Closing && t.Number == number
}

func contextContent(b []byte, number uint8) ([]byte, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return nil, 0, err
	}
	if !t.Context || t.Opening || t.Closing || t.Number != number {
		return nil, 0, fmt.Errorf("%w: want context %d", ErrUnexpectedTag, number)
	}
	l := int(t.Length)
	if len(b) < n+l {
		return nil, 0, ErrTruncated
	}
	return b[n : n+l], n + l, nil
}

func decodeUnsigned(content []byte) (uint32, error) {
	if len(content) == 0 {
		return 0, ErrTruncated
	}
	if len(content) > 4 {
		return 0, ErrValueTooLong
	}
	var v uint32
	for _, c := range content {
		v = v<<8 | uint32(c)
	}
	return v, nil
}

func decodeSigned(content []byte) (int32, error) {
	if len(content) == 0 {
		return 0, ErrTruncated
	}
	if len(content) > 4 {
		return 0, ErrValueTooLong
	}
	var v int32
	if content[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range content {
		v = v<<8 | int32(c)
	}
	return v, nil
}
