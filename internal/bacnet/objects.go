package bacnet

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectID is a BACnet object identifier.
type ObjectID struct {
	Type     ObjectType
	Instance uint32
}

func (o ObjectID) String() string {
	return fmt.Sprintf("%s:%d", o.Type, o.Instance)
}

// ParseObjectID parses the "<object-type>:<instance>" form printed by String.
func ParseObjectID(s string) (ObjectID, error) {
	typ, inst, ok := strings.Cut(s, ":")
	if !ok {
		return ObjectID{}, fmt.Errorf("object %q: want <type>:<instance>", s)
	}
	t, err := ParseObjectType(typ)
	if err != nil {
		return ObjectID{}, err
	}
	n, err := strconv.ParseUint(inst, 10, 32)
	if err != nil || uint32(n) > MaxInstance {
		return ObjectID{}, fmt.Errorf("object %q: bad instance", s)
	}
	return ObjectID{Type: t, Instance: uint32(n)}, nil
}

func (o ObjectID) encode() uint32 {
	return uint32(o.Type&0x3FF)<<22 | o.Instance&MaxInstance
}

func decodeObjectID(v uint32) ObjectID {
	return ObjectID{Type: ObjectType(v >> 22), Instance: v & MaxInstance}
}

// ObjectPropertyRef is a BACnetDeviceObjectPropertyReference: the source a
// trend log samples.
type ObjectPropertyRef struct {
	Device     ObjectID
	Object     ObjectID
	Property   PropertyID
	ArrayIndex uint32
}

func (r ObjectPropertyRef) String() string {
	if r.ArrayIndex == ArrayAll {
		return fmt.Sprintf("%s/%s/%s", r.Device, r.Object, r.Property)
	}
	return fmt.Sprintf("%s/%s/%s[%d]", r.Device, r.Object, r.Property, r.ArrayIndex)
}

// AppendObjectPropertyRef encodes r as a sequence of context tags.
func AppendObjectPropertyRef(b []byte, r ObjectPropertyRef) []byte {
	b = AppendContextObjectID(b, 0, r.Object)
	b = AppendContextEnumerated(b, 1, uint32(r.Property))
	if r.ArrayIndex != ArrayAll {
		b = AppendContextUnsigned(b, 2, r.ArrayIndex)
	}
	if r.Device.Type == ObjectDevice {
		b = AppendContextObjectID(b, 3, r.Device)
	}
	return b
}

// DecodeObjectPropertyRef decodes the context-tagged form written by
// AppendObjectPropertyRef.
func DecodeObjectPropertyRef(b []byte) (ObjectPropertyRef, int, error) {
	r := ObjectPropertyRef{ArrayIndex: ArrayAll}
	obj, n, err := DecodeContextObjectID(b, 0)
	if err != nil {
		return r, 0, err
	}
	r.Object = obj
	prop, m, err := DecodeContextEnumerated(b[n:], 1)
	if err != nil {
		return r, 0, err
	}
	r.Property = PropertyID(prop)
	n += m
	if PeekContextTag(b[n:], 2) {
		idx, m, err := DecodeContextUnsigned(b[n:], 2)
		if err != nil {
			return r, 0, err
		}
		r.ArrayIndex = idx
		n += m
	}
	if PeekContextTag(b[n:], 3) {
		dev, m, err := DecodeContextObjectID(b[n:], 3)
		if err != nil {
			return r, 0, err
		}
		r.Device = dev
		n += m
	}
	return r, n, nil
}
