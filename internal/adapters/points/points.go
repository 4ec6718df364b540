package points

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// Config declares one device-local object.
type Config struct {
	// Object is "<object-type>:<instance>", e.g. "analog-value:1".
	Object       string  `yaml:"object"`
	Name         string  `yaml:"name"`
	Value        float64 `yaml:"value"`
	OutOfService bool    `yaml:"out_of_service"`
	Fault        bool    `yaml:"fault"`
}

type point struct {
	name   string
	value  float64
	oos    bool
	status domain.StatusFlags
}

// Table is an in-memory set of input and value objects that trend logs can
// sample. Analog objects report a Real, binary objects an Enumerated 0/1 and
// multistate objects an Unsigned state number.
type Table struct {
	mu     sync.RWMutex
	points map[bacnet.ObjectID]*point
}

var _ ports.PropertyReader = (*Table)(nil)

// New builds a table from cfgs.
func New(cfgs []Config) (*Table, error) {
	t := &Table{points: make(map[bacnet.ObjectID]*point, len(cfgs))}
	for _, c := range cfgs {
		id, err := bacnet.ParseObjectID(c.Object)
		if err != nil {
			return nil, err
		}
		if !supported(id.Type) {
			return nil, fmt.Errorf("point %s: unsupported object type", c.Object)
		}
		if _, dup := t.points[id]; dup {
			return nil, fmt.Errorf("point %s declared twice", c.Object)
		}
		p := &point{name: c.Name, value: c.Value, oos: c.OutOfService}
		if p.name == "" {
			p.name = c.Object
		}
		if c.Fault {
			p.status |= domain.StatusFault
		}
		if c.OutOfService {
			p.status |= domain.StatusOutOfService
		}
		t.points[id] = p
	}
	return t, nil
}

func supported(t bacnet.ObjectType) bool {
	switch t {
	case bacnet.ObjectAnalogInput, bacnet.ObjectAnalogValue, bacnet.ObjectAnalogOutput,
		bacnet.ObjectBinaryInput, bacnet.ObjectBinaryValue, bacnet.ObjectBinaryOutput,
		bacnet.ObjectMultiStateInput, bacnet.ObjectMultiStateValue, bacnet.ObjectMultiStateOutput:
		return true
	}
	return false
}

// Set updates the present value of a point.
func (t *Table) Set(id bacnet.ObjectID, v float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.points[id]
	if !ok {
		return bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)
	}
	p.value = v
	return nil
}

// SetStatus replaces the status flags of a point.
func (t *Table) SetStatus(id bacnet.ObjectID, st domain.StatusFlags) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.points[id]
	if !ok {
		return bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)
	}
	p.status = st
	p.oos = st&domain.StatusOutOfService != 0
	return nil
}

func (t *Table) ReadProperty(_ context.Context, ref bacnet.ObjectPropertyRef) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.points[ref.Object]
	if !ok {
		return nil, bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)
	}

	var out []byte
	switch ref.Property {
	case bacnet.PropPresentValue:
		out = presentValue(ref.Object.Type, p.value)
	case bacnet.PropStatusFlags:
		out = bacnet.AppendApplicationBitString(nil, bacnet.BitStringFromUint(uint32(p.status), 4))
	case bacnet.PropOutOfService:
		out = bacnet.AppendApplicationBoolean(nil, p.oos)
	case bacnet.PropObjectName:
		out = bacnet.AppendApplicationCharacterString(nil, p.name)
	case bacnet.PropObjectIdentifier:
		out = bacnet.AppendApplicationObjectID(nil, ref.Object)
	case bacnet.PropEventState:
		out = bacnet.AppendApplicationEnumerated(nil, bacnet.EventStateNormal)
	default:
		return nil, bacnet.NewError(bacnet.ClassProperty, bacnet.CodeUnknownProperty)
	}
	if ref.ArrayIndex != bacnet.ArrayAll {
		return nil, bacnet.NewError(bacnet.ClassProperty, bacnet.CodePropertyIsNotAnArray)
	}
	return out, nil
}

func presentValue(t bacnet.ObjectType, v float64) []byte {
	switch t {
	case bacnet.ObjectBinaryInput, bacnet.ObjectBinaryValue, bacnet.ObjectBinaryOutput:
		var active uint32
		if v != 0 {
			active = 1
		}
		return bacnet.AppendApplicationEnumerated(nil, active)
	case bacnet.ObjectMultiStateInput, bacnet.ObjectMultiStateValue, bacnet.ObjectMultiStateOutput:
		if v < 1 {
			v = 1
		}
		return bacnet.AppendApplicationUnsigned(nil, uint32(v))
	default:
		return bacnet.AppendApplicationReal(nil, float32(v))
	}
}
