package opcua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session and
// the objects bridged from it.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	Points          []PointConfig `yaml:"points"`
}

// PointConfig maps one object to the node holding its present value.
type PointConfig struct {
	// Object is "<object-type>:<instance>", e.g. "analog-input:3".
	Object string `yaml:"object"`
	NodeID string `yaml:"node_id"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "TrendFlow"
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Points) == 0 {
		return errors.New("at least one point must be configured")
	}
	for _, p := range c.Points {
		if _, err := bacnet.ParseObjectID(p.Object); err != nil {
			return err
		}
		if _, err := ua.ParseNodeID(p.NodeID); err != nil {
			return fmt.Errorf("point %s: node id %q: %w", p.Object, p.NodeID, err)
		}
	}
	return nil
}

// nodeReader is the part of *opcua.Client the bridge uses.
type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
}

// Reader bridges OPC UA nodes into BACnet-style property reads: each
// configured object exposes Present_Value, Status_Flags and Out_Of_Service.
type Reader struct {
	cfg    Config
	nodes  map[bacnet.ObjectID]*ua.NodeID
	client *opcua.Client
	read   nodeReader

	mu    sync.Mutex
	fault map[bacnet.ObjectID]bool
}

var _ ports.PropertyReader = (*Reader)(nil)

func NewReader(cfg Config) (*Reader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodes := make(map[bacnet.ObjectID]*ua.NodeID, len(cfg.Points))
	for _, p := range cfg.Points {
		obj, _ := bacnet.ParseObjectID(p.Object)
		id, _ := ua.ParseNodeID(p.NodeID)
		nodes[obj] = id
	}
	return &Reader{cfg: cfg, nodes: nodes, fault: make(map[bacnet.ObjectID]bool)}, nil
}

// Connect opens the session. Reads before Connect fail with a
// communication error.
func (r *Reader) Connect(ctx context.Context) error {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(r.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(r.cfg.SecurityPolicy)),
		opcua.ApplicationName(r.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if r.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(r.cfg.Username, r.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(r.cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	r.mu.Lock()
	r.client = client
	r.read = client
	r.mu.Unlock()
	return nil
}

func (r *Reader) Close(ctx context.Context) error {
	r.mu.Lock()
	client := r.client
	r.client, r.read = nil, nil
	r.mu.Unlock()
	if client == nil {
		return nil
	}
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var (
	errUnknownObject   = bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)
	errUnknownProperty = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeUnknownProperty)
	errNotAnArray      = bacnet.NewError(bacnet.ClassProperty, bacnet.CodePropertyIsNotAnArray)
	errCommunication   = bacnet.NewError(bacnet.ClassCommunication, bacnet.CodeOther)
	errTimeout         = bacnet.NewError(bacnet.ClassCommunication, bacnet.CodeTimeout)
)

func (r *Reader) ReadProperty(ctx context.Context, ref bacnet.ObjectPropertyRef) ([]byte, error) {
	node, ok := r.nodes[ref.Object]
	if !ok {
		return nil, errUnknownObject
	}
	if ref.ArrayIndex != bacnet.ArrayAll {
		return nil, errNotAnArray
	}

	switch ref.Property {
	case bacnet.PropPresentValue:
		return r.readValue(ctx, ref.Object, node)
	case bacnet.PropStatusFlags:
		var st domain.StatusFlags
		r.mu.Lock()
		if r.fault[ref.Object] {
			st |= domain.StatusFault
		}
		r.mu.Unlock()
		return bacnet.AppendApplicationBitString(nil, bacnet.BitStringFromUint(uint32(st), 4)), nil
	case bacnet.PropOutOfService:
		return bacnet.AppendApplicationBoolean(nil, false), nil
	default:
		return nil, errUnknownProperty
	}
}

func (r *Reader) readValue(ctx context.Context, obj bacnet.ObjectID, node *ua.NodeID) ([]byte, error) {
	r.mu.Lock()
	read := r.read
	r.mu.Unlock()
	if read == nil {
		return nil, errCommunication
	}

	resp, err := read.Read(ctx, &ua.ReadRequest{
		NodesToRead:        []*ua.ReadValueID{{NodeID: node, AttributeID: ua.AttributeIDValue}},
		TimestampsToReturn: ua.TimestampsToReturnNeither,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read %s: %w", node, errTimeout)
		}
		return nil, fmt.Errorf("read %s: %v: %w", node, err, errCommunication)
	}
	if resp == nil || len(resp.Results) == 0 || resp.Results[0] == nil {
		return nil, fmt.Errorf("read %s: empty result: %w", node, errCommunication)
	}
	dv := resp.Results[0]

	bad := isBad(dv.Status)
	r.mu.Lock()
	r.fault[obj] = bad || isUncertain(dv.Status)
	r.mu.Unlock()
	if bad {
		return nil, fmt.Errorf("read %s: %s: %w", node, dv.Status, errCommunication)
	}
	return encodeVariant(dv.Value), nil
}

func isBad(s ua.StatusCode) bool       { return uint32(s)&0x80000000 != 0 }
func isUncertain(s ua.StatusCode) bool { return uint32(s)&0xC0000000 == 0x40000000 }

// encodeVariant renders a node value as an application-tagged value. Types
// with no BACnet counterpart are passed through as an octet string, which the
// log records as an unsupported-datatype failure.
func encodeVariant(v *ua.Variant) []byte {
	if v == nil {
		return bacnet.AppendApplicationNull(nil)
	}
	switch val := v.Value().(type) {
	case bool:
		return bacnet.AppendApplicationBoolean(nil, val)
	case float32:
		return bacnet.AppendApplicationReal(nil, val)
	case float64:
		return bacnet.AppendApplicationReal(nil, float32(val))
	case int8:
		return bacnet.AppendApplicationSigned(nil, int32(val))
	case int16:
		return bacnet.AppendApplicationSigned(nil, int32(val))
	case int32:
		return bacnet.AppendApplicationSigned(nil, val)
	case int64:
		if val < math.MinInt32 || val > math.MaxInt32 {
			return bacnet.AppendApplicationReal(nil, float32(val))
		}
		return bacnet.AppendApplicationSigned(nil, int32(val))
	case uint8:
		return bacnet.AppendApplicationUnsigned(nil, uint32(val))
	case uint16:
		return bacnet.AppendApplicationUnsigned(nil, uint32(val))
	case uint32:
		return bacnet.AppendApplicationUnsigned(nil, val)
	case uint64:
		if val > math.MaxUint32 {
			return bacnet.AppendApplicationReal(nil, float32(val))
		}
		return bacnet.AppendApplicationUnsigned(nil, uint32(val))
	case string:
		return bacnet.AppendApplicationCharacterString(nil, val)
	default:
		return []byte{0x60}
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
