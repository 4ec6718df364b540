package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/TrendFlow/internal/adapters/opcua"
	"github.com/ghalamif/TrendFlow/internal/adapters/points"
	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/ports"
	"github.com/ghalamif/TrendFlow/internal/trendlog"
)

type Config struct {
	Device  DeviceConfig    `yaml:"device"`
	Policy  ports.Policy    `yaml:"policy"`
	Logs    []LogConfig     `yaml:"logs"`
	Points  []points.Config `yaml:"points"`
	OPCUA   *opcua.Config   `yaml:"opcua"`
	Archive ArchiveConfig   `yaml:"archive"`
	Metrics MetricsConfig   `yaml:"metrics"`
	WAL     WALConfig       `yaml:"wal"`
	HTTP    HTTPConfig      `yaml:"http"`
}

type DeviceConfig struct {
	Instance uint32        `yaml:"instance"`
	Name     string        `yaml:"name"`
	Timezone string        `yaml:"timezone"`
	Tick     time.Duration `yaml:"tick"`
}

// LogConfig declares one trend log. Start and stop times are RFC 3339;
// leaving either empty makes that side of the window unbounded.
type LogConfig struct {
	Instance       uint32        `yaml:"instance"`
	Name           string        `yaml:"name"`
	Enabled        *bool         `yaml:"enabled"`
	StopWhenFull   bool          `yaml:"stop_when_full"`
	LoggingType    string        `yaml:"logging_type"`
	StartTime      string        `yaml:"start_time"`
	StopTime       string        `yaml:"stop_time"`
	Interval       time.Duration `yaml:"interval"`
	AlignIntervals bool          `yaml:"align_intervals"`
	IntervalOffset time.Duration `yaml:"interval_offset"`
	BufferSize     int           `yaml:"buffer_size"`
	Source         SourceConfig  `yaml:"source"`
}

// SourceConfig is the property a log samples. Device is omitted for
// objects of the local device.
type SourceConfig struct {
	Device     *uint32 `yaml:"device"`
	ObjectType string  `yaml:"object_type"`
	Instance   uint32  `yaml:"instance"`
	Property   string  `yaml:"property"`
	ArrayIndex *uint32 `yaml:"array_index"`
}

type ArchiveConfig struct {
	// Driver is "postgres", "sqlite" or "none".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

// HTTPConfig places the API on its own listener. When Addr is empty the API
// shares the metrics listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

const (
	DefaultDeviceInstance = 260001
	DefaultArchiveTable   = "trend_records"
)

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Normalize applies defaults and validates a Config built in code.
func (c *Config) Normalize() error {
	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Device.Instance == 0 {
		c.Device.Instance = DefaultDeviceInstance
	}
	if c.Device.Name == "" {
		c.Device.Name = "TrendFlow"
	}
	if c.Device.Timezone == "" {
		c.Device.Timezone = "Local"
	}
	if c.Device.Tick == 0 {
		c.Device.Tick = time.Second
	}

	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 100_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 5_000
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}

	for i := range c.Logs {
		l := &c.Logs[i]
		if l.LoggingType == "" {
			l.LoggingType = "polled"
		}
		if l.BufferSize == 0 {
			l.BufferSize = trendlog.DefaultBufferSize
		}
		if l.Interval == 0 && l.LoggingType == "polled" {
			l.Interval = time.Duration(trendlog.DefaultPollInterval) * time.Second
		}
		if l.Source.Property == "" {
			l.Source.Property = "present-value"
		}
	}

	if c.Archive.Driver == "" {
		c.Archive.Driver = "sqlite"
	}
	if c.Archive.Driver == "sqlite" && c.Archive.DSN == "" {
		c.Archive.DSN = "./data/trendflow.db"
	}
	if c.Archive.Table == "" {
		c.Archive.Table = DefaultArchiveTable
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}

	if c.OPCUA != nil {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Device.Instance > bacnet.MaxInstance {
		return fmt.Errorf("device.instance %d out of range", c.Device.Instance)
	}
	loc, err := c.Location()
	if err != nil {
		return err
	}
	if c.Device.Tick < time.Millisecond {
		return fmt.Errorf("device.tick %s is too short", c.Device.Tick)
	}
	if len(c.Logs) == 0 {
		return errors.New("at least one trend log must be configured")
	}
	if _, err := c.TrendLogs(loc); err != nil {
		return err
	}
	if _, err := points.New(c.Points); err != nil {
		return fmt.Errorf("points: %w", err)
	}
	if c.OPCUA != nil {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	switch c.Archive.Driver {
	case "postgres", "sqlite":
		if c.Archive.DSN == "" {
			return fmt.Errorf("archive.dsn is required for driver %s", c.Archive.Driver)
		}
	case "none":
	default:
		return fmt.Errorf("archive.driver %q: want postgres, sqlite or none", c.Archive.Driver)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	return nil
}

// Location resolves device.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return nil, fmt.Errorf("device.timezone: %w", err)
	}
	return loc, nil
}

// TrendLogs converts the log section into trend-log configurations, with
// window bounds interpreted in loc.
func (c *Config) TrendLogs(loc *time.Location) ([]trendlog.Config, error) {
	out := make([]trendlog.Config, 0, len(c.Logs))
	seen := make(map[uint32]bool, len(c.Logs))
	for _, l := range c.Logs {
		if seen[l.Instance] {
			return nil, fmt.Errorf("logs: instance %d declared twice", l.Instance)
		}
		seen[l.Instance] = true

		tc, err := l.trendLog(loc)
		if err != nil {
			return nil, fmt.Errorf("logs[%d]: %w", l.Instance, err)
		}
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("logs[%d]: %w", l.Instance, err)
		}
		out = append(out, tc)
	}
	return out, nil
}

func (l LogConfig) trendLog(loc *time.Location) (trendlog.Config, error) {
	tc := trendlog.Config{
		Instance:       l.Instance,
		Name:           l.Name,
		Enabled:        l.Enabled == nil || *l.Enabled,
		StopWhenFull:   l.StopWhenFull,
		Interval:       l.Interval,
		AlignIntervals: l.AlignIntervals,
		IntervalOffset: l.IntervalOffset,
		BufferSize:     l.BufferSize,
	}

	lt, err := bacnet.ParseLoggingType(l.LoggingType)
	if err != nil {
		return tc, err
	}
	tc.LoggingType = lt

	if l.Interval%time.Second != 0 || l.IntervalOffset%time.Second != 0 {
		return tc, errors.New("interval and interval_offset must be whole seconds")
	}

	if tc.Window, err = window(l.StartTime, l.StopTime, loc); err != nil {
		return tc, err
	}

	src, err := l.Source.ref()
	if err != nil {
		return tc, fmt.Errorf("source: %w", err)
	}
	tc.Source = src
	return tc, nil
}

func window(start, stop string, loc *time.Location) (trendlog.Window, error) {
	w := trendlog.OpenWindow
	if start != "" {
		t, err := windowBound(start, loc)
		if err != nil {
			return w, fmt.Errorf("start_time: %w", err)
		}
		w.Start, w.StartWildcard = t, false
	}
	if stop != "" {
		t, err := windowBound(stop, loc)
		if err != nil {
			return w, fmt.Errorf("stop_time: %w", err)
		}
		w.Stop, w.StopWildcard = t, false
	}
	return w, nil
}

func windowBound(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.RFC3339, s, loc)
	if err != nil {
		return t, err
	}
	if !bacnet.DateTimeFromTime(t.In(loc)).Date.Encodable() {
		return t, fmt.Errorf("year %d outside %d..%d", t.In(loc).Year(), bacnet.MinYear, bacnet.MaxYear)
	}
	return t, nil
}

func (s SourceConfig) ref() (bacnet.ObjectPropertyRef, error) {
	ref := bacnet.ObjectPropertyRef{ArrayIndex: bacnet.ArrayAll}
	ot, err := bacnet.ParseObjectType(s.ObjectType)
	if err != nil {
		return ref, err
	}
	if s.Instance > bacnet.MaxInstance {
		return ref, fmt.Errorf("instance %d out of range", s.Instance)
	}
	ref.Object = bacnet.ObjectID{Type: ot, Instance: s.Instance}

	if ref.Property, err = bacnet.ParsePropertyID(s.Property); err != nil {
		return ref, err
	}
	if s.Device != nil {
		if *s.Device > bacnet.MaxInstance {
			return ref, fmt.Errorf("device %d out of range", *s.Device)
		}
		ref.Device = bacnet.ObjectID{Type: bacnet.ObjectDevice, Instance: *s.Device}
	}
	if s.ArrayIndex != nil {
		ref.ArrayIndex = *s.ArrayIndex
	}
	return ref, nil
}
