package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
device:
  timezone: UTC
policy:
  max_queue_len: 1000
logs:
  - instance: 1
    source:
      object_type: analog-input
      instance: 3
points:
  - object: analog-input:3
    value: 20.5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Device.Instance != DefaultDeviceInstance {
		t.Fatalf("expected default device instance, got %d", cfg.Device.Instance)
	}
	if cfg.Device.Tick != time.Second {
		t.Fatalf("expected tick default 1s, got %s", cfg.Device.Tick)
	}
	if cfg.Policy.MaxQueueLen != 1000 {
		t.Fatalf("expected MaxQueueLen 1000, got %d", cfg.Policy.MaxQueueLen)
	}
	if cfg.Policy.MaxBatchSize != 5000 {
		t.Fatalf("expected MaxBatchSize default 5000, got %d", cfg.Policy.MaxBatchSize)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.WAL.Dir != "./data/wal" {
		t.Fatalf("expected default wal dir ./data/wal, got %s", cfg.WAL.Dir)
	}
	if cfg.Archive.Driver != "sqlite" || cfg.Archive.Table != DefaultArchiveTable {
		t.Fatalf("unexpected archive defaults %+v", cfg.Archive)
	}

	logs, err := cfg.TrendLogs(time.UTC)
	if err != nil {
		t.Fatalf("trend logs: %v", err)
	}
	l := logs[0]
	if !l.Enabled {
		t.Fatalf("expected log enabled by default")
	}
	if l.LoggingType != bacnet.LoggingPolled || l.Interval != 900*time.Second {
		t.Fatalf("expected polled every 900s, got %s every %s", l.LoggingType, l.Interval)
	}
	if l.BufferSize != 100 {
		t.Fatalf("expected buffer size 100, got %d", l.BufferSize)
	}
	if !l.Window.StartWildcard || !l.Window.StopWildcard {
		t.Fatalf("expected open window, got %+v", l.Window)
	}
	want := bacnet.ObjectPropertyRef{
		Object:     bacnet.ObjectID{Type: bacnet.ObjectAnalogInput, Instance: 3},
		Property:   bacnet.PropPresentValue,
		ArrayIndex: bacnet.ArrayAll,
	}
	if l.Source != want {
		t.Fatalf("expected source %s, got %s", want, l.Source)
	}
}

func TestTrendLogWindowAndSource(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  timezone: UTC
logs:
  - instance: 4
    name: boiler
    enabled: false
    logging_type: triggered
    start_time: "2024-05-01T00:00:00+02:00"
    buffer_size: 10
    source:
      device: 77
      object_type: analog-value
      instance: 9
      property: status_flags
      array_index: 2
archive:
  driver: none
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	logs, err := cfg.TrendLogs(loc)
	if err != nil {
		t.Fatalf("trend logs: %v", err)
	}
	l := logs[0]
	if l.Enabled || l.LoggingType != bacnet.LoggingTriggered || l.Interval != 0 {
		t.Fatalf("unexpected log %+v", l)
	}
	if l.Window.StartWildcard || !l.Window.StopWildcard {
		t.Fatalf("expected bounded start only, got %+v", l.Window)
	}
	if !l.Window.Start.Equal(time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", l.Window.Start)
	}
	if l.Source.Device != (bacnet.ObjectID{Type: bacnet.ObjectDevice, Instance: 77}) {
		t.Fatalf("unexpected device %s", l.Source.Device)
	}
	if l.Source.Property != bacnet.PropStatusFlags || l.Source.ArrayIndex != 2 {
		t.Fatalf("unexpected source %s", l.Source)
	}
}

func TestParseRejects(t *testing.T) {
	base := `
device:
  timezone: UTC
archive:
  driver: none
`
	cases := map[string]string{
		"no logs": base,
		"cov logging": base + `
logs:
  - instance: 1
    logging_type: cov
    source: {object_type: analog-input, instance: 1}
`,
		"duplicate log": base + `
logs:
  - instance: 1
    source: {object_type: analog-input, instance: 1}
  - instance: 1
    source: {object_type: analog-input, instance: 2}
`,
		"bad start time": base + `
logs:
  - instance: 1
    start_time: tomorrow
    source: {object_type: analog-input, instance: 1}
`,
		"unencodable stop year": base + `
logs:
  - instance: 1
    stop_time: "1800-01-01T00:00:00Z"
    source: {object_type: analog-input, instance: 1}
`,
		"fractional interval": base + `
logs:
  - instance: 1
    interval: 1500ms
    source: {object_type: analog-input, instance: 1}
`,
		"unknown object type": base + `
logs:
  - instance: 1
    source: {object_type: pump, instance: 1}
`,
		"bad point": base + `
logs:
  - instance: 1
    source: {object_type: analog-input, instance: 1}
points:
  - object: trend-log:1
`,
		"opcua without endpoint": base + `
logs:
  - instance: 1
    source: {object_type: analog-input, instance: 1}
opcua:
  points:
    - object: analog-input:1
      node_id: "ns=2;i=1"
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := Parse([]byte(strings.Replace(base, "none", "mysql", 1) + `
logs:
  - instance: 1
    source: {object_type: analog-input, instance: 1}
`))
	if err == nil || !strings.Contains(err.Error(), "archive.driver") {
		t.Fatalf("expected archive driver error, got %v", err)
	}
}
