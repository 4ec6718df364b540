package trendflow

import (
	"github.com/ghalamif/TrendFlow/internal/adapters/opcua"
	"github.com/ghalamif/TrendFlow/internal/adapters/points"
	"github.com/ghalamif/TrendFlow/internal/app/config"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// DeviceConfig names the device hosting the trend logs.
	DeviceConfig = config.DeviceConfig
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// LogConfig declares one trend log.
	LogConfig = config.LogConfig
	// SourceConfig is the property a trend log samples.
	SourceConfig = config.SourceConfig
	// PointConfig declares a device-local object a log can sample.
	PointConfig = points.Config
	// OPCUAConfig holds connection details and bridged objects.
	OPCUAConfig = opcua.Config
	// OPCUAPointConfig maps an object onto an OPC UA node.
	OPCUAPointConfig = opcua.PointConfig
	// ArchiveConfig selects the archive database.
	ArchiveConfig = config.ArchiveConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// WALConfig configures on-disk durability of the archive path.
	WALConfig = config.WALConfig
	// HTTPConfig configures the trend-log API listener.
	HTTPConfig = config.HTTPConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes a YAML document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
