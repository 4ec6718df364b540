package trendlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

// DefaultPollInterval applies when a polled log has no interval.
const DefaultPollInterval uint32 = 900

// DefaultBufferSize is the capacity of a log configured without one.
const DefaultBufferSize = 100

// Config is the startup configuration of one trend log.
type Config struct {
	Instance       uint32
	Name           string
	Enabled        bool
	StopWhenFull   bool
	LoggingType    bacnet.LoggingType
	Window         Window
	Interval       time.Duration
	AlignIntervals bool
	IntervalOffset time.Duration
	BufferSize     int
	Source         bacnet.ObjectPropertyRef
}

// Validate rejects configurations the log cannot run with.
func (c *Config) Validate() error {
	if c.Instance > bacnet.MaxInstance {
		return fmt.Errorf("trend log instance %d out of range", c.Instance)
	}
	if c.LoggingType == bacnet.LoggingCOV {
		return errors.New("cov logging is not supported")
	}
	if c.LoggingType != bacnet.LoggingPolled && c.LoggingType != bacnet.LoggingTriggered {
		return fmt.Errorf("unknown logging type %d", c.LoggingType)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size %d must not be negative", c.BufferSize)
	}
	if c.Interval < 0 || c.IntervalOffset < 0 {
		return errors.New("interval and interval offset must not be negative")
	}
	return nil
}

// Log is one trend log: its configuration and its record store.
type Log struct {
	instance     uint32
	name         string
	enabled      bool
	stopWhenFull bool
	loggingType  bacnet.LoggingType
	window       Window
	interval     uint32 // seconds
	align        bool
	offset       uint32 // seconds
	trigger      bool
	source       bacnet.ObjectPropertyRef
	lastCapture  int64 // unix seconds

	ring     *Ring
	appended func(l *Log, seq uint32, rec domain.Record)
}

// NewLog builds a log from cfg.
func NewLog(cfg Config) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("Trend Log %d", cfg.Instance)
	}
	l := &Log{
		instance:     cfg.Instance,
		name:         name,
		enabled:      cfg.Enabled,
		stopWhenFull: cfg.StopWhenFull,
		loggingType:  cfg.LoggingType,
		window:       cfg.Window,
		interval:     uint32(cfg.Interval / time.Second),
		align:        cfg.AlignIntervals,
		offset:       uint32(cfg.IntervalOffset / time.Second),
		source:       cfg.Source,
		ring:         NewRing(size),
	}
	switch {
	case l.loggingType == bacnet.LoggingTriggered:
		l.interval = 0
	case l.interval == 0:
		l.interval = DefaultPollInterval
	}
	return l, nil
}

func (l *Log) Instance() uint32 { return l.instance }
func (l *Log) Name() string     { return l.name }

// ObjectID is the trend-log object identifier of l.
func (l *Log) ObjectID() bacnet.ObjectID {
	return bacnet.ObjectID{Type: bacnet.ObjectTrendLog, Instance: l.instance}
}

// EffectiveEnabled combines the Enable flag with the time window.
func (l *Log) EffectiveEnabled(now time.Time) bool {
	return l.enabled && l.window.Active(now)
}

// append stores rec and disables a stop-when-full log once the buffer
// fills, whichever path the record came from.
func (l *Log) append(rec domain.Record) uint32 {
	seq := l.ring.Append(rec)
	if l.appended != nil {
		l.appended(l, seq, rec)
	}
	if l.stopWhenFull && l.ring.Full() {
		l.enabled = false
	}
	return seq
}

func (l *Log) insertStatus(now time.Time, st domain.LogStatus) {
	l.append(domain.StatusRecord(now, st))
}

// noteEnableChange records a log-disabled status entry when the effective
// enable state moved from before to after.
func (l *Log) noteEnableChange(now time.Time, before bool) {
	after := l.EffectiveEnabled(now)
	if before == after {
		return
	}
	l.insertStatus(now, domain.LogStatus{Disabled: !after})
}

func (l *Log) purge(now time.Time) {
	l.ring.Purge()
	l.insertStatus(now, domain.LogStatus{Purged: true})
}
