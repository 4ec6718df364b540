package trendlog

import "github.com/ghalamif/TrendFlow/internal/bacnet"

// due decides whether l samples at unix second now. Triggered logs consume
// the trigger pulse whether or not it was set.
func (l *Log) due(now int64) bool {
	if l.loggingType == bacnet.LoggingTriggered {
		fire := l.trigger
		l.trigger = false
		return fire
	}

	interval := int64(l.interval)
	if interval == 0 {
		interval = 1
	}
	elapsed := now - l.lastCapture
	if l.align {
		if now%interval == int64(l.offset)%interval {
			return true
		}
		// catch up on an alignment instant missed while the tick was late
		return elapsed > interval
	}
	return elapsed >= interval
}
