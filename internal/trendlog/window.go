package trendlog

import "time"

// Window is the Start_Time/Stop_Time pair of a log. A wildcard bound leaves
// the window open in that direction.
type Window struct {
	Start         time.Time
	Stop          time.Time
	StartWildcard bool
	StopWildcard  bool
}

// OpenWindow has both bounds wildcarded.
var OpenWindow = Window{StartWildcard: true, StopWildcard: true}

// Active reports whether now falls inside the window. Both bounds are
// inclusive. An inverted window (stop before start) is never active.
func (w Window) Active(now time.Time) bool {
	switch {
	case w.StartWildcard && w.StopWildcard:
		return true
	case w.StartWildcard:
		return !now.After(w.Stop)
	case w.StopWildcard:
		return !now.Before(w.Start)
	default:
		if w.Stop.Before(w.Start) {
			return false
		}
		return !now.Before(w.Start) && !now.After(w.Stop)
	}
}
