package trendlog

import "github.com/ghalamif/TrendFlow/internal/domain"

// Ring is the fixed-capacity record store of one trend log. Entries are
// addressed by 1-based logical position, oldest first; physical slots never
// leave this type.
//
// Ring is not safe for concurrent use; Registry serializes access.
type Ring struct {
	slots  []domain.Record
	cursor int    // next slot to write
	live   int    // entries currently retained, <= len(slots)
	total  uint32 // records ever appended, wraps at 2^32
}

// NewRing allocates a ring of the given capacity (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{slots: make([]domain.Record, capacity)}
}

// Append stores rec, overwriting the oldest entry once full, and returns the
// sequence number assigned to it.
func (r *Ring) Append(rec domain.Record) uint32 {
	r.slots[r.cursor] = rec
	r.cursor = (r.cursor + 1) % len(r.slots)
	if r.live < len(r.slots) {
		r.live++
	}
	r.total++
	return r.total
}

// Get returns the record at logical position k, 1 <= k <= Len().
func (r *Ring) Get(k int) (domain.Record, bool) {
	if k < 1 || k > r.live {
		return domain.Record{}, false
	}
	if r.live < len(r.slots) {
		return r.slots[k-1], true
	}
	return r.slots[(r.cursor+k-1)%len(r.slots)], true
}

// Purge drops every live entry. The total count is kept so sequence numbers
// keep increasing across the purge.
func (r *Ring) Purge() {
	r.live = 0
	r.cursor = 0
	clear(r.slots)
}

func (r *Ring) Len() int      { return r.live }
func (r *Ring) Cap() int      { return len(r.slots) }
func (r *Ring) Total() uint32 { return r.total }
func (r *Ring) Full() bool    { return r.live == len(r.slots) }

// FirstSequence is the sequence number of logical entry 1.
func (r *Ring) FirstSequence() uint32 {
	return r.total - uint32(r.live) + 1
}

// Sequence is the sequence number of logical entry k.
func (r *Ring) Sequence(k int) uint32 {
	return r.FirstSequence() + uint32(k-1)
}
