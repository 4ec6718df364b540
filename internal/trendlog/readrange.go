package trendlog

import (
	"fmt"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

// DefaultRangeBudget bounds the encoded item data of a range query that
// does not set its own limit. It leaves room for the ACK header inside a
// 1476-octet APDU.
const DefaultRangeBudget = 1400

// Mode selects how a range request addresses entries.
type Mode uint8

const (
	ByPosition Mode = iota
	BySequence
	ByTime
)

func (m Mode) String() string {
	switch m {
	case ByPosition:
		return "position"
	case BySequence:
		return "sequence"
	case ByTime:
		return "time"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "position", "":
		return ByPosition, nil
	case "sequence":
		return BySequence, nil
	case "time":
		return ByTime, nil
	default:
		return 0, fmt.Errorf("unknown range mode %q", s)
	}
}

// RangeRequest is one ReadRange of a log buffer. Only the reference field
// matching Mode is used. A negative Count walks backwards from the
// reference.
type RangeRequest struct {
	Mode     Mode
	RefIndex uint32
	RefSeq   uint32
	RefTime  bacnet.DateTime
	Count    int32
	// MaxBytes caps the encoded item data; zero means DefaultRangeBudget.
	MaxBytes int
}

// ResultFlags is the BACnetResultFlags bit string.
type ResultFlags uint8

const (
	FirstItem ResultFlags = 1 << iota
	LastItem
	MoreItems
)

// Has reports whether every bit of f2 is set.
func (f ResultFlags) Has(f2 ResultFlags) bool { return f&f2 == f2 }

// RangeItem is one returned entry.
type RangeItem struct {
	Sequence uint32
	Record   domain.Record
}

// RangeResult is the answer to a RangeRequest. ItemData holds the encoded
// records back to back.
type RangeResult struct {
	ItemData         []byte
	ItemCount        uint32
	Flags            ResultFlags
	FirstSequence    uint32
	HasFirstSequence bool
	Items            []RangeItem
}

var errBadRange = bacnet.NewError(bacnet.ClassProperty, bacnet.CodeValueOutOfRange)

// ReadRange answers req against the buffer of a log. Requests that match
// nothing yield an empty result, never an error.
func (r *Registry) ReadRange(instance uint32, req RangeRequest) (RangeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.lookup(instance)
	if err != nil {
		return RangeResult{}, err
	}

	var begin, end int
	switch req.Mode {
	case ByPosition:
		begin, end = positionRange(l.ring, req.RefIndex, req.Count)
	case BySequence:
		begin, end = sequenceRange(l.ring, req.RefSeq, req.Count)
	case ByTime:
		ref, err := req.RefTime.In(r.loc)
		if err != nil || req.RefTime.IsWildcard() {
			return RangeResult{}, errBadRange
		}
		begin, end = timeRange(l.ring, ref, req.Count)
	default:
		return RangeResult{}, errBadRange
	}

	res := walk(l.ring, begin, end, req.MaxBytes, r.loc)
	if req.Mode != ByPosition && res.ItemCount > 0 {
		res.HasFirstSequence = true
	}
	r.obs.ObserveValue(MetricReadRangeItems, float64(res.ItemCount))
	return res, nil
}

// positionRange resolves a by-position request to logical indices. An empty
// run is returned as begin > end. Positions are 1-based, so ref 0 matches
// nothing.
func positionRange(ring *Ring, ref uint32, count int32) (int, int) {
	live := int64(ring.Len())
	r := int64(ref)
	if count == 0 || live == 0 || r < 1 || r > live {
		return 1, 0
	}
	var begin, end int64
	if count > 0 {
		begin = r
		end = min(r+int64(count)-1, live)
	} else {
		end = r
		begin = max(1, end+int64(count)+1)
	}
	return int(begin), int(end)
}

// sequenceRange resolves a by-sequence request. Sequence numbers wrap at
// 2^32, so both the requested run and the live run are arcs on that circle.
// The requested arc is expressed as an offset from the oldest live sequence
// and intersected with [0, live). Because a request spans at most 2^31
// sequences and the live arc is far shorter than 2^32, the intersection is
// always a single contiguous piece.
func sequenceRange(ring *Ring, ref uint32, count int32) (int, int) {
	live := uint64(ring.Len())
	if count == 0 || live == 0 {
		return 1, 0
	}
	n := uint64(count)
	begin := ref
	if count < 0 {
		n = uint64(-int64(count))
		begin = ref - uint32(n-1)
	}
	off := uint64(begin - ring.FirstSequence())
	var lo, hi uint64
	if off < live {
		lo = off
		hi = min(off+n-1, live-1)
	} else {
		// the arc starts outside the live run; it can only reach it by
		// wrapping past 2^32 back to offset 0
		e := off + n - 1
		if e < 1<<32 {
			return 1, 0
		}
		lo = 0
		hi = min(e-(1<<32), live-1)
	}
	return int(lo) + 1, int(hi) + 1
}

// timeRange resolves a by-time request. A positive count starts at the
// oldest entry strictly after ref; a negative count ends at the newest entry
// strictly before ref.
func timeRange(ring *Ring, ref time.Time, count int32) (int, int) {
	live := ring.Len()
	if count == 0 || live == 0 {
		return 1, 0
	}
	if count > 0 {
		for k := 1; k <= live; k++ {
			rec, _ := ring.Get(k)
			if rec.Timestamp.After(ref) {
				return k, int(min(int64(k)+int64(count)-1, int64(live)))
			}
		}
		return 1, 0
	}
	for k := live; k >= 1; k-- {
		rec, _ := ring.Get(k)
		if rec.Timestamp.Before(ref) {
			return int(max(1, int64(k)+int64(count)+1)), k
		}
	}
	return 1, 0
}

// walk encodes logical entries begin..end while they fit the budget. An
// entry is either written whole or not at all.
func walk(ring *Ring, begin, end, budget int, loc *time.Location) RangeResult {
	var res RangeResult
	if begin > end {
		return res
	}
	if budget <= 0 {
		budget = DefaultRangeBudget
	}
	var scratch []byte
	last := 0
	for k := begin; k <= end; k++ {
		rec, ok := ring.Get(k)
		if !ok {
			break
		}
		scratch = AppendRecord(scratch[:0], rec, loc)
		if len(res.ItemData)+len(scratch) > budget {
			res.Flags |= MoreItems
			break
		}
		res.ItemData = append(res.ItemData, scratch...)
		seq := ring.Sequence(k)
		if res.ItemCount == 0 {
			res.FirstSequence = seq
		}
		res.Items = append(res.Items, RangeItem{Sequence: seq, Record: rec})
		res.ItemCount++
		last = k
	}
	if res.ItemCount == 0 {
		return res
	}
	if begin == 1 {
		res.Flags |= FirstItem
	}
	if last == ring.Len() {
		res.Flags |= LastItem
	}
	return res
}

// Context tags of the ReadRange-ACK.
const (
	ackObject        uint8 = 0
	ackProperty      uint8 = 1
	ackResultFlags   uint8 = 3
	ackItemCount     uint8 = 4
	ackItemData      uint8 = 5
	ackFirstSequence uint8 = 6
)

// EncodeAck writes the ReadRange-ACK service parameters for res, read from
// the Log_Buffer of obj.
func EncodeAck(b []byte, obj bacnet.ObjectID, res RangeResult) []byte {
	b = bacnet.AppendContextObjectID(b, ackObject, obj)
	b = bacnet.AppendContextEnumerated(b, ackProperty, uint32(bacnet.PropLogBuffer))
	b = bacnet.AppendContextBitString(b, ackResultFlags, bacnet.BitStringFromUint(uint32(res.Flags), 3))
	b = bacnet.AppendContextUnsigned(b, ackItemCount, res.ItemCount)
	b = bacnet.AppendOpeningTag(b, ackItemData)
	b = append(b, res.ItemData...)
	b = bacnet.AppendClosingTag(b, ackItemData)
	if res.HasFirstSequence {
		b = bacnet.AppendContextUnsigned(b, ackFirstSequence, res.FirstSequence)
	}
	return b
}
