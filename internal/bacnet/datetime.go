package bacnet

import (
	"errors"
	"fmt"
	"time"
)

// Unspecified is the wildcard octet used by Date and Time fields.
const Unspecified uint8 = 0xFF

// UnspecifiedYear is the full year that encodes as the wildcard year octet.
const UnspecifiedYear uint16 = 1900 + 0xFF

// MinYear and MaxYear bound the years a Date can encode; the year octet is
// an offset from 1900 and its last value is the wildcard.
const (
	MinYear uint16 = 1900
	MaxYear        = UnspecifiedYear - 1
)

// ErrWildcardDate is returned when a date with wildcard fields is converted to
// an absolute instant.
var ErrWildcardDate = errors.New("bacnet: date contains wildcard fields")

// Date is a calendar date. Weekday runs 1 (Monday) through 7 (Sunday).
type Date struct {
	Year    uint16
	Month   uint8
	Day     uint8
	Weekday uint8
}

// Time is a time of day with hundredths of a second.
type Time struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Hundredths uint8
}

// DateTime is a BACnetDateTime.
type DateTime struct {
	Date Date
	Time Time
}

// WildcardDateTime has every field unspecified.
var WildcardDateTime = DateTime{
	Date: Date{Year: UnspecifiedYear, Month: Unspecified, Day: Unspecified, Weekday: Unspecified},
	Time: Time{Hour: Unspecified, Minute: Unspecified, Second: Unspecified, Hundredths: Unspecified},
}

// DateTimeFromTime converts t, in its own location, to calendar form.
func DateTimeFromTime(t time.Time) DateTime {
	wd := uint8(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return DateTime{
		Date: Date{
			Year:    uint16(t.Year()),
			Month:   uint8(t.Month()),
			Day:     uint8(t.Day()),
			Weekday: wd,
		},
		Time: Time{
			Hour:       uint8(t.Hour()),
			Minute:     uint8(t.Minute()),
			Second:     uint8(t.Second()),
			Hundredths: uint8(t.Nanosecond() / 10_000_000),
		},
	}
}

// In converts dt to an instant in loc. Wildcard time fields count as zero;
// wildcard date fields cannot be resolved and yield ErrWildcardDate.
func (dt DateTime) In(loc *time.Location) (time.Time, error) {
	d := dt.Date
	if d.Year == UnspecifiedYear || d.Month == Unspecified || d.Day == Unspecified {
		return time.Time{}, ErrWildcardDate
	}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return time.Time{}, fmt.Errorf("bacnet: invalid date %d-%d-%d", d.Year, d.Month, d.Day)
	}
	if loc == nil {
		loc = time.Local
	}
	tm := dt.Time
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day),
		field(tm.Hour), field(tm.Minute), field(tm.Second), field(tm.Hundredths)*10_000_000, loc), nil
}

func field(v uint8) int {
	if v == Unspecified {
		return 0
	}
	return int(v)
}

// IsWildcard reports whether the date part is entirely unspecified.
func (dt DateTime) IsWildcard() bool {
	d := dt.Date
	return d.Year == UnspecifiedYear && d.Month == Unspecified && d.Day == Unspecified
}

// IsZero reports whether every field is zero, which callers send to mean
// "no time set".
func (dt DateTime) IsZero() bool {
	return dt == DateTime{}
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%s %s", dt.Date, dt.Time)
}

func (d Date) String() string {
	return fmt.Sprintf("%s-%s-%s", wild(int(d.Year), d.Year == UnspecifiedYear, 4), wild(int(d.Month), d.Month == Unspecified, 2), wild(int(d.Day), d.Day == Unspecified, 2))
}

func (t Time) String() string {
	return fmt.Sprintf("%s:%s:%s.%s", wild(int(t.Hour), t.Hour == Unspecified, 2), wild(int(t.Minute), t.Minute == Unspecified, 2),
		wild(int(t.Second), t.Second == Unspecified, 2), wild(int(t.Hundredths), t.Hundredths == Unspecified, 2))
}

func wild(v int, unspecified bool, width int) string {
	if unspecified {
		return "*"
	}
	return fmt.Sprintf("%0*d", width, v)
}

// Encodable reports whether the year is the wildcard or fits the year octet.
func (d Date) Encodable() bool {
	return d.Year == UnspecifiedYear || (d.Year >= MinYear && d.Year <= MaxYear)
}

func (d Date) content() []byte {
	year := Unspecified
	if d.Year != UnspecifiedYear {
		year = uint8(d.Year - 1900)
	}
	return []byte{year, d.Month, d.Day, d.Weekday}
}

func (t Time) content() []byte {
	return []byte{t.Hour, t.Minute, t.Second, t.Hundredths}
}

func decodeDate(content []byte) (Date, error) {
	if len(content) != 4 {
		return Date{}, fmt.Errorf("%w: date of %d octets", ErrUnexpectedTag, len(content))
	}
	return Date{Year: 1900 + uint16(content[0]), Month: content[1], Day: content[2], Weekday: content[3]}, nil
}

func decodeTime(content []byte) (Time, error) {
	if len(content) != 4 {
		return Time{}, fmt.Errorf("%w: time of %d octets", ErrUnexpectedTag, len(content))
	}
	return Time{Hour: content[0], Minute: content[1], Second: content[2], Hundredths: content[3]}, nil
}
