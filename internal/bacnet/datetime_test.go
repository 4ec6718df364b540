package bacnet

import (
	"errors"
	"testing"
	"time"
)

func TestDateTimeRoundTrip(t *testing.T) {
	loc := time.FixedZone("site", 2*3600)
	ts := time.Date(2024, time.March, 17, 8, 30, 15, 250_000_000, loc)

	dt := DateTimeFromTime(ts)
	if dt.Date.Weekday != 7 {
		t.Fatalf("expected Sunday to map to weekday 7, got %d", dt.Date.Weekday)
	}
	if dt.Time.Hundredths != 25 {
		t.Fatalf("expected 25 hundredths, got %d", dt.Time.Hundredths)
	}

	back, err := dt.In(loc)
	if err != nil {
		t.Fatalf("convert back: %v", err)
	}
	if !back.Equal(ts) {
		t.Fatalf("expected %s, got %s", ts, back)
	}
}

func TestDateTimeWildcards(t *testing.T) {
	if !WildcardDateTime.IsWildcard() {
		t.Fatalf("expected wildcard date time to report wildcard")
	}
	if _, err := WildcardDateTime.In(time.UTC); !errors.Is(err, ErrWildcardDate) {
		t.Fatalf("expected ErrWildcardDate, got %v", err)
	}

	dt := DateTime{
		Date: Date{Year: 2024, Month: 1, Day: 2, Weekday: Unspecified},
		Time: Time{Hour: 6, Minute: Unspecified, Second: Unspecified, Hundredths: Unspecified},
	}
	got, err := dt.In(time.UTC)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if want := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected wildcard time fields as zero, got %s", got)
	}
	if !(DateTime{}).IsZero() {
		t.Fatalf("expected zero value to report IsZero")
	}
}

func TestDateTimeEncodesWildcardYear(t *testing.T) {
	b := AppendApplicationDate(nil, WildcardDateTime.Date)
	if b[1] != 0xFF {
		t.Fatalf("expected wildcard year octet 0xFF, got %#x", b[1])
	}
	v, _, err := DecodeApplicationValue(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.(Date).Year != UnspecifiedYear {
		t.Fatalf("expected unspecified year after decode, got %d", v.(Date).Year)
	}
}

func TestDateEncodableYears(t *testing.T) {
	cases := []struct {
		year uint16
		want bool
	}{
		{1899, false},
		{MinYear, true},
		{2024, true},
		{MaxYear, true},
		{UnspecifiedYear, true},
		{2200, false},
	}
	for _, tc := range cases {
		if got := (Date{Year: tc.year}).Encodable(); got != tc.want {
			t.Fatalf("year %d: expected encodable=%v, got %v", tc.year, tc.want, got)
		}
	}
}
