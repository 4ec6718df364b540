package trendlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

// 2024-01-02 (a Tuesday) 03:04:05 as BACnetDateTime inside context tag 0.
var encodedStamp = []byte{0x0E, 0xA4, 0x7C, 0x01, 0x02, 0x02, 0xB4, 0x03, 0x04, 0x05, 0x00, 0x0F}

func TestAppendRecord(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name  string
		rec   domain.Record
		datum []byte
	}{
		{
			name:  "real with status",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Real(1.5), Status: domain.StatusFault, HasStatus: true},
			datum: []byte{0x1E, 0x2C, 0x3F, 0xC0, 0x00, 0x00, 0x1F, 0x2A, 0x04, 0x40},
		},
		{
			name:  "purged marker",
			rec:   domain.StatusRecord(ts, domain.LogStatus{Purged: true}),
			datum: []byte{0x1E, 0x0A, 0x05, 0x40, 0x1F},
		},
		{
			name:  "failure",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Failure{Class: 2, Code: 47}},
			datum: []byte{0x1E, 0x8E, 0x91, 0x02, 0x91, 0x2F, 0x8F, 0x1F},
		},
		{
			name:  "boolean",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Boolean(true)},
			datum: []byte{0x1E, 0x19, 0x01, 0x1F},
		},
		{
			name:  "null",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Null{}},
			datum: []byte{0x1E, 0x78, 0x1F},
		},
		{
			name:  "signed",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Signed(-2)},
			datum: []byte{0x1E, 0x59, 0xFE, 0x1F},
		},
		{
			name:  "any",
			rec:   domain.Record{Timestamp: ts, Datum: domain.Any{}},
			datum: []byte{0x1E, 0xAE, 0xAF, 0x1F},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AppendRecord(nil, tc.rec, time.UTC)
			want := append(append([]byte(nil), encodedStamp...), tc.datum...)
			if !bytes.Equal(got, want) {
				t.Fatalf("AppendRecord = % X, want % X", got, want)
			}
		})
	}
}

func TestAppendRecordRendersLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)
	got := AppendRecord(nil, domain.Record{Timestamp: ts, Datum: domain.Null{}}, loc)
	if got[7] != 0x03 {
		t.Fatalf("hour octet = %d, want 3", got[7])
	}
}

func TestStatusFromValue(t *testing.T) {
	st, ok := StatusFromValue(bacnet.BitStringFromUint(0b1001, 4))
	if !ok || st != domain.StatusInAlarm|domain.StatusOutOfService {
		t.Fatalf("StatusFromValue = %v %v", st, ok)
	}
	if _, ok := StatusFromValue(uint32(1)); ok {
		t.Fatalf("non bit string accepted")
	}
}
