package trendlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
)

func TestTickCapturesValueAndStatus(t *testing.T) {
	reader := &fakeReader{values: map[bacnet.PropertyID][]byte{
		bacnet.PropPresentValue: bacnet.AppendApplicationReal(nil, 21.5),
		bacnet.PropStatusFlags:  bacnet.AppendApplicationBitString(nil, bacnet.BitStringFromUint(uint32(domain.StatusFault), 4)),
	}}
	reg := newTestRegistry(t, reader, polledConfig(1, 5))

	var emitted []*domain.ArchiveRecord
	reg.SetEmitter(func(rec *domain.ArchiveRecord) { emitted = append(emitted, rec) })

	now := testBase.Add(250 * time.Millisecond)
	reg.Tick(context.Background(), now)

	recs, err := reg.Records(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.Real(21.5), recs[0].Datum)
	assert.True(t, recs[0].HasStatus)
	assert.Equal(t, domain.StatusFault, recs[0].Status)
	assert.Equal(t, testBase, recs[0].Timestamp)
	assert.Equal(t, now.Unix(), reg.logs[1].lastCapture)

	require.Len(t, emitted, 1)
	assert.Equal(t, uint32(1), emitted[0].Seq)
	assert.Equal(t, "real", emitted[0].Kind)

	// same second: interval of one second has not elapsed
	reg.Tick(context.Background(), now)
	recs, _ = reg.Records(1)
	assert.Len(t, recs, 1)
}

func TestTickFailureIsRecorded(t *testing.T) {
	obs := newCountingObs()
	reader := &fakeReader{err: bacnet.NewError(bacnet.ClassObject, bacnet.CodeUnknownObject)}
	reg := NewRegistry(1, reader, WithLocation(time.UTC), WithObservability(obs))
	require.NoError(t, reg.Add(polledConfig(1, 2)))

	for i := 0; i < 3; i++ {
		reg.Tick(context.Background(), testBase.Add(time.Duration(i)*time.Second))
	}

	l := reg.logs[1]
	assert.Equal(t, uint32(3), l.ring.Total())
	assert.Equal(t, 2, l.ring.Len())
	assert.Equal(t, 1, l.ring.cursor)
	rec, _ := l.ring.Get(2)
	assert.Equal(t, domain.Failure{Class: uint32(bacnet.ClassObject), Code: uint32(bacnet.CodeUnknownObject)}, rec.Datum)
	assert.False(t, rec.HasStatus)
	assert.True(t, l.enabled)
	assert.Equal(t, float64(3), obs.counter(MetricCaptures))
	assert.Equal(t, float64(3), obs.counter(MetricCaptureFailures))
}

func TestCaptureDatumConversion(t *testing.T) {
	wide := bacnet.NewBitString(40).WithBit(0, true).WithBit(39, true)
	cases := []struct {
		name string
		raw  []byte
		want domain.Datum
	}{
		{"boolean", bacnet.AppendApplicationBoolean(nil, true), domain.Boolean(true)},
		{"enumerated", bacnet.AppendApplicationEnumerated(nil, 3), domain.Enumerated(3)},
		{"signed", bacnet.AppendApplicationSigned(nil, -7), domain.Signed(-7)},
		{"null", bacnet.AppendApplicationNull(nil), domain.Null{}},
		{"wide bitstring", bacnet.AppendApplicationBitString(nil, wide), domain.BitString{Bits: 1, Len: 32}},
		{"double unsupported", bacnet.AppendApplicationDouble(nil, 1.5),
			domain.Failure{Class: uint32(bacnet.ClassProperty), Code: uint32(bacnet.CodeDatatypeNotSupported)}},
		{"garbage", []byte{0x3F},
			domain.Failure{Class: uint32(bacnet.ClassProperty), Code: uint32(bacnet.CodeDatatypeNotSupported)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &fakeReader{values: map[bacnet.PropertyID][]byte{bacnet.PropPresentValue: tc.raw}}
			l, err := NewLog(polledConfig(1, 1))
			require.NoError(t, err)
			rec := l.fetch(context.Background(), reader, testBase)
			assert.Equal(t, tc.want, rec.Datum)
			assert.False(t, rec.HasStatus)
		})
	}
}

func TestCaptureWithoutReader(t *testing.T) {
	l, err := NewLog(polledConfig(1, 1))
	require.NoError(t, err)
	rec := l.fetch(context.Background(), nil, testBase)
	assert.Equal(t, domain.Failure{Class: uint32(bacnet.ClassDevice), Code: uint32(bacnet.CodeOptionalFunctionalityNotSupported)}, rec.Datum)

	reader := &fakeReader{err: errors.New("socket closed")}
	rec = l.fetch(context.Background(), reader, testBase)
	assert.Equal(t, domain.Failure{Class: uint32(bacnet.ClassDevice), Code: uint32(bacnet.CodeOther)}, rec.Datum)
}

func TestStopWhenFullAutoDisables(t *testing.T) {
	reader := &fakeReader{values: map[bacnet.PropertyID][]byte{bacnet.PropPresentValue: bacnet.AppendApplicationUnsigned(nil, 1)}}
	cfg := polledConfig(1, 2)
	cfg.StopWhenFull = true
	reg := newTestRegistry(t, reader, cfg)

	for i := 0; i < 4; i++ {
		reg.Tick(context.Background(), testBase.Add(time.Duration(i)*time.Second))
	}

	l := reg.logs[1]
	assert.False(t, l.enabled)
	assert.Equal(t, uint32(2), l.ring.Total())
	recs, _ := reg.Records(1)
	for _, rec := range recs {
		assert.Equal(t, domain.Unsigned(1), rec.Datum)
	}
}

func TestTriggeredLogCapturesOnPulse(t *testing.T) {
	reader := &fakeReader{values: map[bacnet.PropertyID][]byte{bacnet.PropPresentValue: bacnet.AppendApplicationUnsigned(nil, 9)}}
	cfg := polledConfig(1, 5)
	cfg.LoggingType = bacnet.LoggingTriggered
	reg := newTestRegistry(t, reader, cfg)

	reg.Tick(context.Background(), testBase)
	assert.Equal(t, 0, reader.reads)

	require.NoError(t, reg.WriteProperty(1, bacnet.PropTrigger, bacnet.ArrayAll, true))
	reg.Tick(context.Background(), testBase)
	reg.Tick(context.Background(), testBase.Add(time.Second))
	assert.Equal(t, uint32(1), reg.logs[1].ring.Total())

	v, err := reg.ReadProperty(1, bacnet.PropTrigger, bacnet.ArrayAll)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestDisabledLogSkipsCapture(t *testing.T) {
	reader := &fakeReader{}
	cfg := polledConfig(1, 5)
	cfg.Enabled = false
	reg := newTestRegistry(t, reader, cfg)

	reg.Tick(context.Background(), testBase)
	assert.Equal(t, 0, reader.reads)
}

func TestRegistryAddRejects(t *testing.T) {
	reg := newTestRegistry(t, nil, polledConfig(1, 5))

	err := reg.Add(polledConfig(1, 5))
	require.ErrorIs(t, err, ErrDuplicateLog)

	cov := polledConfig(2, 5)
	cov.LoggingType = bacnet.LoggingCOV
	require.Error(t, reg.Add(cov))

	require.NoError(t, reg.Add(polledConfig(0, 5)))
	assert.Equal(t, []uint32{0, 1}, reg.Instances())
}

func TestNewLogDefaults(t *testing.T) {
	l, err := NewLog(Config{Instance: 3, LoggingType: bacnet.LoggingPolled})
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, l.interval)
	assert.Equal(t, DefaultBufferSize, l.ring.Cap())
	assert.Equal(t, "Trend Log 3", l.Name())

	l, err = NewLog(Config{Instance: 4, LoggingType: bacnet.LoggingTriggered, Interval: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), l.interval)
}

func TestStats(t *testing.T) {
	reg := newTestRegistry(t, nil, polledConfig(1, 5))
	fill(t, reg, 1, 7)

	st := reg.Stats()
	require.Len(t, st, 1)
	assert.Equal(t, 5, st[0].RecordCount)
	assert.Equal(t, uint32(7), st[0].TotalRecordCount)
	assert.Equal(t, uint32(3), st[0].FirstSequence)
	assert.Equal(t, "polled", st[0].LoggingType)
	assert.True(t, st[0].EffectiveEnabled)
}
