package trendlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

var testBase = time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)

var testSource = bacnet.ObjectPropertyRef{
	Object:     bacnet.ObjectID{Type: bacnet.ObjectAnalogInput, Instance: 1},
	Property:   bacnet.PropPresentValue,
	ArrayIndex: bacnet.ArrayAll,
}

type fakeReader struct {
	mu     sync.Mutex
	values map[bacnet.PropertyID][]byte
	err    error
	reads  int
}

func (f *fakeReader) ReadProperty(_ context.Context, ref bacnet.ObjectPropertyRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.values[ref.Property]; ok {
		return v, nil
	}
	return nil, bacnet.NewError(bacnet.ClassProperty, bacnet.CodeUnknownProperty)
}

type countingObs struct {
	nopObservability
	mu       sync.Mutex
	counters map[string]float64
	values   map[string][]float64
}

func newCountingObs() *countingObs {
	return &countingObs{counters: map[string]float64{}, values: map[string][]float64{}}
}

func (c *countingObs) IncCounter(name string, v float64) {
	c.mu.Lock()
	c.counters[name] += v
	c.mu.Unlock()
}

func (c *countingObs) ObserveValue(name string, v float64) {
	c.mu.Lock()
	c.values[name] = append(c.values[name], v)
	c.mu.Unlock()
}

func (c *countingObs) counter(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

var _ ports.Observability = (*countingObs)(nil)

func newTestRegistry(t *testing.T, reader ports.PropertyReader, cfgs ...Config) *Registry {
	t.Helper()
	reg := NewRegistry(260001, reader, WithLocation(time.UTC), WithClock(func() time.Time { return testBase }))
	for _, cfg := range cfgs {
		require.NoError(t, reg.Add(cfg))
	}
	return reg
}

func polledConfig(instance uint32, size int) Config {
	return Config{
		Instance:    instance,
		Enabled:     true,
		LoggingType: bacnet.LoggingPolled,
		Window:      OpenWindow,
		Interval:    time.Second,
		BufferSize:  size,
		Source:      testSource,
	}
}

// fill appends n unsigned records valued 1..n, one second apart.
func fill(t *testing.T, reg *Registry, instance uint32, n int) {
	t.Helper()
	l, err := reg.lookup(instance)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		l.append(domain.Record{Timestamp: testBase.Add(time.Duration(i) * time.Second), Datum: domain.Unsigned(i)})
	}
}

func sequences(res RangeResult) []uint32 {
	out := make([]uint32, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.Sequence)
	}
	return out
}
