package trendlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// MetricArchiveDropped counts records not handed to the archive path because
// its channel was full.
const MetricArchiveDropped = "trendflow_archive_dropped_total"

// Collector drives a Registry from a ticker and forwards every appended
// record to the archive channel. It implements ports.Collector.
type Collector struct {
	reg  *Registry
	tick time.Duration
	obs  ports.Observability
	now  func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ ports.Collector = (*Collector)(nil)

// NewCollector ticks reg every tick (one second when zero).
func NewCollector(reg *Registry, tick time.Duration, obs ports.Observability) *Collector {
	if tick <= 0 {
		tick = time.Second
	}
	if obs == nil {
		obs = nopObservability{}
	}
	return &Collector{reg: reg, tick: tick, obs: obs, now: time.Now}
}

func (c *Collector) Start(out chan<- *domain.ArchiveRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("trendlog collector already started")
	}

	c.reg.SetEmitter(func(rec *domain.ArchiveRecord) {
		if out == nil {
			return
		}
		select {
		case out <- rec:
		default:
			c.obs.IncCounter(MetricArchiveDropped, 1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reg.Tick(ctx, c.now())
		}
	}
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.reg.SetEmitter(nil)
	return nil
}
