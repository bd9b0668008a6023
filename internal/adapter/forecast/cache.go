package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	seriesLoad        = "load"
	seriesImportPrice = "import_price"
	seriesFeedInPrice = "feed_in_price"
	seriesPv          = "pv"
)

// Cache serves forecast series from memory and refreshes them on a fixed
// schedule, so an optimizer cycle does not depend on four provider round
// trips. A window not covered by the cache falls through to the upstream
// client and repopulates the cache.
type Cache struct {
	load  port.LoadForecast
	price port.PriceForecast
	pv    port.PvForecast

	resolutionSeconds int
	logger            *zap.Logger

	mu     sync.RWMutex
	series map[string]cachedSeries

	scheduler quartz.Scheduler
}

type cachedSeries struct {
	window port.Window
	values []float64
}

var _ port.LoadForecast = (*Cache)(nil)
var _ port.PriceForecast = (*Cache)(nil)
var _ port.PvForecast = (*Cache)(nil)

func NewCache(load port.LoadForecast, price port.PriceForecast, pv port.PvForecast,
	resolutionSeconds int, logger *zap.Logger) *Cache {
	return &Cache{
		load:              load,
		price:             price,
		pv:                pv,
		resolutionSeconds: resolutionSeconds,
		logger:            logger,
		series:            make(map[string]cachedSeries),
	}
}

// Start schedules the periodic refresh. The first refresh runs inline so a
// started cache is warm.
func (c *Cache) Start(ctx context.Context, refreshInterval time.Duration) error {
	c.refresh(ctx)

	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return err
	}
	c.scheduler = sched
	c.scheduler.Start(ctx)

	refreshJob := job.NewFunctionJob(func(ctx context.Context) (int, error) {
		c.refresh(ctx)
		return 0, nil
	})
	return c.scheduler.ScheduleJob(
		quartz.NewJobDetail(refreshJob, quartz.NewJobKey("forecast_refresh")),
		quartz.NewSimpleTrigger(refreshInterval))
}

func (c *Cache) Stop() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
}

func (c *Cache) refresh(ctx context.Context) {
	now := time.Now()
	start := service.AlignSlotStart(now, c.resolutionSeconds)
	window := port.Window{
		Start:             start,
		SlotCount:         service.WindowSlotCount(start, domain.HorizonHours, c.resolutionSeconds),
		ResolutionSeconds: c.resolutionSeconds,
	}

	fetchers := []struct {
		key   string
		fetch func(context.Context, port.Window) ([]float64, error)
	}{
		{seriesLoad, c.load.Load},
		{seriesImportPrice, c.price.ImportPrice},
		{seriesFeedInPrice, c.price.FeedInPrice},
		{seriesPv, c.pv.Generation},
	}
	for _, f := range fetchers {
		values, err := f.fetch(ctx, window)
		if err != nil {
			// keep serving the previous series until the next refresh
			c.logger.Warn("forecast refresh failed", zap.String("series", f.key), zap.Error(err))
			continue
		}
		c.store(f.key, window, values)
	}
}

func (c *Cache) store(key string, window port.Window, values []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series[key] = cachedSeries{window: window, values: values}
}

// slice returns the cached values for `window` when the cached span covers
// it at the same resolution.
func (c *Cache) slice(key string, window port.Window) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.series[key]
	if !ok || cached.window.ResolutionSeconds != window.ResolutionSeconds {
		return nil, false
	}
	step := time.Duration(window.ResolutionSeconds) * time.Second
	diff := window.Start.Sub(cached.window.Start)
	if diff < 0 || diff%step != 0 {
		return nil, false
	}
	offset := int(diff / step)
	if offset+window.SlotCount > len(cached.values) {
		return nil, false
	}
	return cached.values[offset : offset+window.SlotCount], true
}

func (c *Cache) get(ctx context.Context, key string, window port.Window,
	fetch func(context.Context, port.Window) ([]float64, error)) ([]float64, error) {
	if values, ok := c.slice(key, window); ok {
		return values, nil
	}
	values, err := fetch(ctx, window)
	if err != nil {
		return nil, err
	}
	if len(values) != window.SlotCount {
		return nil, &domain.TransportError{
			Op:  "fetch forecast",
			Err: fmt.Errorf("%s series length %d does not match window %d", key, len(values), window.SlotCount),
		}
	}
	c.store(key, window, values)
	return values, nil
}

func (c *Cache) Load(ctx context.Context, window port.Window) ([]float64, error) {
	return c.get(ctx, seriesLoad, window, c.load.Load)
}

func (c *Cache) ImportPrice(ctx context.Context, window port.Window) ([]float64, error) {
	return c.get(ctx, seriesImportPrice, window, c.price.ImportPrice)
}

func (c *Cache) FeedInPrice(ctx context.Context, window port.Window) ([]float64, error) {
	return c.get(ctx, seriesFeedInPrice, window, c.price.FeedInPrice)
}

func (c *Cache) Generation(ctx context.Context, window port.Window) ([]float64, error) {
	return c.get(ctx, seriesPv, window, c.pv.Generation)
}
