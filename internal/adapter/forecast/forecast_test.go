package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testWindow(start time.Time, slots int) port.Window {
	return port.Window{
		Start:             start,
		SlotCount:         slots,
		ResolutionSeconds: domain.ResolutionHour,
	}
}

func TestHTTPClientLoadWindowQuery(t *testing.T) {

	assert := assert.New(t)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(start.Format(time.RFC3339), r.URL.Query().Get("start"))
		assert.Equal("3600", r.URL.Query().Get("resolution_seconds"))
		assert.Equal("4", r.URL.Query().Get("slots"))
		fmt.Fprint(w, `{"values":[100,200,300,400]}`)
	}))
	defer server.Close()

	c := NewHTTPClient(config.ForecastConfig{LoadURL: server.URL, TimeoutSeconds: 5})
	values, err := c.Load(context.Background(), testWindow(start, 4))

	assert.NoError(err)
	assert.Equal([]float64{100, 200, 300, 400}, values)
}

func TestHTTPClientSeriesTooShort(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":[100,200]}`)
	}))
	defer server.Close()

	c := NewHTTPClient(config.ForecastConfig{PvURL: server.URL, TimeoutSeconds: 5})
	_, err := c.Generation(context.Background(), testWindow(time.Now(), 4))

	var terr *domain.TransportError
	assert.ErrorAs(err, &terr)
}

func TestHTTPClientSeriesTruncated(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":[1,2,3,4,5,6]}`)
	}))
	defer server.Close()

	c := NewHTTPClient(config.ForecastConfig{LoadURL: server.URL, TimeoutSeconds: 5})
	values, err := c.Load(context.Background(), testWindow(time.Now(), 4))

	assert.NoError(err)
	assert.Len(values, 4)
}

func TestHTTPClientPrices(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"import":[0.3,0.2],"feed_in":[0.08,0.08]}`)
	}))
	defer server.Close()

	c := NewHTTPClient(config.ForecastConfig{PriceURL: server.URL, TimeoutSeconds: 5})
	window := testWindow(time.Now(), 2)

	imp, err := c.ImportPrice(context.Background(), window)
	assert.NoError(err)
	assert.Equal([]float64{0.3, 0.2}, imp)

	feedIn, err := c.FeedInPrice(context.Background(), window)
	assert.NoError(err)
	assert.Equal([]float64{0.08, 0.08}, feedIn)
}

func TestHTTPClientBatteryState(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"soc_percent":62.5,"dynamic_max_charge_w":4200,"charge_cost_per_wh":0.0002}`)
	}))
	defer server.Close()

	c := NewHTTPClient(config.ForecastConfig{BatteryStateURL: server.URL, TimeoutSeconds: 5})

	soc, err := c.SOC(context.Background())
	assert.NoError(err)
	assert.Equal(62.5, soc)

	maxW, err := c.DynamicMaxChargeW(context.Background())
	assert.NoError(err)
	assert.Equal(4200.0, maxW)
}

type countingForecast struct {
	calls  int
	values []float64
}

func (f *countingForecast) Load(_ context.Context, window port.Window) ([]float64, error) {
	f.calls++
	return f.values[:window.SlotCount], nil
}

func (f *countingForecast) ImportPrice(_ context.Context, window port.Window) ([]float64, error) {
	f.calls++
	return f.values[:window.SlotCount], nil
}

func (f *countingForecast) FeedInPrice(_ context.Context, window port.Window) ([]float64, error) {
	f.calls++
	return f.values[:window.SlotCount], nil
}

func (f *countingForecast) Generation(_ context.Context, window port.Window) ([]float64, error) {
	f.calls++
	return f.values[:window.SlotCount], nil
}

func TestCacheServesCoveredWindow(t *testing.T) {

	assert := assert.New(t)

	values := make([]float64, 48)
	for i := range values {
		values[i] = float64(i)
	}
	upstream := &countingForecast{values: values}
	cache := NewCache(upstream, upstream, upstream, domain.ResolutionHour, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got, err := cache.Load(context.Background(), testWindow(start, 48))
	assert.NoError(err)
	assert.Len(got, 48)
	assert.Equal(1, upstream.calls)

	// later window inside the cached horizon does not refetch
	got, err = cache.Load(context.Background(), testWindow(start.Add(2*time.Hour), 24))
	assert.NoError(err)
	assert.Equal(2.0, got[0])
	assert.Equal(1, upstream.calls)
}

func TestCacheFallsThroughOnUncoveredWindow(t *testing.T) {

	assert := assert.New(t)

	values := make([]float64, 48)
	upstream := &countingForecast{values: values}
	cache := NewCache(upstream, upstream, upstream, domain.ResolutionHour, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := cache.Load(context.Background(), testWindow(start, 24))
	assert.NoError(err)
	assert.Equal(1, upstream.calls)

	// window extends past the cached span
	_, err = cache.Load(context.Background(), testWindow(start.Add(12*time.Hour), 24))
	assert.NoError(err)
	assert.Equal(2, upstream.calls)
}

func TestCacheSeparatesSeries(t *testing.T) {

	assert := assert.New(t)

	values := make([]float64, 24)
	upstream := &countingForecast{values: values}
	cache := NewCache(upstream, upstream, upstream, domain.ResolutionHour, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	window := testWindow(start, 24)

	_, _ = cache.Load(context.Background(), window)
	_, _ = cache.ImportPrice(context.Background(), window)
	_, _ = cache.FeedInPrice(context.Background(), window)
	_, _ = cache.Generation(context.Background(), window)
	assert.Equal(4, upstream.calls)

	_, _ = cache.ImportPrice(context.Background(), window)
	assert.Equal(4, upstream.calls)
}
