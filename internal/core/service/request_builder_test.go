package service

import (
	"context"
	"testing"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeForecast struct {
	loadWh float64
	price  float64
	feedIn float64
	pvWh   float64

	lastWindow port.Window
}

func (f *fakeForecast) Load(_ context.Context, w port.Window) ([]float64, error) {
	f.lastWindow = w
	return repeatF(f.loadWh, w.SlotCount), nil
}

func (f *fakeForecast) ImportPrice(_ context.Context, w port.Window) ([]float64, error) {
	return repeatF(f.price, w.SlotCount), nil
}

func (f *fakeForecast) FeedInPrice(_ context.Context, w port.Window) ([]float64, error) {
	return repeatF(f.feedIn, w.SlotCount), nil
}

func (f *fakeForecast) Generation(_ context.Context, w port.Window) ([]float64, error) {
	return repeatF(f.pvWh, w.SlotCount), nil
}

type fakeBattery struct {
	soc        float64
	dynMax     float64
	chargeCost float64
}

func (b *fakeBattery) SOC(context.Context) (float64, error)               { return b.soc, nil }
func (b *fakeBattery) DynamicMaxChargeW(context.Context) (float64, error) { return b.dynMax, nil }
func (b *fakeBattery) ChargeCostPerWh(context.Context) (float64, error)   { return b.chargeCost, nil }

func testBuilderParams() BatteryParams {
	return BatteryParams{
		CapacityWh:        10000,
		MaxChargeW:        5000,
		MaxDischargeW:     5000,
		MinSOCPercent:     5,
		MaxSOCPercent:     95,
		InverterMaxPowerW: 10000,
	}
}

func TestBuildAlignsWindow(t *testing.T) {
	require := require.New(t)

	fc := &fakeForecast{loadWh: 250, price: 0.30, feedIn: 0.08, pvWh: 100}
	bat := &fakeBattery{soc: 55, dynMax: 4000, chargeCost: 0.0002}
	b := NewRequestBuilder(fc, fc, fc, bat, testBuilderParams(), 900, zap.NewNop())

	now := time.Date(2026, 6, 15, 10, 7, 33, 0, time.UTC)
	req, err := b.Build(context.Background(), now)
	require.NoError(err)

	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, 192, req.SlotCount())
	assert.Equal(t, req.Start, fc.lastWindow.Start)
	assert.Equal(t, 900, req.ResolutionSeconds)

	assert.Len(t, req.PVForecastWh, 192)
	assert.Len(t, req.ImportPrice, 192)
	assert.Len(t, req.FeedInPrice, 192)
	assert.Len(t, req.BatteryChargeCost, 192)
	assert.Equal(t, 0.0002, req.BatteryChargeCost[10])
	assert.Equal(t, 55.0, req.BatterySOCPercent)
}

func TestBuildAcrossDSTTransition(t *testing.T) {
	require := require.New(t)

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(err)

	fc := &fakeForecast{loadWh: 250, price: 0.30, feedIn: 0.08, pvWh: 100}
	bat := &fakeBattery{soc: 55, dynMax: 4000, chargeCost: 0.0002}
	b := NewRequestBuilder(fc, fc, fc, bat, testBuilderParams(), 3600, zap.NewNop())

	// the 48h window crosses the spring-forward transition
	now := time.Date(2026, 3, 28, 12, 30, 0, 0, berlin)
	req, err := b.Build(context.Background(), now)
	require.NoError(err)

	assert.Equal(t, 47, req.SlotCount())
	assert.Len(t, req.TotalLoadWh, 47)
}
