package service

import (
	"context"
	"fmt"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"

	"go.uber.org/zap"
)

// BatteryParams are the static device parameters sent with every request.
type BatteryParams struct {
	CapacityWh        float64
	MaxChargeW        float64
	MaxDischargeW     float64
	MinSOCPercent     float64
	MaxSOCPercent     float64
	InverterMaxPowerW float64
}

// RequestBuilder aggregates the forecast collaborators into one canonical
// optimizer request covering a 48-hour rolling window aligned to the
// configured slot resolution.
type RequestBuilder struct {
	load    port.LoadForecast
	price   port.PriceForecast
	pv      port.PvForecast
	battery port.BatteryState

	params            BatteryParams
	resolutionSeconds int
	logger            *zap.Logger
}

func NewRequestBuilder(load port.LoadForecast, price port.PriceForecast, pv port.PvForecast,
	battery port.BatteryState, params BatteryParams, resolutionSeconds int, logger *zap.Logger) *RequestBuilder {
	return &RequestBuilder{
		load:              load,
		price:             price,
		pv:                pv,
		battery:           battery,
		params:            params,
		resolutionSeconds: resolutionSeconds,
		logger:            logger,
	}
}

// Build gathers all forecasts for the window starting at `now` truncated to
// the slot boundary. All returned arrays share the same length and starting
// boundary; a mismatched collaborator response fails the whole build.
func (b *RequestBuilder) Build(ctx context.Context, now time.Time) (domain.OptimizationRequest, error) {
	start := AlignSlotStart(now, b.resolutionSeconds)
	slots := WindowSlotCount(start, domain.HorizonHours, b.resolutionSeconds)
	window := port.Window{
		Start:             start,
		SlotCount:         slots,
		ResolutionSeconds: b.resolutionSeconds,
	}

	load, err := b.load.Load(ctx, window)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("load forecast: %w", err)
	}
	importPrice, err := b.price.ImportPrice(ctx, window)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("import price: %w", err)
	}
	feedIn, err := b.price.FeedInPrice(ctx, window)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("feed-in price: %w", err)
	}
	pv, err := b.pv.Generation(ctx, window)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("pv forecast: %w", err)
	}
	soc, err := b.battery.SOC(ctx)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("battery soc: %w", err)
	}
	chargeCost, err := b.battery.ChargeCostPerWh(ctx)
	if err != nil {
		return domain.OptimizationRequest{}, fmt.Errorf("battery charge cost: %w", err)
	}

	for name, arr := range map[string][]float64{
		"load": load, "import_price": importPrice, "feed_in_price": feedIn, "pv": pv,
	} {
		if len(arr) != slots {
			return domain.OptimizationRequest{}, fmt.Errorf("%s forecast returned %d slots, want %d", name, len(arr), slots)
		}
	}

	chargeCostArr := make([]float64, slots)
	for i := range chargeCostArr {
		chargeCostArr[i] = chargeCost
	}

	b.logger.Debug("built optimization request",
		zap.Time("start", start), zap.Int("slots", slots),
		zap.Int("resolution_s", b.resolutionSeconds))

	return domain.OptimizationRequest{
		Start:                start,
		ResolutionSeconds:    b.resolutionSeconds,
		PVForecastWh:         pv,
		ImportPrice:          importPrice,
		FeedInPrice:          feedIn,
		BatteryChargeCost:    chargeCostArr,
		TotalLoadWh:          load,
		BatteryCapacityWh:    b.params.CapacityWh,
		BatteryMaxChargeW:    b.params.MaxChargeW,
		BatteryMaxDischargeW: b.params.MaxDischargeW,
		BatterySOCPercent:    soc,
		MinSOCPercent:        b.params.MinSOCPercent,
		MaxSOCPercent:        b.params.MaxSOCPercent,
		InverterMaxPowerW:    b.params.InverterMaxPowerW,
	}, nil
}
