package port

import (
	"context"
	"time"
)

// Window describes the aligned forecast interval handed to collaborators.
type Window struct {
	Start             time.Time
	SlotCount         int
	ResolutionSeconds int
}

func (w Window) End() time.Time {
	return w.Start.Add(time.Duration(w.SlotCount*w.ResolutionSeconds) * time.Second)
}

// LoadForecast returns the expected household consumption per slot, in Wh.
type LoadForecast interface {
	Load(ctx context.Context, window Window) ([]float64, error)
}

// PriceForecast returns the grid import price and feed-in remuneration per
// slot.
type PriceForecast interface {
	ImportPrice(ctx context.Context, window Window) ([]float64, error)
	FeedInPrice(ctx context.Context, window Window) ([]float64, error)
}

// PvForecast returns the expected PV generation per slot, in Wh.
type PvForecast interface {
	Generation(ctx context.Context, window Window) ([]float64, error)
}

// BatteryState exposes the live battery figures the request builder needs.
type BatteryState interface {
	SOC(ctx context.Context) (float64, error)
	DynamicMaxChargeW(ctx context.Context) (float64, error)
	ChargeCostPerWh(ctx context.Context) (float64, error)
}
