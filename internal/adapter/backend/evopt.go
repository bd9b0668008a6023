package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"

	"go.uber.org/zap"
)

// EVoptBackend talks to an EVopt optimizer instance. EVopt accepts the
// request at either quarter-hour or hourly resolution and answers with a
// schedule of absolute time windows.
type EVoptBackend struct {
	httpClient *http.Client
	url        string
	logger     *zap.Logger
}

var _ port.OptimizationBackend = (*EVoptBackend)(nil)

func NewEVoptBackend(cfg config.OptimizerConfig, logger *zap.Logger) *EVoptBackend {
	return &EVoptBackend{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		url:    cfg.URL,
		logger: logger,
	}
}

func (b *EVoptBackend) Kind() domain.BackendKind {
	return domain.BackendEVopt
}

type evoptRequest struct {
	Start             time.Time       `json:"start"`
	ResolutionSeconds int             `json:"resolution_seconds"`
	TimeSeries        evoptTimeSeries `json:"time_series"`
	Battery           evoptBattery    `json:"battery"`
	InverterMaxPowerW float64         `json:"inverter_max_power_w"`
}

type evoptTimeSeries struct {
	PVForecastWh      []float64 `json:"pv_forecast_wh"`
	ImportPrice       []float64 `json:"import_price"`
	FeedInPrice       []float64 `json:"feed_in_price"`
	BatteryChargeCost []float64 `json:"battery_charge_cost"`
	TotalLoadWh       []float64 `json:"total_load_wh"`
}

type evoptBattery struct {
	CapacityWh    float64 `json:"capacity_wh"`
	MaxChargeW    float64 `json:"max_charge_w"`
	MaxDischargeW float64 `json:"max_discharge_w"`
	SOCPercent    float64 `json:"soc_percent"`
	MinSOCPercent float64 `json:"min_soc_percent"`
	MaxSOCPercent float64 `json:"max_soc_percent"`
}

// Submit posts the request in EVopt wire shape. EVopt windows are keyed by
// absolute time, so the slot hint is not part of the wire request.
func (b *EVoptBackend) Submit(ctx context.Context, req domain.OptimizationRequest, _ int) ([]byte, error) {
	wireReq := evoptRequest{
		Start:             req.Start,
		ResolutionSeconds: req.ResolutionSeconds,
		TimeSeries: evoptTimeSeries{
			PVForecastWh:      req.PVForecastWh,
			ImportPrice:       req.ImportPrice,
			FeedInPrice:       req.FeedInPrice,
			BatteryChargeCost: req.BatteryChargeCost,
			TotalLoadWh:       req.TotalLoadWh,
		},
		Battery: evoptBattery{
			CapacityWh:    req.BatteryCapacityWh,
			MaxChargeW:    req.BatteryMaxChargeW,
			MaxDischargeW: req.BatteryMaxDischargeW,
			SOCPercent:    req.BatterySOCPercent,
			MinSOCPercent: req.MinSOCPercent,
			MaxSOCPercent: req.MaxSOCPercent,
		},
		InverterMaxPowerW: req.InverterMaxPowerW,
	}
	return postJSON(ctx, b.httpClient, b.url, wireReq, b.logger)
}
