package domain

import "time"

// BackendKind identifies the external optimization engine shape.
type BackendKind string

const (
	BackendEOS   BackendKind = "eos"
	BackendEVopt BackendKind = "evopt"
)

const (
	ResolutionQuarterHour = 900
	ResolutionHour        = 3600

	// HorizonHours is the rolling optimization window.
	HorizonHours = 48

	// MinCoverage is the minimum forward coverage a usable plan must have.
	MinCoverage = 24 * time.Hour
)

// OptimizationRequest is the canonical optimizer input: 48h-aligned
// time-series plus device parameters. All arrays share the same length and
// starting slot boundary.
type OptimizationRequest struct {
	Start             time.Time `json:"start"`
	ResolutionSeconds int       `json:"resolution_seconds"`

	PVForecastWh      []float64 `json:"pv_forecast_wh"`
	ImportPrice       []float64 `json:"import_price"`
	FeedInPrice       []float64 `json:"feed_in_price"`
	BatteryChargeCost []float64 `json:"battery_charge_cost"`
	TotalLoadWh       []float64 `json:"total_load_wh"`

	BatteryCapacityWh    float64 `json:"battery_capacity_wh"`
	BatteryMaxChargeW    float64 `json:"battery_max_charge_w"`
	BatteryMaxDischargeW float64 `json:"battery_max_discharge_w"`
	BatterySOCPercent    float64 `json:"battery_soc_percent"`
	MinSOCPercent        float64 `json:"min_soc_percent"`
	MaxSOCPercent        float64 `json:"max_soc_percent"`
	InverterMaxPowerW    float64 `json:"inverter_max_power_w"`
}

// SlotCount returns the number of slots covered by the request arrays.
func (r OptimizationRequest) SlotCount() int {
	return len(r.TotalLoadWh)
}

// OptimizationResult is the canonical normalized plan. Slot 0 is the most
// recently elapsed aligned slot, not wall-clock "now".
type OptimizationResult struct {
	Source            BackendKind `json:"source"`
	Timestamp         time.Time   `json:"timestamp"`
	Start             time.Time   `json:"start"`
	ResolutionSeconds int         `json:"resolution_seconds"`
	SlotCount         int         `json:"slot_count"`

	// ACCharge and DCCharge are relative demands in [0,1] per slot.
	ACCharge []float64 `json:"ac_charge"`
	DCCharge []float64 `json:"dc_charge"`
	// DischargeAllowed is the per-slot discharge permission.
	DischargeAllowed []bool `json:"discharge_allowed"`
}

// SlotAt returns the plan slot covering `now`, or false when `now` is
// outside the plan window.
func (r OptimizationResult) SlotAt(now time.Time) (int, bool) {
	if r.SlotCount == 0 || now.Before(r.Start) {
		return 0, false
	}
	idx := int(now.Sub(r.Start) / (time.Duration(r.ResolutionSeconds) * time.Second))
	if idx >= r.SlotCount {
		return 0, false
	}
	return idx, true
}

// Coverage is the forward time span described by the plan.
func (r OptimizationResult) Coverage() time.Duration {
	return time.Duration(r.SlotCount*r.ResolutionSeconds) * time.Second
}

// InverterTelemetry is the periodic device telemetry polled by the data loop.
type InverterTelemetry struct {
	CabinetTemperatureC float64   `json:"cabinet_temperature_c"`
	FanSpeedPercent     float64   `json:"fan_speed_percent"`
	BatterySOCPercent   float64   `json:"battery_soc_percent"`
	DynamicMaxChargeW   float64   `json:"dynamic_max_charge_w"`
	EVFastCharging      bool      `json:"ev_fast_charging"`
	ReadAt              time.Time `json:"read_at"`
}
