package service

import (
	"math"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"

	"go.uber.org/zap"
)

// BaseControlParams are the static safety limits the state machine caps
// against. BatteryMaxChargeW converts relative optimizer demand to watts;
// MaxGridChargePowerW is the configured grid-side cap.
type BaseControlParams struct {
	BatteryMaxChargeW   float64
	MaxGridChargePowerW float64
	MaxSOCPercent       float64
}

// BaseControl holds the commanded mode, the active override, the optimizer's
// recommendation for the current slot and the live battery figures, and
// computes the final bounded power command. It performs no I/O and is not
// safe for concurrent use; the control actor owns it.
type BaseControl struct {
	params BaseControlParams

	mode     domain.ControlMode
	override domain.OverrideState
	demand   domain.Demand

	slotACChargeRel      float64
	slotDCChargeRel      float64
	slotDischargeAllowed bool

	batterySOC               float64
	batteryDynamicMaxChargeW float64
	evccCharging             bool

	logger *zap.Logger
}

func NewBaseControl(params BaseControlParams, logger *zap.Logger) *BaseControl {
	return &BaseControl{
		params: params,
		mode:   domain.ModeAuto,
		// until the battery reports a limit, the configured cap applies
		batteryDynamicMaxChargeW: params.MaxGridChargePowerW,
		logger:                   logger,
	}
}

// SetOptimizerSlot stores the optimizer's recommendation for the current
// time slot. It does not recompute the demand; callers follow up with
// Recompute.
func (c *BaseControl) SetOptimizerSlot(acChargeRel, dcChargeRel float64, dischargeAllowed bool) {
	c.slotACChargeRel = acChargeRel
	c.slotDCChargeRel = dcChargeRel
	c.slotDischargeAllowed = dischargeAllowed
}

// SetOverride validates mode, power and duration as one unit and, on
// success, atomically replaces the override state. On failure the previous
// state is left untouched.
func (c *BaseControl) SetOverride(mode int, gridChargePowerW float64, durationMinutes int, now time.Time) (domain.OverrideState, error) {
	m, err := domain.ValidateMode(mode)
	if err != nil {
		return domain.OverrideState{}, err
	}
	if m == domain.ModeAuto {
		return domain.OverrideState{}, &domain.ValidationError{Field: "mode", Reason: "auto mode cannot be forced; clear the override instead"}
	}
	if math.IsNaN(gridChargePowerW) || math.IsInf(gridChargePowerW, 0) || gridChargePowerW < 0 {
		return domain.OverrideState{}, &domain.ValidationError{Field: "grid_charge_power_w", Reason: "must be a finite value >= 0"}
	}
	duration, err := domain.ValidateDuration(durationMinutes)
	if err != nil {
		return domain.OverrideState{}, err
	}

	c.override = domain.OverrideState{
		Active:           true,
		Mode:             m,
		GridChargePowerW: gridChargePowerW,
		ExpiresAt:        now.Add(duration),
	}
	c.mode = m
	c.logger.Info("override set", zap.Stringer("mode", m),
		zap.Float64("grid_charge_power_w", gridChargePowerW),
		zap.Time("expires_at", c.override.ExpiresAt))
	return c.override, nil
}

// ClearOverride returns the controller to automatic mode.
func (c *BaseControl) ClearOverride() {
	if c.override.Active {
		c.logger.Info("override cleared")
	}
	c.override = domain.OverrideState{}
	c.mode = domain.ModeAuto
}

// Tick expires the override once its deadline has passed. Called once per
// fast-control cycle; idempotent.
func (c *BaseControl) Tick(now time.Time) {
	if c.override.Expired(now) {
		c.logger.Info("override expired", zap.Time("expired_at", c.override.ExpiresAt))
		c.ClearOverride()
	}
}

// ComputeACChargePower returns the bounded grid charge power in watts. Zero
// demand yields zero; the result never exceeds the smallest of demand,
// dynamic battery limit and configured grid cap.
func (c *BaseControl) ComputeACChargePower() float64 {
	var demandW float64
	if c.override.Active {
		if c.override.Mode == domain.ModeChargeFromGrid || c.override.Mode == domain.ModeChargeFromGridEVFastCharge {
			demandW = c.override.GridChargePowerW
		}
	} else {
		demandW = c.slotACChargeRel * c.params.BatteryMaxChargeW
	}
	if demandW <= 0 {
		return 0
	}
	return math.Min(demandW, math.Min(c.batteryDynamicMaxChargeW, c.params.MaxGridChargePowerW))
}

// ComputeDischargeAllowed is false whenever the battery sits at or above the
// SOC ceiling or the effective mode forbids discharging, regardless of the
// optimizer's recommendation.
func (c *BaseControl) ComputeDischargeAllowed() bool {
	if c.batterySOC >= c.params.MaxSOCPercent {
		return false
	}
	switch c.ResolveMode() {
	case domain.ModeDischargeAllowed, domain.ModeDischargeAllowedEVPVCharge, domain.ModeDischargeAllowedEVMinPV:
		return true
	}
	return false
}

// ResolveMode returns the final commanded mode: the override mode when
// active, otherwise the mode implied by the optimizer slot, lifted to the
// EV-interaction variants while EV fast-charging is detected.
func (c *BaseControl) ResolveMode() domain.ControlMode {
	if c.override.Active {
		return c.override.Mode
	}
	var base domain.ControlMode
	switch {
	case c.slotACChargeRel > 0:
		base = domain.ModeChargeFromGrid
	case c.slotDischargeAllowed:
		base = domain.ModeDischargeAllowed
	default:
		base = domain.ModeAvoidDischarge
	}
	if c.evccCharging {
		switch base {
		case domain.ModeChargeFromGrid:
			return domain.ModeChargeFromGridEVFastCharge
		case domain.ModeAvoidDischarge:
			return domain.ModeAvoidDischargeEVFastCharge
		case domain.ModeDischargeAllowed:
			return domain.ModeDischargeAllowedEVPVCharge
		}
	}
	return base
}

// Recompute derives the canonical demand from the current inputs and stores
// it. Called once per fast-control cycle after Tick.
func (c *BaseControl) Recompute() domain.Demand {
	acPowerW := c.ComputeACChargePower()

	dcRel := c.slotDCChargeRel
	if c.override.Active {
		// a manual override disables PV-coupled charge shaping
		dcRel = 1
	}
	dcPowerW := math.Min(dcRel*c.params.BatteryMaxChargeW, c.batteryDynamicMaxChargeW)
	if dcPowerW < 0 {
		dcPowerW = 0
	}

	acRel := 0.0
	if c.params.BatteryMaxChargeW > 0 {
		acRel = acPowerW / c.params.BatteryMaxChargeW
	}

	c.mode = c.ResolveMode()
	c.demand = domain.Demand{
		ACChargeRelative: acRel,
		DCChargeRelative: dcRel,
		DischargeAllowed: c.ComputeDischargeAllowed(),
		ACChargePowerW:   acPowerW,
		DCChargePowerW:   dcPowerW,
	}
	return c.demand
}

func (c *BaseControl) SetBatteryState(socPercent, dynamicMaxChargeW float64) {
	c.batterySOC = socPercent
	if dynamicMaxChargeW > 0 {
		c.batteryDynamicMaxChargeW = dynamicMaxChargeW
	}
}

func (c *BaseControl) SetEVCharging(charging bool) {
	c.evccCharging = charging
}

func (c *BaseControl) Demand() domain.Demand {
	return c.demand
}

func (c *BaseControl) Mode() domain.ControlMode {
	return c.mode
}

func (c *BaseControl) Override() domain.OverrideState {
	return c.override
}

func (c *BaseControl) BatterySOC() float64 {
	return c.batterySOC
}
