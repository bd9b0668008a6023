package domain

import (
	"fmt"
	"time"
)

// ControlMode is the commanded inverter behavior. The numeric values are part
// of the wire contract (MQTT/REST) and must not be renumbered.
type ControlMode int

const (
	// ModeAuto means no override: the optimizer plan decides.
	ModeAuto ControlMode = -2
	// ModeReserved is a historical sentinel. It is never accepted as input.
	ModeReserved ControlMode = -1

	ModeChargeFromGrid   ControlMode = 0
	ModeAvoidDischarge   ControlMode = 1
	ModeDischargeAllowed ControlMode = 2

	// EV-charging interaction variants. They take precedence over the base
	// 0..2 set whenever EV fast-charging is detected.
	ModeAvoidDischargeEVFastCharge ControlMode = 3
	ModeDischargeAllowedEVPVCharge ControlMode = 4
	ModeDischargeAllowedEVMinPV    ControlMode = 5
	ModeChargeFromGridEVFastCharge ControlMode = 6
)

const (
	// MaxOverrideDurationMinutes bounds a manual override to 12 hours.
	MaxOverrideDurationMinutes = 720
)

func (m ControlMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeReserved:
		return "reserved"
	case ModeChargeFromGrid:
		return "charge_from_grid"
	case ModeAvoidDischarge:
		return "avoid_discharge"
	case ModeDischargeAllowed:
		return "discharge_allowed"
	case ModeAvoidDischargeEVFastCharge:
		return "avoid_discharge_ev_fast_charge"
	case ModeDischargeAllowedEVPVCharge:
		return "discharge_allowed_ev_pv_charge"
	case ModeDischargeAllowedEVMinPV:
		return "discharge_allowed_ev_min_pv_charge"
	case ModeChargeFromGridEVFastCharge:
		return "charge_from_grid_ev_fast_charge"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// ValidateMode accepts a mode iff it is ModeAuto or one of the override
// modes 0..6. Anything else (including ModeReserved) is rejected, never
// clamped.
func ValidateMode(v int) (ControlMode, error) {
	m := ControlMode(v)
	if m == ModeAuto || (m >= ModeChargeFromGrid && m <= ModeChargeFromGridEVFastCharge) {
		return m, nil
	}
	return 0, &ValidationError{Field: "mode", Reason: fmt.Sprintf("mode %d out of range", v)}
}

// ValidateDuration accepts an override duration iff 0 < minutes <= 720.
func ValidateDuration(minutes int) (time.Duration, error) {
	if minutes <= 0 || minutes > MaxOverrideDurationMinutes {
		return 0, &ValidationError{Field: "duration", Reason: fmt.Sprintf("duration %d min out of range (0, %d]", minutes, MaxOverrideDurationMinutes)}
	}
	return time.Duration(minutes) * time.Minute, nil
}

// OverrideState is a time-bounded manual command that supersedes the
// optimizer plan. Mutated only by replacement or expiry.
type OverrideState struct {
	Active           bool        `json:"active"`
	Mode             ControlMode `json:"mode"`
	GridChargePowerW float64     `json:"grid_charge_power_w"`
	ExpiresAt        time.Time   `json:"expires_at"`
}

// Expired reports whether the override should be cleared at `now`.
func (o OverrideState) Expired(now time.Time) bool {
	return o.Active && !now.Before(o.ExpiresAt)
}

// Demand is the canonical per-cycle control output. Relative values are in
// [0,1], absolute power caps in watts.
type Demand struct {
	ACChargeRelative float64 `json:"ac_charge_relative"`
	DCChargeRelative float64 `json:"dc_charge_relative"`
	DischargeAllowed bool    `json:"discharge_allowed"`
	ACChargePowerW   float64 `json:"ac_charge_power_w"`
	DCChargePowerW   float64 `json:"dc_charge_power_w"`
}
