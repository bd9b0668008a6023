package service

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
)

// Normalizer converts the two raw backend response shapes into the canonical
// OptimizationResult. Slot 0 of the canonical arrays is the most recently
// elapsed aligned slot at normalization time. EVopt schedules are resampled
// onto the configured control resolution; EOS is always hourly.
type Normalizer struct {
	batteryMaxChargeW float64
	resolutionSeconds int
}

func NewNormalizer(batteryMaxChargeW float64, resolutionSeconds int) *Normalizer {
	return &Normalizer{
		batteryMaxChargeW: batteryMaxChargeW,
		resolutionSeconds: resolutionSeconds,
	}
}

// eosResponse is the flat relative-demand shape returned by EOS, always at
// hourly resolution.
type eosResponse struct {
	Error            string    `json:"error,omitempty"`
	ACCharge         []float64 `json:"ac_charge"`
	DCCharge         []float64 `json:"dc_charge"`
	DischargeAllowed []float64 `json:"discharge_allowed"`
}

// evoptResponse is the window-keyed shape returned by EVopt.
type evoptResponse struct {
	Status   string        `json:"status"`
	Schedule []evoptWindow `json:"schedule"`
}

type evoptWindow struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	GridChargeW    float64   `json:"grid_charge_w"`
	PVChargeW      float64   `json:"pv_charge_w"`
	AllowDischarge bool      `json:"allow_discharge"`
}

// Normalize parses and validates a raw backend response. Any malformed,
// out-of-range or infeasible response yields a *domain.ResponseError and the
// caller must keep the previous result.
func (n *Normalizer) Normalize(raw []byte, kind domain.BackendKind, now time.Time) (domain.OptimizationResult, error) {
	switch kind {
	case domain.BackendEOS:
		return n.normalizeEOS(raw, now)
	case domain.BackendEVopt:
		return n.normalizeEVopt(raw, now)
	}
	return domain.OptimizationResult{}, &domain.ResponseError{Source: string(kind), Reason: "unknown backend kind"}
}

func (n *Normalizer) normalizeEOS(raw []byte, now time.Time) (domain.OptimizationResult, error) {
	var resp eosResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.OptimizationResult{}, &domain.ResponseError{Source: string(domain.BackendEOS), Reason: fmt.Sprintf("decode: %v", err)}
	}
	if resp.Error != "" {
		return domain.OptimizationResult{}, &domain.ResponseError{Source: string(domain.BackendEOS), Reason: resp.Error}
	}
	slots := len(resp.ACCharge)
	if slots == 0 || len(resp.DCCharge) != slots || len(resp.DischargeAllowed) != slots {
		return domain.OptimizationResult{}, &domain.ResponseError{
			Source: string(domain.BackendEOS),
			Reason: fmt.Sprintf("array length mismatch: ac=%d dc=%d discharge=%d", len(resp.ACCharge), len(resp.DCCharge), len(resp.DischargeAllowed)),
		}
	}
	if err := checkRelative(resp.ACCharge, "ac_charge"); err != nil {
		return domain.OptimizationResult{}, err
	}
	if err := checkRelative(resp.DCCharge, "dc_charge"); err != nil {
		return domain.OptimizationResult{}, err
	}
	discharge := make([]bool, slots)
	for i, v := range resp.DischargeAllowed {
		if v != 0 && v != 1 {
			return domain.OptimizationResult{}, &domain.ResponseError{
				Source: string(domain.BackendEOS),
				Reason: fmt.Sprintf("discharge_allowed[%d]=%v is not 0/1", i, v),
			}
		}
		discharge[i] = v == 1
	}

	result := domain.OptimizationResult{
		Source:            domain.BackendEOS,
		Timestamp:         now,
		Start:             AlignSlotStart(now, domain.ResolutionHour),
		ResolutionSeconds: domain.ResolutionHour,
		SlotCount:         slots,
		ACCharge:          resp.ACCharge,
		DCCharge:          resp.DCCharge,
		DischargeAllowed:  discharge,
	}
	return result, checkCoverage(result)
}

func (n *Normalizer) normalizeEVopt(raw []byte, now time.Time) (domain.OptimizationResult, error) {
	var resp evoptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.OptimizationResult{}, &domain.ResponseError{Source: string(domain.BackendEVopt), Reason: fmt.Sprintf("decode: %v", err)}
	}
	if resp.Status != "optimal" {
		return domain.OptimizationResult{}, &domain.ResponseError{Source: string(domain.BackendEVopt), Reason: fmt.Sprintf("status %q", resp.Status)}
	}
	if len(resp.Schedule) == 0 {
		return domain.OptimizationResult{}, &domain.ResponseError{Source: string(domain.BackendEVopt), Reason: "empty schedule"}
	}

	native := int(resp.Schedule[0].End.Sub(resp.Schedule[0].Start) / time.Second)
	if native != domain.ResolutionQuarterHour && native != domain.ResolutionHour {
		return domain.OptimizationResult{}, &domain.ResponseError{
			Source: string(domain.BackendEVopt),
			Reason: fmt.Sprintf("unsupported window length %ds", native),
		}
	}

	// Resample onto the control resolution. When the native windows are
	// finer, each canonical slot averages its sub-windows (discharge only
	// allowed if every sub-window allows it); when they are coarser, the
	// per-slot lookup repeats the containing window's values.
	subSlots := 1
	if native < n.resolutionSeconds {
		subSlots = n.resolutionSeconds / native
	}
	subRes := time.Duration(n.resolutionSeconds/subSlots) * time.Second

	start := AlignSlotStart(now, n.resolutionSeconds)
	res := time.Duration(n.resolutionSeconds) * time.Second

	var acCharge, dcCharge []float64
	var discharge []bool
	for slotStart := start; ; slotStart = slotStart.Add(res) {
		var gridW, pvW float64
		allow := true
		covered := true
		for k := 0; k < subSlots; k++ {
			w, ok := windowAt(resp.Schedule, slotStart.Add(time.Duration(k)*subRes))
			if !ok {
				// a gap or the end of the schedule ends the plan
				covered = false
				break
			}
			if n.batteryMaxChargeW <= 0 ||
				!isRelative(w.GridChargeW/n.batteryMaxChargeW) ||
				!isRelative(w.PVChargeW/n.batteryMaxChargeW) {
				return domain.OptimizationResult{}, &domain.ResponseError{
					Source: string(domain.BackendEVopt),
					Reason: fmt.Sprintf("charge power out of range at %s: grid=%v pv=%v", slotStart.Format(time.RFC3339), w.GridChargeW, w.PVChargeW),
				}
			}
			gridW += w.GridChargeW
			pvW += w.PVChargeW
			allow = allow && w.AllowDischarge
		}
		if !covered {
			break
		}
		acCharge = append(acCharge, gridW/float64(subSlots)/n.batteryMaxChargeW)
		dcCharge = append(dcCharge, pvW/float64(subSlots)/n.batteryMaxChargeW)
		discharge = append(discharge, allow)
	}

	result := domain.OptimizationResult{
		Source:            domain.BackendEVopt,
		Timestamp:         now,
		Start:             start,
		ResolutionSeconds: n.resolutionSeconds,
		SlotCount:         len(acCharge),
		ACCharge:          acCharge,
		DCCharge:          dcCharge,
		DischargeAllowed:  discharge,
	}
	return result, checkCoverage(result)
}

func windowAt(schedule []evoptWindow, t time.Time) (evoptWindow, bool) {
	for _, w := range schedule {
		if !t.Before(w.Start) && t.Before(w.End) {
			return w, true
		}
	}
	return evoptWindow{}, false
}

func checkRelative(values []float64, field string) error {
	for i, v := range values {
		if !isRelative(v) {
			return &domain.ResponseError{
				Source: string(domain.BackendEOS),
				Reason: fmt.Sprintf("%s[%d]=%v outside [0,1]", field, i, v),
			}
		}
	}
	return nil
}

func isRelative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 1
}

func checkCoverage(r domain.OptimizationResult) error {
	if r.Coverage() < domain.MinCoverage {
		return &domain.ResponseError{
			Source: string(r.Source),
			Reason: fmt.Sprintf("plan covers %s, need at least %s", r.Coverage(), domain.MinCoverage),
		}
	}
	return nil
}
