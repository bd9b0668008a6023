package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxChargeW = 5000.0

func eosBody(t *testing.T, ac, dc, discharge []float64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"ac_charge":         ac,
		"dc_charge":         dc,
		"discharge_allowed": discharge,
	})
	require.NoError(t, err)
	return body
}

func repeatF(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNormalizeEOS(t *testing.T) {
	require := require.New(t)

	n := NewNormalizer(testMaxChargeW, domain.ResolutionHour)
	now := time.Date(2026, 6, 15, 10, 7, 0, 0, time.UTC)

	ac := repeatF(0, 48)
	dc := repeatF(1, 48)
	discharge := repeatF(1, 48)
	ac[0] = 0.5
	discharge[0] = 0

	result, err := n.Normalize(eosBody(t, ac, dc, discharge), domain.BackendEOS, now)
	require.NoError(err)

	assert.Equal(t, domain.BackendEOS, result.Source)
	assert.Equal(t, domain.ResolutionHour, result.ResolutionSeconds)
	assert.Equal(t, 48, result.SlotCount)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), result.Start)
	assert.Equal(t, 0.5, result.ACCharge[0])
	assert.False(t, result.DischargeAllowed[0])
	assert.True(t, result.DischargeAllowed[1])

	// slot lookup is indexed from the aligned start, not "now"
	idx, ok := result.SlotAt(now)
	require.True(ok)
	assert.Equal(t, 0, idx)
	idx, ok = result.SlotAt(now.Add(2 * time.Hour))
	require.True(ok)
	assert.Equal(t, 2, idx)
}

func TestNormalizeEOSRejectsMalformed(t *testing.T) {
	n := NewNormalizer(testMaxChargeW, domain.ResolutionHour)
	now := time.Now()

	// backend-reported error short-circuits
	_, err := n.Normalize([]byte(`{"error":"no feasible solution"}`), domain.BackendEOS, now)
	var rerr *domain.ResponseError
	require.ErrorAs(t, err, &rerr)

	// length mismatch
	_, err = n.Normalize(eosBody(t, repeatF(0, 48), repeatF(0, 47), repeatF(0, 48)), domain.BackendEOS, now)
	assert.ErrorAs(t, err, &rerr)

	// out-of-range relative value is an error, never clamped
	ac := repeatF(0, 48)
	ac[3] = 1.5
	_, err = n.Normalize(eosBody(t, ac, repeatF(0, 48), repeatF(0, 48)), domain.BackendEOS, now)
	assert.ErrorAs(t, err, &rerr)

	// discharge flags must be 0/1
	_, err = n.Normalize(eosBody(t, repeatF(0, 48), repeatF(0, 48), repeatF(0.5, 48)), domain.BackendEOS, now)
	assert.ErrorAs(t, err, &rerr)

	// less than a day of coverage
	_, err = n.Normalize(eosBody(t, repeatF(0, 12), repeatF(0, 12), repeatF(0, 12)), domain.BackendEOS, now)
	assert.ErrorAs(t, err, &rerr)

	// not json at all
	_, err = n.Normalize([]byte("<html>502</html>"), domain.BackendEOS, now)
	assert.ErrorAs(t, err, &rerr)
}

func TestNormalizeEVoptInfeasible(t *testing.T) {
	n := NewNormalizer(testMaxChargeW, domain.ResolutionHour)
	_, err := n.Normalize([]byte(`{"status":"infeasible","schedule":[]}`), domain.BackendEVopt, time.Now())
	var rerr *domain.ResponseError
	require.ErrorAs(t, err, &rerr)
}

func TestNormalizeRoundTripEquivalence(t *testing.T) {
	require := require.New(t)

	n := NewNormalizer(testMaxChargeW, domain.ResolutionHour)
	now := time.Date(2026, 6, 15, 10, 7, 0, 0, time.UTC)
	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	// one plan, expressed in both backend shapes: charge from grid at half
	// power for the first 2 hours, then hold 10 hours, then allow discharge.
	ac := repeatF(0, 48)
	dc := repeatF(0, 48)
	discharge := repeatF(0, 48)
	for i := 0; i < 2; i++ {
		ac[i] = 0.5
		dc[i] = 1
	}
	for i := 12; i < 48; i++ {
		discharge[i] = 1
	}

	var schedule []map[string]any
	for i := 0; i < 48; i++ {
		schedule = append(schedule, map[string]any{
			"start":           start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"end":             start.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			"grid_charge_w":   ac[i] * testMaxChargeW,
			"pv_charge_w":     dc[i] * testMaxChargeW,
			"allow_discharge": discharge[i] == 1,
		})
	}
	evoptBody, err := json.Marshal(map[string]any{
		"status":   "optimal",
		"schedule": schedule,
	})
	require.NoError(err)

	fromEOS, err := n.Normalize(eosBody(t, ac, dc, discharge), domain.BackendEOS, now)
	require.NoError(err)
	fromEVopt, err := n.Normalize(evoptBody, domain.BackendEVopt, now)
	require.NoError(err)

	assert.Equal(t, fromEOS.Start, fromEVopt.Start)
	assert.Equal(t, fromEOS.ResolutionSeconds, fromEVopt.ResolutionSeconds)
	assert.Equal(t, fromEOS.SlotCount, fromEVopt.SlotCount)
	assert.Equal(t, fromEOS.ACCharge, fromEVopt.ACCharge)
	assert.Equal(t, fromEOS.DCCharge, fromEVopt.DCCharge)
	assert.Equal(t, fromEOS.DischargeAllowed, fromEVopt.DischargeAllowed)
}

func TestNormalizeEVoptDownsamplesQuarterHourWindows(t *testing.T) {
	require := require.New(t)

	n := NewNormalizer(testMaxChargeW, domain.ResolutionHour)
	now := time.Date(2026, 6, 15, 10, 7, 0, 0, time.UTC)
	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	var schedule []map[string]any
	for i := 0; i < 96; i++ {
		// first hour ramps 0/1000/2000/3000 W and one quarter forbids
		// discharging; the rest is flat
		gridW := 1000.0
		allow := true
		if i < 4 {
			gridW = float64(i) * 1000
			allow = i != 2
		}
		schedule = append(schedule, map[string]any{
			"start":           start.Add(time.Duration(i) * 15 * time.Minute).Format(time.RFC3339),
			"end":             start.Add(time.Duration(i+1) * 15 * time.Minute).Format(time.RFC3339),
			"grid_charge_w":   gridW,
			"pv_charge_w":     0.0,
			"allow_discharge": allow,
		})
	}
	body, err := json.Marshal(map[string]any{"status": "optimal", "schedule": schedule})
	require.NoError(err)

	result, err := n.Normalize(body, domain.BackendEVopt, now)
	require.NoError(err)
	assert.Equal(t, domain.ResolutionHour, result.ResolutionSeconds)
	assert.Equal(t, 24, result.SlotCount)
	// hourly slot = average of its four quarter windows
	assert.Equal(t, 0.3, result.ACCharge[0])
	assert.Equal(t, 0.2, result.ACCharge[1])
	// discharge only allowed when every quarter window allows it
	assert.False(t, result.DischargeAllowed[0])
	assert.True(t, result.DischargeAllowed[1])
}

func TestNormalizeEVoptUpsamplesHourlyWindows(t *testing.T) {
	require := require.New(t)

	n := NewNormalizer(testMaxChargeW, domain.ResolutionQuarterHour)
	now := time.Date(2026, 6, 15, 10, 7, 0, 0, time.UTC)
	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	var schedule []map[string]any
	for i := 0; i < 24; i++ {
		schedule = append(schedule, map[string]any{
			"start":           start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"end":             start.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			"grid_charge_w":   1000.0,
			"pv_charge_w":     0.0,
			"allow_discharge": i%2 == 0,
		})
	}
	body, err := json.Marshal(map[string]any{"status": "optimal", "schedule": schedule})
	require.NoError(err)

	result, err := n.Normalize(body, domain.BackendEVopt, now)
	require.NoError(err)
	assert.Equal(t, domain.ResolutionQuarterHour, result.ResolutionSeconds)
	assert.Equal(t, 96, result.SlotCount)
	// each hourly window repeats across its four quarter slots
	for i := 0; i < 8; i++ {
		assert.Equal(t, 0.2, result.ACCharge[i])
		assert.Equal(t, i < 4, result.DischargeAllowed[i])
	}
}
