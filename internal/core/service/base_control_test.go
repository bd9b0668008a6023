package service

import (
	"testing"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testControl() *BaseControl {
	return NewBaseControl(BaseControlParams{
		BatteryMaxChargeW:   5000,
		MaxGridChargePowerW: 4000,
		MaxSOCPercent:       95,
	}, zap.NewNop())
}

func TestValidateDurationBounds(t *testing.T) {
	cases := []struct {
		minutes int
		ok      bool
	}{
		{0, false},
		{-10, false},
		{1, true},
		{30, true},
		{720, true},
		{721, false},
		{10000, false},
	}
	for _, tc := range cases {
		_, err := domain.ValidateDuration(tc.minutes)
		if tc.ok {
			assert.NoError(t, err, "duration %d should be accepted", tc.minutes)
		} else {
			assert.Error(t, err, "duration %d should be rejected", tc.minutes)
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		}
	}
}

func TestValidateModeBounds(t *testing.T) {
	for _, mode := range []int{-2, 0, 1, 2, 3, 4, 5, 6} {
		_, err := domain.ValidateMode(mode)
		assert.NoError(t, err, "mode %d should be accepted", mode)
	}
	for _, mode := range []int{-1, -3, 7, 42} {
		_, err := domain.ValidateMode(mode)
		assert.Error(t, err, "mode %d should be rejected", mode)
	}
}

func TestSetOverrideRejectsWithoutMutation(t *testing.T) {
	require := require.New(t)

	c := testControl()
	now := time.Now()

	_, err := c.SetOverride(2, 1000, 30, now)
	require.NoError(err)
	prev := c.Override()

	// bad duration must leave the previous override untouched
	_, err = c.SetOverride(0, 2000, 721, now)
	require.Error(err)
	assert.Equal(t, prev, c.Override())
	assert.Equal(t, domain.ModeDischargeAllowed, c.Mode())

	// bad mode likewise
	_, err = c.SetOverride(7, 2000, 30, now)
	require.Error(err)
	assert.Equal(t, prev, c.Override())

	// negative power likewise
	_, err = c.SetOverride(0, -1, 30, now)
	require.Error(err)
	assert.Equal(t, prev, c.Override())
}

func TestOverrideExpiry(t *testing.T) {
	require := require.New(t)

	c := testControl()
	t0 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := c.SetOverride(0, 2000, 30, t0)
	require.NoError(err)

	c.Tick(t0.Add(29 * time.Minute))
	assert.True(t, c.Override().Active, "override must survive until its deadline")

	c.Tick(t0.Add(31 * time.Minute))
	assert.False(t, c.Override().Active, "override must expire after its deadline")
	assert.Equal(t, domain.ModeAuto, c.Mode())

	// expiry is idempotent
	c.Tick(t0.Add(32 * time.Minute))
	assert.False(t, c.Override().Active)
}

func TestComputeACChargePowerCaps(t *testing.T) {
	c := testControl()

	// optimizer demand capped by the configured grid limit
	c.SetBatteryState(50, 2000)
	c.SetOptimizerSlot(1, 0, false) // demand = 5000 W
	assert.Equal(t, 2000.0, c.ComputeACChargePower(), "dynamic battery limit wins")

	c.SetBatteryState(50, 6000)
	assert.Equal(t, 4000.0, c.ComputeACChargePower(), "configured grid cap wins")

	// zero demand yields zero, never clamped up
	c.SetOptimizerSlot(0, 0, false)
	assert.Equal(t, 0.0, c.ComputeACChargePower())
}

func TestComputeACChargePowerMonotonic(t *testing.T) {
	c := testControl()
	c.SetBatteryState(50, 2000)

	prev := -1.0
	for rel := 0.0; rel <= 1.0; rel += 0.05 {
		c.SetOptimizerSlot(rel, 0, false)
		p := c.ComputeACChargePower()
		assert.GreaterOrEqual(t, p, prev, "power must be monotonic in demand")
		assert.LessOrEqual(t, p, 2000.0)
		prev = p
	}
}

func TestOverrideChargeExample(t *testing.T) {
	require := require.New(t)

	// demand=2000, dynamic_max=2000, configured_max wins at... here
	// configured cap is 1000 in the example from the safety contract.
	c := NewBaseControl(BaseControlParams{
		BatteryMaxChargeW:   5000,
		MaxGridChargePowerW: 1000,
		MaxSOCPercent:       95,
	}, zap.NewNop())
	c.SetBatteryState(50, 2000)
	_, err := c.SetOverride(0, 2000, 60, time.Now())
	require.NoError(err)
	assert.Equal(t, 1000.0, c.ComputeACChargePower())
}

func TestDischargeBlockedAtMaxSOC(t *testing.T) {
	c := NewBaseControl(BaseControlParams{
		BatteryMaxChargeW:   5000,
		MaxGridChargePowerW: 4000,
		MaxSOCPercent:       90,
	}, zap.NewNop())

	c.SetOptimizerSlot(0, 1, true) // optimizer says allow
	c.SetBatteryState(90, 3000)
	assert.False(t, c.ComputeDischargeAllowed(), "soc at ceiling must block discharge")

	c.SetBatteryState(89.9, 3000)
	assert.True(t, c.ComputeDischargeAllowed())
}

func TestOverrideForbidsDischarge(t *testing.T) {
	require := require.New(t)

	c := testControl()
	c.SetOptimizerSlot(0, 1, true)
	c.SetBatteryState(50, 3000)
	require.True(c.ComputeDischargeAllowed())

	_, err := c.SetOverride(1, 0, 30, time.Now())
	require.NoError(err)
	assert.False(t, c.ComputeDischargeAllowed(), "avoid-discharge override wins over optimizer")
}

func TestResolveModeEVInteraction(t *testing.T) {
	c := testControl()
	c.SetBatteryState(50, 3000)

	c.SetOptimizerSlot(0.5, 0, false)
	assert.Equal(t, domain.ModeChargeFromGrid, c.ResolveMode())

	c.SetEVCharging(true)
	assert.Equal(t, domain.ModeChargeFromGridEVFastCharge, c.ResolveMode())

	c.SetOptimizerSlot(0, 0, true)
	assert.Equal(t, domain.ModeDischargeAllowedEVPVCharge, c.ResolveMode())

	c.SetOptimizerSlot(0, 0, false)
	assert.Equal(t, domain.ModeAvoidDischargeEVFastCharge, c.ResolveMode())

	c.SetEVCharging(false)
	assert.Equal(t, domain.ModeAvoidDischarge, c.ResolveMode())
}

func TestRecomputeDemand(t *testing.T) {
	c := testControl()
	c.SetBatteryState(50, 3000)
	c.SetOptimizerSlot(0.5, 1, false)

	d := c.Recompute()
	assert.Equal(t, 2500.0, d.ACChargePowerW)
	assert.Equal(t, 3000.0, d.DCChargePowerW, "dc charge capped by dynamic limit")
	assert.False(t, d.DischargeAllowed)
	assert.Equal(t, domain.ModeChargeFromGrid, c.Mode())
	assert.Equal(t, d, c.Demand())
}
