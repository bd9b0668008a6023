package driver

import (
	"testing"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/pkg/storctl"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testDriver(t *testing.T) (*StorageDriver, *storctl.TestStorageControlClient) {
	client, err := storctl.CreateTestStorageControlClient()
	assert.NoError(t, err)
	tc := client.(*storctl.TestStorageControlClient)
	return NewStorageDriver(client, config.InverterConfig{}, zap.NewNop()), tc
}

func TestApplyChargeFromGrid(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)
	err := d.Apply(domain.ModeChargeFromGrid, 2500)

	assert.NoError(err)
	assert.Equal(uint16(2500), tc.LastForceChargeWatts)
	assert.True(tc.DischargeBlocked)
}

func TestApplyAvoidDischarge(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)
	err := d.Apply(domain.ModeAvoidDischarge, 0)

	assert.NoError(err)
	assert.Equal(uint16(0), tc.LastForceChargeWatts)
	assert.True(tc.DischargeBlocked)
}

func TestApplyDischargeAllowedReleasesControl(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)
	err := d.Apply(domain.ModeDischargeAllowed, 0)

	assert.NoError(err)
	assert.True(tc.ControlReleased)
	assert.False(tc.DischargeBlocked)
}

func TestApplyEVModesMapLikeBaseModes(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)

	assert.NoError(d.Apply(domain.ModeChargeFromGridEVFastCharge, 1800))
	assert.Equal(uint16(1800), tc.LastForceChargeWatts)

	assert.NoError(d.Apply(domain.ModeAvoidDischargeEVFastCharge, 0))
	assert.True(tc.DischargeBlocked)

	assert.NoError(d.Apply(domain.ModeDischargeAllowedEVPVCharge, 0))
	assert.True(tc.ControlReleased)
}

func TestApplyErrorWrapsDriverError(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)
	tc.FailNext = true
	err := d.Apply(domain.ModeChargeFromGrid, 1000)

	var derr *domain.DriverError
	assert.ErrorAs(err, &derr)
}

func TestReadTelemetry(t *testing.T) {

	assert := assert.New(t)

	d, tc := testDriver(t)
	tc.Soc = 42.5
	tc.DynamicMaxChargeWatt = 3300
	tc.EVFastCharging = true

	telemetry, err := d.ReadTelemetry()

	assert.NoError(err)
	assert.Equal(42.5, telemetry.BatterySOCPercent)
	assert.Equal(3300.0, telemetry.DynamicMaxChargeW)
	assert.True(telemetry.EVFastCharging)
	assert.False(telemetry.ReadAt.IsZero())
}
