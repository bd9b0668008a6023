package driver

import (
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/pkg/storctl"

	"go.uber.org/zap"
)

// revertTimeSeconds is written with every storage command so the inverter
// falls back to its own strategy if the bridge dies mid-plan.
const revertTimeSeconds = 300

// StorageDriver adapts a storctl client to the control loop's driver port.
type StorageDriver struct {
	client               storctl.StorageControlClient
	logger               *zap.Logger
	readDelayAfterChange time.Duration
	lastChangeAt         time.Time
}

var _ port.InverterDriver = (*StorageDriver)(nil)

func NewStorageDriver(client storctl.StorageControlClient, cfg config.InverterConfig, logger *zap.Logger) *StorageDriver {
	return &StorageDriver{
		client:               client,
		logger:               logger,
		readDelayAfterChange: time.Duration(cfg.ReadDelayAfterChangeMillis) * time.Millisecond,
	}
}

func (d *StorageDriver) Open() error {
	if err := d.client.Open(); err != nil {
		return &domain.DriverError{Op: "open", Err: err}
	}
	return nil
}

func (d *StorageDriver) Close() error {
	if err := d.client.Close(); err != nil {
		return &domain.DriverError{Op: "close", Err: err}
	}
	return nil
}

// Apply translates a resolved control mode into a storage command. Charging
// modes force grid charge at powerW, hold modes block discharging, and
// every other mode releases control back to the inverter.
func (d *StorageDriver) Apply(mode domain.ControlMode, powerW float64) error {
	var err error
	switch mode {
	case domain.ModeChargeFromGrid, domain.ModeChargeFromGridEVFastCharge:
		err = d.client.ForceChargePower(uint16(powerW), revertTimeSeconds)
	case domain.ModeAvoidDischarge, domain.ModeAvoidDischargeEVFastCharge:
		err = d.client.BlockDischarge(revertTimeSeconds)
	default:
		err = d.client.ReleaseControl()
	}
	if err != nil {
		return &domain.DriverError{Op: "apply storage control", Err: err}
	}
	d.lastChangeAt = time.Now()
	d.logger.Debug("storage control applied", zap.Stringer("mode", mode), zap.Float64("power_w", powerW))
	return nil
}

// ReadTelemetry delays after a control change, the inverter needs a moment
// before its status registers reflect the new setpoints.
func (d *StorageDriver) ReadTelemetry() (*domain.InverterTelemetry, error) {
	if d.readDelayAfterChange > 0 && !d.lastChangeAt.IsZero() {
		if wait := d.readDelayAfterChange - time.Since(d.lastChangeAt); wait > 0 {
			time.Sleep(wait)
		}
	}
	t, err := d.client.GetTelemetry()
	if err != nil {
		return nil, &domain.DriverError{Op: "read telemetry", Err: err}
	}
	return &domain.InverterTelemetry{
		CabinetTemperatureC: t.CabinetTemperature,
		FanSpeedPercent:     t.FanSpeedPercent,
		BatterySOCPercent:   t.StateOfCharge,
		DynamicMaxChargeW:   t.DynamicMaxChargeWatt,
		EVFastCharging:      t.EVFastCharging,
		ReadAt:              time.Now(),
	}, nil
}
