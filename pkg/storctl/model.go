package storctl

// StorageControlClient drives the storage section of a hybrid inverter over
// Modbus TCP. All power figures are watts at the battery connection point.
type StorageControlClient interface {
	Open() error
	Close() error

	GetInfo() (*DeviceInfo, error)
	GetTelemetry() (*Telemetry, error)

	// ForceChargePower commands grid charging at the given rate and blocks
	// discharging until released or until the revert timeout elapses.
	ForceChargePower(watts uint16, revertTimeSeconds int32) error
	// BlockDischarge keeps the battery idle: no forced charge, no discharge.
	BlockDischarge(revertTimeSeconds int32) error
	// ReleaseControl returns the battery to its own internal strategy.
	ReleaseControl() error
}

type DeviceInfo struct {
	Manufacturer      string
	Model             string
	Version           string
	Serial            string
	MaxRatedPowerWatt uint32
}

type Telemetry struct {
	CabinetTemperature   float64
	FanSpeedPercent      float64
	StateOfCharge        float64
	MaxCapacityWatt      uint32
	DynamicMaxChargeWatt float64
	EVFastCharging       bool
	ChargeStatus         uint16
	ChargeStatusStr      string
}

const (
	StorageChargeStatusOff         = uint16(1)
	StorageChargeStatusEmpty       = uint16(2)
	StorageChargeStatusDischarging = uint16(3)
	StorageChargeStatusCharging    = uint16(4)
	StorageChargeStatusFull        = uint16(5)
	StorageChargeStatusHolding     = uint16(6)
	StorageChargeStatusTesting     = uint16(7)
)

func StorageChargeStatusToString(status uint16) string {
	switch status {
	case StorageChargeStatusOff:
		return "OFF"
	case StorageChargeStatusEmpty:
		return "EMPTY"
	case StorageChargeStatusDischarging:
		return "DISCHARGING"
	case StorageChargeStatusCharging:
		return "CHARGING"
	case StorageChargeStatusFull:
		return "FULL"
	case StorageChargeStatusHolding:
		return "HOLDING"
	case StorageChargeStatusTesting:
		return "TESTING"
	default:
		return "UNKNOWN"
	}
}
