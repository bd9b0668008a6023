package storctl

import "sync"

func CreateTestStorageControlClient() (StorageControlClient, error) {
	return &TestStorageControlClient{
		Soc:                  23.5,
		DynamicMaxChargeWatt: 5000,
	}, nil
}

// TestStorageControlClient keeps the last commanded state in memory so tests
// can assert on what the control loop wrote.
type TestStorageControlClient struct {
	mu sync.Mutex

	Soc                  float64
	DynamicMaxChargeWatt float64
	EVFastCharging       bool

	LastForceChargeWatts uint16
	DischargeBlocked     bool
	ControlReleased      bool
	ApplyCalls           int

	FailNext bool
}

func (c *TestStorageControlClient) Open() error {
	return nil
}

func (c *TestStorageControlClient) Close() error {
	return nil
}

func (c *TestStorageControlClient) GetInfo() (*DeviceInfo, error) {
	return &DeviceInfo{
		Manufacturer:      "Optibridge",
		Model:             "Hybrid 8.0",
		Version:           "1.4.2",
		Serial:            "OB-TEST-0001",
		MaxRatedPowerWatt: 8000,
	}, nil
}

func (c *TestStorageControlClient) GetTelemetry() (*Telemetry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return nil, err
	}
	return &Telemetry{
		CabinetTemperature:   51.7,
		FanSpeedPercent:      35,
		StateOfCharge:        c.Soc,
		MaxCapacityWatt:      5260,
		DynamicMaxChargeWatt: c.DynamicMaxChargeWatt,
		EVFastCharging:       c.EVFastCharging,
		ChargeStatus:         StorageChargeStatusCharging,
		ChargeStatusStr:      StorageChargeStatusToString(StorageChargeStatusCharging),
	}, nil
}

func (c *TestStorageControlClient) ForceChargePower(watts uint16, revertTimeSeconds int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return err
	}
	c.ApplyCalls++
	c.LastForceChargeWatts = watts
	c.DischargeBlocked = true
	c.ControlReleased = false
	return nil
}

func (c *TestStorageControlClient) BlockDischarge(revertTimeSeconds int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return err
	}
	c.ApplyCalls++
	c.LastForceChargeWatts = 0
	c.DischargeBlocked = true
	c.ControlReleased = false
	return nil
}

func (c *TestStorageControlClient) ReleaseControl() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return err
	}
	c.ApplyCalls++
	c.LastForceChargeWatts = 0
	c.DischargeBlocked = false
	c.ControlReleased = true
	return nil
}

func (c *TestStorageControlClient) maybeFail() error {
	if c.FailNext {
		c.FailNext = false
		return errTestFailure
	}
	return nil
}

type testFailure struct{}

func (testFailure) Error() string { return "storctl: injected test failure" }

var errTestFailure = testFailure{}
