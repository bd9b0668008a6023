package storctl

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Register layout of the storage control map. Offsets are relative to the
// block base addresses discovered at Open time.
const (
	regCommonManufacturer = 2
	regCommonModel        = 18
	regCommonVersion      = 42
	regCommonSerial       = 50
	regCommonMaxPower     = 66
	regCommonMaxPowerSF   = 68

	regStatusCabinetTemp   = 2
	regStatusCabinetTempSF = 4
	regStatusFanSpeed      = 6
	regStatusFlags         = 8

	regStorageWChaMax   = 2
	regStorageWChaGra   = 4
	regStorageCtlMod    = 5
	regStorageSoc       = 8
	regStorageChaStatus = 9
	regStorageRatePair  = 12
	regStorageRvrtTime  = 15
	regStorageWChaMaxSF = 18
	regStorageSocSF     = 20
	regStorageInOutSF   = 25

	statusFlagEVFastCharge = 0x0001

	ctlModCharge    = uint16(0x01)
	ctlModDischarge = uint16(0x02)
)

type storageBlocks struct {
	common  uint16
	status  uint16
	storage uint16
}

func defaultBlocks() storageBlocks {
	return storageBlocks{
		common:  40000,
		status:  40183,
		storage: 40313,
	}
}

type storageControlModbusClient struct {
	modbusConn

	logger *zap.Logger
	blocks storageBlocks
}

func (c *storageControlModbusClient) Open() error {
	if err := c.client.Open(); err != nil {
		return err
	}
	// storage map presence check: WChaMax must be a sane non-zero value
	wChaMax, err := c.readRegister(c.blocks.storage+regStorageWChaMax, modbus.HOLDING_REGISTER)
	if err != nil {
		_ = c.client.Close()
		return err
	}
	if wChaMax == 0 || wChaMax == 0xFFFF {
		_ = c.client.Close()
		return errors.New("storctl: no storage control map at configured address")
	}
	return nil
}

func (c *storageControlModbusClient) Close() error {
	return c.client.Close()
}

func (c *storageControlModbusClient) GetInfo() (*DeviceInfo, error) {
	manufacturer, err := c.readString(c.blocks.common+regCommonManufacturer, 32)
	if err != nil {
		return nil, err
	}
	model, err := c.readString(c.blocks.common+regCommonModel, 32)
	if err != nil {
		return nil, err
	}
	version, err := c.readString(c.blocks.common+regCommonVersion, 16)
	if err != nil {
		return nil, err
	}
	serial, err := c.readString(c.blocks.common+regCommonSerial, 32)
	if err != nil {
		return nil, err
	}
	pow, err := c.readRegister(c.blocks.common+regCommonMaxPower, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	powSF, err := c.readRegister(c.blocks.common+regCommonMaxPowerSF, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &DeviceInfo{
		Manufacturer:      manufacturer,
		Model:             model,
		Version:           version,
		Serial:            serial,
		MaxRatedPowerWatt: uint32(c.applySF(pow, powSF)),
	}, nil
}

func (c *storageControlModbusClient) GetTelemetry() (*Telemetry, error) {
	temp, err := c.readRegister(c.blocks.status+regStatusCabinetTemp, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	tempSF, err := c.readRegister(c.blocks.status+regStatusCabinetTempSF, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	fanSpeed, err := c.readRegister(c.blocks.status+regStatusFanSpeed, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	flags, err := c.readRegister(c.blocks.status+regStatusFlags, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	regs, err := c.readRegisters(c.blocks.storage+regStorageWChaMax, 24, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	wChaMax := regs[regStorageWChaMax-regStorageWChaMax]
	wChaGra := regs[regStorageWChaGra-regStorageWChaMax]
	socRaw := regs[regStorageSoc-regStorageWChaMax]
	chaStatus := regs[regStorageChaStatus-regStorageWChaMax]
	wChaMaxSF := regs[regStorageWChaMaxSF-regStorageWChaMax]
	socSF := regs[regStorageSocSF-regStorageWChaMax]

	soc := c.applySF(socRaw, socSF)
	if chaStatus == StorageChargeStatusOff {
		soc = 0
	}
	maxCap := c.applySF(wChaMax, wChaMaxSF)
	// WChaGra is the current charge rate derating in percent of WChaMax
	dynamicMax := maxCap * float64(wChaGra) / 100

	return &Telemetry{
		CabinetTemperature:   c.applySF(temp, tempSF),
		FanSpeedPercent:      float64(fanSpeed),
		StateOfCharge:        soc,
		MaxCapacityWatt:      uint32(math.Round(maxCap)),
		DynamicMaxChargeWatt: dynamicMax,
		EVFastCharging:       flags&statusFlagEVFastCharge != 0,
		ChargeStatus:         chaStatus,
		ChargeStatusStr:      StorageChargeStatusToString(chaStatus),
	}, nil
}

func (c *storageControlModbusClient) ForceChargePower(watts uint16, revertTimeSeconds int32) error {
	capacity, err := c.chargeCapacity()
	if err != nil {
		return err
	}
	// negative discharge rate forces charging at that rate
	outWRte := -(float64(watts) / capacity) * 100
	return c.setChargeControl(outWRte, 100, true, false, revertTimeSeconds)
}

func (c *storageControlModbusClient) BlockDischarge(revertTimeSeconds int32) error {
	return c.setChargeControl(0, 100, true, false, revertTimeSeconds)
}

func (c *storageControlModbusClient) ReleaseControl() error {
	return c.setChargeControl(100, 100, false, false, -1)
}

func (c *storageControlModbusClient) setChargeControl(maxDischargeRatePercent float64, maxChargeRatePercent float64,
	controlDischarge bool, controlCharge bool, rvrtTimeSeconds int32) error {
	inoutSF, err := c.readRegister(c.blocks.storage+regStorageInOutSF, modbus.HOLDING_REGISTER)
	if err != nil {
		return err
	}
	control := uint16(0)
	if controlDischarge {
		control = control | ctlModDischarge
	}
	if controlCharge {
		control = control | ctlModCharge
	}

	outWRte := int16(c.applySFfloat64Inv(maxDischargeRatePercent, inoutSF))
	inWRte := int16(c.applySFfloat64Inv(maxChargeRatePercent, inoutSF))

	err = c.writeRegisters(c.blocks.storage+regStorageRatePair, []uint16{uint16(outWRte), uint16(inWRte)})
	if err != nil {
		return err
	}
	err = c.writeRegister(c.blocks.storage+regStorageCtlMod, control)
	if err != nil {
		return err
	}
	if rvrtTimeSeconds >= 0 {
		err = c.writeRegister(c.blocks.storage+regStorageRvrtTime, uint16(rvrtTimeSeconds))
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *storageControlModbusClient) chargeCapacity() (float64, error) {
	wChaMax, err := c.readRegister(c.blocks.storage+regStorageWChaMax, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	wChaMaxSF, err := c.readRegister(c.blocks.storage+regStorageWChaMaxSF, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	return c.applySF(wChaMax, wChaMaxSF), nil
}

func debugLoggerInstrumentation(logger *zap.Logger) *Instrument {
	return &Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func CreateStorageControlModbusClient(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *Instrument) (StorageControlClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	var inst []Instrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "storage"), zap.Uint8("unit", unitId)))
	inst = append(inst, *logInst)
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	return &storageControlModbusClient{
		modbusConn: modbusConn{
			client:     client,
			instrument: inst,
		},
		logger: logger,
		blocks: defaultBlocks(),
	}, nil
}
