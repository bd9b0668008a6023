package storctl

import (
	"math"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
)

type modbusConn struct {
	client     *modbus.ModbusClient
	instrument []Instrument
}

// Instrument records per-call timings for the underlying register access.
type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func (c modbusConn) readString(address uint16, size uint16) (string, error) {
	bytes, err := c.readRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	f := slices.Index(bytes, 0x00)
	if f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func (c modbusConn) applySF(number uint16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func (c modbusConn) applySFfloat64Inv(number float64, sf uint16) float64 {
	return number / math.Pow(10, float64(int16(sf)))
}

func (c modbusConn) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer recordTimer("ReadRegister", c.instrument)()
	return c.client.ReadRegister(addr, regType)
}

func (c modbusConn) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer recordTimer("ReadRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, regType)
}

func (c modbusConn) readRawBytes(addr uint16, quantity uint16, regType modbus.RegType) ([]byte, error) {
	defer recordTimer("ReadRawBytes", c.instrument)()
	return c.client.ReadRawBytes(addr, quantity, regType)
}

func (c modbusConn) writeRegister(addr uint16, value uint16) error {
	defer recordTimer("WriteRegister", c.instrument)()
	return c.client.WriteRegister(addr, value)
}

func (c modbusConn) writeRegisters(addr uint16, values []uint16) error {
	defer recordTimer("WriteRegisters", c.instrument)()
	return c.client.WriteRegisters(addr, values)
}

func recordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
