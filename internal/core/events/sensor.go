package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/greenwire-dev/optibridge/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE             = "bridge"
	SENSOR_ID_CONTROL_MODE             = "control_mode"
	SENSOR_ID_DEMAND_AC_CHARGE_POWER   = "demand_ac_charge_power"
	SENSOR_ID_DEMAND_DC_CHARGE_POWER   = "demand_dc_charge_power"
	SENSOR_ID_DEMAND_DISCHARGE_ALLOWED = "demand_discharge_allowed"
	SENSOR_ID_BATTERY_SOC              = "battery_soc"
	SENSOR_ID_INVERTER_CABINET_TEMP    = "inverter_cabinet_temperature"
	SENSOR_ID_INVERTER_FAN_SPEED       = "inverter_fan_speed"
	SENSOR_ID_OVERRIDE_ACTIVE          = "override_active"
	SENSOR_ID_OVERRIDE_MODE            = "override_mode"
	SENSOR_ID_OVERRIDE_EXPIRES_AT      = "override_expires_at"
	SENSOR_ID_PLAN_SOURCE              = "plan_source"
	SENSOR_ID_PLAN_AGE_SECONDS         = "plan_age_seconds"
	SWITCH_ID_OVERRIDE                 = "override"

	STATE_CLASS_MEASUREMENT  = "measurement"
	DEVICE_CLASS_BATTERY     = "battery"
	DEVICE_CLASS_POWER       = "power"
	DEVICE_CLASS_TEMPERATURE = "temperature"
	DEVICE_CLASS_TIMESTAMP   = "timestamp"
	DEVICE_CLASS_DURATION    = "duration"
	ENTITY_CLASS_DIAGNOSTIC  = "diagnostic"
	SENSOR_TYPE_SENSOR       = "sensor"
	SENSOR_TYPE_BINARY       = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("optibridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "greenwire",
		Model:        "Optibridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Optibridge %s", md5HashShort(baseTopic)),
	}
}

// ControllerSensors is the fixed sensor catalog announced via HA discovery.
func ControllerSensors(device Device) []GenericSensor {
	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_CONTROL_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Control mode",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_CONTROL_MODE),
		Icon:       "mdi:state-machine",
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_DEMAND_AC_CHARGE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "AC charge power demand",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_DEMAND_AC_CHARGE_POWER),
		UnitOfMeasurement: "W",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_DEMAND_DC_CHARGE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "DC charge power demand",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_DEMAND_DC_CHARGE_POWER),
		UnitOfMeasurement: "W",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_DEMAND_DISCHARGE_ALLOWED,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Discharge allowed",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_DEMAND_DISCHARGE_ALLOWED),
		Icon:       "mdi:battery-arrow-down",
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_BATTERY_SOC),
		UnitOfMeasurement: "%",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_INVERTER_CABINET_TEMP,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Inverter cabinet temperature",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_INVERTER_CABINET_TEMP),
		UnitOfMeasurement: "°C",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_INVERTER_FAN_SPEED,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Inverter fan speed",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_INVERTER_FAN_SPEED),
		UnitOfMeasurement: "%",
		StateClass:        STATE_CLASS_MEASUREMENT,
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		Icon:              "mdi:fan",
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_OVERRIDE_ACTIVE,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Override active",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_OVERRIDE_ACTIVE),
		Icon:       "mdi:hand-back-right",
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_OVERRIDE_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Override mode",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_OVERRIDE_MODE),
		Icon:       "mdi:hand-back-right-outline",
	})
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_OVERRIDE_EXPIRES_AT,
		SensorType:  SENSOR_TYPE_SENSOR,
		Name:        "Override expires",
		UniqueId:    uniqueId(device.Id, SENSOR_ID_OVERRIDE_EXPIRES_AT),
		DeviceClass: DEVICE_CLASS_TIMESTAMP,
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_PLAN_SOURCE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Plan source",
		UniqueId:       uniqueId(device.Id, SENSOR_ID_PLAN_SOURCE),
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_PLAN_AGE_SECONDS,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Plan age",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_PLAN_AGE_SECONDS),
		UnitOfMeasurement: "s",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		Icon:              "mdi:clock-alert-outline",
	})

	return sensors
}

// ControllerSwitches returns the override switch. Turning it off returns the
// controller to automatic mode; turning it on without a prior override is a
// no-op.
func ControllerSwitches(device Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   device,
			Id:       SWITCH_ID_OVERRIDE,
			Name:     "Manual override",
			UniqueId: uniqueId(device.Id, SWITCH_ID_OVERRIDE),
			Icon:     "mdi:hand-back-right",
		},
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(value string) string {
	hash := md5.Sum([]byte(value))
	return hex.EncodeToString(hash[:])[:8]
}
