package events

import (
	"time"

	. "github.com/greenwire-dev/optibridge/internal/core/domain"
)

func TelemetryToUpdateEvents(t *InverterTelemetry) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_CABINET_TEMP,
		},
		Value:    t.CabinetTemperatureC,
		Decimals: 1,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_FAN_SPEED,
		},
		Value:    t.FanSpeedPercent,
		Decimals: 0,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    t.BatterySOCPercent,
		Decimals: 1,
	})

	return events
}

func DemandToUpdateEvents(demand Demand, mode ControlMode) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_MODE,
		},
		Value: mode.String(),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEMAND_AC_CHARGE_POWER,
		},
		Value:    demand.ACChargePowerW,
		Decimals: 0,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEMAND_DC_CHARGE_POWER,
		},
		Value:    demand.DCChargePowerW,
		Decimals: 0,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEMAND_DISCHARGE_ALLOWED,
		},
		Value: demand.DischargeAllowed,
	})

	return events
}

func OverrideToUpdateEvents(o OverrideState) []any {
	var events []any

	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_ACTIVE,
		},
		Value: o.Active,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_OVERRIDE,
		},
		Value: o.Active,
	})
	modeText := ""
	expires := ""
	if o.Active {
		modeText = o.Mode.String()
		expires = o.ExpiresAt.Format(time.RFC3339)
	}
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_MODE,
		},
		Value: modeText,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_EXPIRES_AT,
		},
		Value: expires,
	})

	return events
}

func PlanToUpdateEvents(result *OptimizationResult, now time.Time) []any {
	var events []any

	if result == nil {
		return events
	}
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_SOURCE,
		},
		Value: string(result.Source),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_AGE_SECONDS,
		},
		Value:    now.Sub(result.Timestamp).Seconds(),
		Decimals: 0,
	})

	return events
}
