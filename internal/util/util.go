package util

import (
	"github.com/greenwire-dev/optibridge/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Host:   "-.-.-.-",
			Port:   502,
			UnitId: 1,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "optibridge",
		},
		Optimizer: config.OptimizerConfig{
			Backend:                "eos",
			URL:                    "http://localhost:8503",
			TimeoutSeconds:         5,
			RefreshIntervalMinutes: 15,
			ResolutionSeconds:      3600,
		},
		Battery: config.BatteryConfig{
			CapacityWh:         10000,
			MaxChargePower:     5000,
			MaxDischargePower:  5000,
			MinSOCPercent:      5,
			MaxSOCPercent:      100,
			InverterMaxPower:   10000,
			MaxGridChargePower: 4000,
		},
		Control: config.ControlConfig{
			TickIntervalMillis:      1000,
			ApplyIntervalMillis:     2000,
			TelemetryIntervalMillis: 1000,
		},
		Port: 8080,
	}
}
