package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig `mapstructure:"mqtt"`

	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Control   ControlConfig   `mapstructure:"control"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Inverter  InverterConfig  `mapstructure:"inverter"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

type OptimizerConfig struct {
	// Backend selects the optimizer wire shape, "eos" or "evopt".
	Backend                string `mapstructure:"backend"`
	URL                    string `mapstructure:"url"`
	TimeoutSeconds         uint32 `mapstructure:"timeout_seconds"`
	RefreshIntervalMinutes uint32 `mapstructure:"refresh_interval_minutes"`
	ResolutionSeconds      int    `mapstructure:"resolution_seconds"`
}

type BatteryConfig struct {
	CapacityWh             float64 `mapstructure:"capacity_wh"`
	MaxChargePower         float64 `mapstructure:"max_charge_power"`
	MaxDischargePower      float64 `mapstructure:"max_discharge_power"`
	MinSOCPercent          float64 `mapstructure:"min_soc_percent"`
	MaxSOCPercent          float64 `mapstructure:"max_soc_percent"`
	InverterMaxPower       float64 `mapstructure:"inverter_max_power"`
	MaxGridChargePower     float64 `mapstructure:"max_grid_charge_power"`
	DefaultChargeCostPerWh float64 `mapstructure:"default_charge_cost_per_wh"`
}

type ControlConfig struct {
	TickIntervalMillis      uint32 `mapstructure:"tick_interval_millis"`
	ApplyIntervalMillis     uint32 `mapstructure:"apply_interval_millis"`
	TelemetryIntervalMillis uint32 `mapstructure:"telemetry_interval_millis"`
}

type ForecastConfig struct {
	LoadURL            string `mapstructure:"load_url"`
	PriceURL           string `mapstructure:"price_url"`
	PvURL              string `mapstructure:"pv_url"`
	BatteryStateURL    string `mapstructure:"battery_state_url"`
	RefreshCronMinutes uint32 `mapstructure:"refresh_cron_minutes"`
	TimeoutSeconds     uint32 `mapstructure:"timeout_seconds"`
}

type InverterConfig struct {
	Host                       string
	Port                       uint
	UnitId                     uint   `mapstructure:"unit_id"`
	ReadDelayAfterChangeMillis uint32 `mapstructure:"read_delay_after_change_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
