package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoopCadence(t *testing.T) {
	viper.Reset()
	setConfigDefaults()

	// the fast-control loop ticks every second so override expiry and slot
	// boundaries are picked up promptly; telemetry polls every 15 s
	assert.Equal(t, 1000, viper.GetInt("control.tick_interval_millis"))
	assert.Equal(t, 15000, viper.GetInt("control.telemetry_interval_millis"))
	assert.Equal(t, 20000, viper.GetInt("control.apply_interval_millis"))
}
