package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testRequest() domain.OptimizationRequest {
	arr := make([]float64, 48)
	for i := range arr {
		arr[i] = float64(i)
	}
	return domain.OptimizationRequest{
		Start:             time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		ResolutionSeconds: domain.ResolutionHour,
		PVForecastWh:      arr,
		ImportPrice:       arr,
		FeedInPrice:       arr,
		BatteryChargeCost: arr,
		TotalLoadWh:       arr,
		BatteryCapacityWh: 10000,
		BatteryMaxChargeW: 5000,
		BatterySOCPercent: 55,
		MinSOCPercent:     10,
		MaxSOCPercent:     95,
		InverterMaxPowerW: 8000,
	}
}

func TestEOSBackendSubmit(t *testing.T) {

	assert := assert.New(t)

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		err := json.NewDecoder(r.Body).Decode(&gotBody)
		assert.NoError(err)
		w.Write([]byte(`{"ac_charge":[1],"dc_charge":[1],"discharge_allowed":[0]}`))
	}))
	defer server.Close()

	b := NewEOSBackend(config.OptimizerConfig{URL: server.URL, TimeoutSeconds: 5}, zap.NewNop())
	assert.Equal(domain.BackendEOS, b.Kind())

	raw, err := b.Submit(context.Background(), testRequest(), 9)
	assert.NoError(err)
	assert.Contains(string(raw), "ac_charge")

	assert.Equal(float64(9), gotBody["start_hour"])
	ems, ok := gotBody["ems"].(map[string]any)
	assert.True(ok)
	assert.Len(ems["gesamtlast"], 48)
}

func TestEOSBackendServerError(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	b := NewEOSBackend(config.OptimizerConfig{URL: server.URL, TimeoutSeconds: 5}, zap.NewNop())
	_, err := b.Submit(context.Background(), testRequest(), 0)

	var terr *domain.TransportError
	assert.ErrorAs(err, &terr)
}

func TestEOSBackendConnectionRefused(t *testing.T) {

	assert := assert.New(t)

	b := NewEOSBackend(config.OptimizerConfig{URL: "http://127.0.0.1:1", TimeoutSeconds: 1}, zap.NewNop())
	_, err := b.Submit(context.Background(), testRequest(), 0)

	var terr *domain.TransportError
	assert.ErrorAs(err, &terr)
}

func TestEVoptBackendSubmit(t *testing.T) {

	assert := assert.New(t)

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := json.NewDecoder(r.Body).Decode(&gotBody)
		assert.NoError(err)
		w.Write([]byte(`{"status":"optimal","schedule":[]}`))
	}))
	defer server.Close()

	b := NewEVoptBackend(config.OptimizerConfig{URL: server.URL, TimeoutSeconds: 5}, zap.NewNop())
	assert.Equal(domain.BackendEVopt, b.Kind())

	raw, err := b.Submit(context.Background(), testRequest(), 0)
	assert.NoError(err)
	assert.Contains(string(raw), "optimal")

	assert.Equal(float64(3600), gotBody["resolution_seconds"])
	battery, ok := gotBody["battery"].(map[string]any)
	assert.True(ok)
	assert.Equal(float64(5000), battery["max_charge_w"])
}
