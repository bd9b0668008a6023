package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"

	"go.uber.org/zap"
)

// EOSBackend talks to an EOS optimizer instance. EOS only understands hourly
// arrays and answers with flat relative-demand arrays.
type EOSBackend struct {
	httpClient *http.Client
	url        string
	logger     *zap.Logger
}

var _ port.OptimizationBackend = (*EOSBackend)(nil)

func NewEOSBackend(cfg config.OptimizerConfig, logger *zap.Logger) *EOSBackend {
	return &EOSBackend{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		url:    cfg.URL,
		logger: logger,
	}
}

func (b *EOSBackend) Kind() domain.BackendKind {
	return domain.BackendEOS
}

type eosRequest struct {
	StartHour int         `json:"start_hour"`
	Ems       eosEmsBlock `json:"ems"`
	Battery   eosBattery  `json:"pv_akku"`
	Inverter  eosInverter `json:"wechselrichter"`
}

type eosEmsBlock struct {
	PVForecastWh      []float64 `json:"pv_prognose_wh"`
	ImportPrice       []float64 `json:"strompreis_euro_pro_wh"`
	FeedInPrice       []float64 `json:"einspeiseverguetung_euro_pro_wh"`
	BatteryChargeCost []float64 `json:"preis_euro_pro_wh_akku"`
	TotalLoadWh       []float64 `json:"gesamtlast"`
}

type eosBattery struct {
	CapacityWh    float64 `json:"capacity_wh"`
	MaxChargeW    float64 `json:"max_charge_power_w"`
	SOCPercent    float64 `json:"initial_soc_percentage"`
	MinSOCPercent float64 `json:"min_soc_percentage"`
	MaxSOCPercent float64 `json:"max_soc_percentage"`
}

type eosInverter struct {
	MaxPowerW float64 `json:"max_power_wh"`
}

// Submit posts the request in EOS wire shape. startSlotHint is the
// hour-of-day EOS uses to rotate its day-keyed arrays.
func (b *EOSBackend) Submit(ctx context.Context, req domain.OptimizationRequest, startSlotHint int) ([]byte, error) {
	wireReq := eosRequest{
		StartHour: startSlotHint,
		Ems: eosEmsBlock{
			PVForecastWh:      req.PVForecastWh,
			ImportPrice:       req.ImportPrice,
			FeedInPrice:       req.FeedInPrice,
			BatteryChargeCost: req.BatteryChargeCost,
			TotalLoadWh:       req.TotalLoadWh,
		},
		Battery: eosBattery{
			CapacityWh:    req.BatteryCapacityWh,
			MaxChargeW:    req.BatteryMaxChargeW,
			SOCPercent:    req.BatterySOCPercent,
			MinSOCPercent: req.MinSOCPercent,
			MaxSOCPercent: req.MaxSOCPercent,
		},
		Inverter: eosInverter{
			MaxPowerW: req.InverterMaxPowerW,
		},
	}
	return postJSON(ctx, b.httpClient, b.url, wireReq, b.logger)
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, logger *zap.Logger) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.TransportError{Op: "encode request", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.TransportError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Op: "post optimization request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.TransportError{
			Op:  "post optimization request",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	logger.Debug("optimizer round trip", zap.Duration("rtt", time.Since(start)),
		zap.Int("response_bytes", len(respBody)))
	return respBody, nil
}
