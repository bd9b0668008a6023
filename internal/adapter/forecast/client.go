package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
)

// HTTPClient fetches forecast series and live battery figures from the
// configured provider endpoints. All endpoints speak the same window query
// protocol: start (RFC3339), resolution_seconds and slots.
type HTTPClient struct {
	httpClient      *http.Client
	loadURL         string
	priceURL        string
	pvURL           string
	batteryStateURL string
}

var _ port.LoadForecast = (*HTTPClient)(nil)
var _ port.PriceForecast = (*HTTPClient)(nil)
var _ port.PvForecast = (*HTTPClient)(nil)
var _ port.BatteryState = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.ForecastConfig) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		loadURL:         cfg.LoadURL,
		priceURL:        cfg.PriceURL,
		pvURL:           cfg.PvURL,
		batteryStateURL: cfg.BatteryStateURL,
	}
}

type seriesResponse struct {
	Values []float64 `json:"values"`
}

type priceResponse struct {
	Import []float64 `json:"import"`
	FeedIn []float64 `json:"feed_in"`
}

type batteryStateResponse struct {
	SOCPercent        float64 `json:"soc_percent"`
	DynamicMaxChargeW float64 `json:"dynamic_max_charge_w"`
	ChargeCostPerWh   float64 `json:"charge_cost_per_wh"`
}

func (c *HTTPClient) Load(ctx context.Context, window port.Window) ([]float64, error) {
	var resp seriesResponse
	if err := c.getWindowJSON(ctx, c.loadURL, window, &resp); err != nil {
		return nil, err
	}
	return checkSeriesLength("load", resp.Values, window.SlotCount)
}

func (c *HTTPClient) ImportPrice(ctx context.Context, window port.Window) ([]float64, error) {
	resp, err := c.prices(ctx, window)
	if err != nil {
		return nil, err
	}
	return checkSeriesLength("import price", resp.Import, window.SlotCount)
}

func (c *HTTPClient) FeedInPrice(ctx context.Context, window port.Window) ([]float64, error) {
	resp, err := c.prices(ctx, window)
	if err != nil {
		return nil, err
	}
	return checkSeriesLength("feed-in price", resp.FeedIn, window.SlotCount)
}

func (c *HTTPClient) Generation(ctx context.Context, window port.Window) ([]float64, error) {
	var resp seriesResponse
	if err := c.getWindowJSON(ctx, c.pvURL, window, &resp); err != nil {
		return nil, err
	}
	return checkSeriesLength("pv generation", resp.Values, window.SlotCount)
}

func (c *HTTPClient) SOC(ctx context.Context) (float64, error) {
	resp, err := c.batteryState(ctx)
	if err != nil {
		return 0, err
	}
	return resp.SOCPercent, nil
}

func (c *HTTPClient) DynamicMaxChargeW(ctx context.Context) (float64, error) {
	resp, err := c.batteryState(ctx)
	if err != nil {
		return 0, err
	}
	return resp.DynamicMaxChargeW, nil
}

func (c *HTTPClient) ChargeCostPerWh(ctx context.Context) (float64, error) {
	resp, err := c.batteryState(ctx)
	if err != nil {
		return 0, err
	}
	return resp.ChargeCostPerWh, nil
}

func (c *HTTPClient) prices(ctx context.Context, window port.Window) (*priceResponse, error) {
	var resp priceResponse
	if err := c.getWindowJSON(ctx, c.priceURL, window, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) batteryState(ctx context.Context) (*batteryStateResponse, error) {
	var resp batteryStateResponse
	if err := c.getJSON(ctx, c.batteryStateURL, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) getWindowJSON(ctx context.Context, baseURL string, window port.Window, out any) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return &domain.TransportError{Op: "parse forecast url", Err: err}
	}
	q := u.Query()
	q.Set("start", window.Start.Format(time.RFC3339))
	q.Set("resolution_seconds", strconv.Itoa(window.ResolutionSeconds))
	q.Set("slots", strconv.Itoa(window.SlotCount))
	u.RawQuery = q.Encode()
	return c.getJSON(ctx, u.String(), out)
}

func (c *HTTPClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &domain.TransportError{Op: "build forecast request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: "fetch forecast", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: "read forecast response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.TransportError{
			Op:  "fetch forecast",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.TransportError{Op: "decode forecast response", Err: err}
	}
	return nil
}

func checkSeriesLength(name string, values []float64, slots int) ([]float64, error) {
	if len(values) < slots {
		return nil, &domain.TransportError{
			Op:  "fetch forecast",
			Err: fmt.Errorf("%s series too short: got %d slots, need %d", name, len(values), slots),
		}
	}
	return values[:slots], nil
}
