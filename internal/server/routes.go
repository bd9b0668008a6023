package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 10 * time.Second

type overrideBody struct {
	Mode             int     `json:"mode"`
	GridChargePowerW float64 `json:"grid_charge_power_w"`
	DurationMinutes  int     `json:"duration_minutes"`
}

type demandBody struct {
	Mode     string        `json:"mode"`
	ModeCode int           `json:"mode_code"`
	Demand   domain.Demand `json:"demand"`
}

type snapshotBody struct {
	Result      *domain.OptimizationResult  `json:"result"`
	Request     *domain.OptimizationRequest `json:"request"`
	LastSuccess *time.Time                  `json:"last_success,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	e.GET("/api/demand", s.GetDemandHandler)
	e.GET("/api/override", s.GetOverrideHandler)
	e.POST("/api/override", s.SetOverrideHandler)
	e.DELETE("/api/override", s.ClearOverrideHandler)
	e.GET("/api/optimization", s.GetOptimizationHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		if response.State == "degraded" {
			// control loop keeps driving the battery on a stale plan
			return c.String(http.StatusOK, "health_check: DEGRADED")
		}
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) GetDemandHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDemandRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.GetDemandResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	return c.JSON(http.StatusOK, demandBody{
		Mode:     response.Mode.String(),
		ModeCode: int(response.Mode),
		Demand:   response.Demand,
	})
}

func (s *Server) GetOverrideHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetOverrideRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.GetOverrideResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	return c.JSON(http.StatusOK, response.Override)
}

func (s *Server) SetOverrideHandler(c echo.Context) error {
	var body overrideBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetOverrideRequest{
		Mode:             body.Mode,
		GridChargePowerW: body.GridChargePowerW,
		DurationMinutes:  body.DurationMinutes,
	}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.SetOverrideResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		var valErr *domain.ValidationError
		if errors.As(response.GetResponseError(), &valErr) {
			return c.JSON(http.StatusBadRequest, errorBody{Error: valErr.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorBody{Error: response.GetResponseError().Error()})
	}
	return c.JSON(http.StatusOK, response.Override)
}

func (s *Server) ClearOverrideHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ClearOverrideRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	if response, ok := res.(domain.ClearOverrideResponse); ok && response.HasResponseError() {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: response.GetResponseError().Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) GetOptimizationHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetOptimizationSnapshotRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	response, ok := res.(domain.GetOptimizationSnapshotResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	body := snapshotBody{
		Result:  response.Result,
		Request: response.Request,
	}
	if !response.LastSuccess.IsZero() {
		ls := response.LastSuccess
		body.LastSuccess = &ls
	}
	return c.JSON(http.StatusOK, body)
}
