package actor

import (
	"context"
	"fmt"
	"testing"
	"time"

	adactor "github.com/greenwire-dev/optibridge/internal/adapter/actor"
	"github.com/greenwire-dev/optibridge/internal/adapter/backend"
	"github.com/greenwire-dev/optibridge/internal/adapter/driver"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"
	"github.com/greenwire-dev/optibridge/internal/util"
	"github.com/greenwire-dev/optibridge/pkg/storctl"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	client, err := storctl.CreateTestStorageControlClient()
	if err != nil {
		t.Fatal(err)
	}
	storageDriver := driver.NewStorageDriver(client, cfg.Inverter, logger)

	builder := service.NewRequestBuilder(staticForecast{}, staticForecast{}, staticForecast{}, staticForecast{},
		service.BatteryParams{
			CapacityWh:    cfg.Battery.CapacityWh,
			MaxChargeW:    cfg.Battery.MaxChargePower,
			MaxDischargeW: cfg.Battery.MaxDischargePower,
			MinSOCPercent: cfg.Battery.MinSOCPercent,
			MaxSOCPercent: cfg.Battery.MaxSOCPercent,
		}, cfg.Optimizer.ResolutionSeconds, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.DriverActor {
			return adactor.NewDriverActor(storageDriver, logger)
		}, func(*eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, backend.NewEOSBackend(cfg.Optimizer, logger), builder, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")
	// all five children answered and the control loop state made it through
	assert.Equal(t, "running", healthResp.State)

	// demand requests are forwarded to the control actor
	res, err = context.RequestFuture(pid, domain.GetDemandRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	_, ok = res.(domain.GetDemandResponse)
	assert.True(t, ok)

	context.Stop(pid)

	as.Shutdown()
}

type staticForecast struct {
}

func (staticForecast) series(window port.Window) []float64 {
	return make([]float64, window.SlotCount)
}

func (f staticForecast) Load(_ context.Context, window port.Window) ([]float64, error) {
	return f.series(window), nil
}

func (f staticForecast) ImportPrice(_ context.Context, window port.Window) ([]float64, error) {
	return f.series(window), nil
}

func (f staticForecast) FeedInPrice(_ context.Context, window port.Window) ([]float64, error) {
	return f.series(window), nil
}

func (f staticForecast) Generation(_ context.Context, window port.Window) ([]float64, error) {
	return f.series(window), nil
}

func (staticForecast) SOC(_ context.Context) (float64, error) {
	return 50, nil
}

func (staticForecast) DynamicMaxChargeW(_ context.Context) (float64, error) {
	return 5000, nil
}

func (staticForecast) ChargeCostPerWh(_ context.Context) (float64, error) {
	return 0, nil
}
