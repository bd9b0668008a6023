package actor

import (
	"errors"
	"testing"
	"time"

	adactor "github.com/greenwire-dev/optibridge/internal/adapter/actor"
	"github.com/greenwire-dev/optibridge/internal/adapter/driver"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/util"
	"github.com/greenwire-dev/optibridge/internal/util/actorutil"
	"github.com/greenwire-dev/optibridge/pkg/storctl"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestControlOverrideFlow(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()

	driverActorPID, testClient := spawnTestDriver(t, context, logger)

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, driverActorPID, &eventstream.EventStream{}, logger)
	})
	controlActorPID := context.Spawn(controlProps)

	// wait for the first control tick
	time.Sleep(1200 * time.Millisecond)

	// without a plan and without an override nothing allows discharging
	demand := getDemand(t, context, controlActorPID)
	assert.Equal(t, domain.ModeAvoidDischarge, demand.Mode)

	// set a charge-from-grid override
	res, err := context.RequestFuture(controlActorPID, domain.SetOverrideRequest{
		Mode:             int(domain.ModeChargeFromGrid),
		GridChargePowerW: 2000,
		DurationMinutes:  30,
	}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	setResp, ok := res.(domain.SetOverrideResponse)
	assert.True(t, ok)
	assert.False(t, setResp.HasResponseError())
	assert.True(t, setResp.Override.Active)
	assert.Equal(t, domain.ModeChargeFromGrid, setResp.Override.Mode)

	demand = getDemand(t, context, controlActorPID)
	assert.Equal(t, domain.ModeChargeFromGrid, demand.Mode)
	assert.Equal(t, 2000.0, demand.Demand.ACChargePowerW)

	// the override is applied to the device right away
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, uint16(2000), testClient.LastForceChargeWatts)

	// an out-of-range mode is rejected, override stays in place
	res, err = context.RequestFuture(controlActorPID, domain.SetOverrideRequest{
		Mode:            -1,
		DurationMinutes: 30,
	}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	setResp, ok = res.(domain.SetOverrideResponse)
	assert.True(t, ok)
	assert.True(t, setResp.HasResponseError())
	var valErr *domain.ValidationError
	assert.True(t, errors.As(setResp.GetResponseError(), &valErr))

	demand = getDemand(t, context, controlActorPID)
	assert.Equal(t, domain.ModeChargeFromGrid, demand.Mode)

	// clearing the override falls back to the (empty) plan
	_, err = context.RequestFuture(controlActorPID, domain.ClearOverrideRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	demand = getDemand(t, context, controlActorPID)
	assert.Equal(t, domain.ModeAvoidDischarge, demand.Mode)

	context.Stop(controlActorPID)
	context.Stop(driverActorPID)
	as.Shutdown()
}

func TestControlPlanFlow(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()

	driverActorPID, testClient := spawnTestDriver(t, context, logger)

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, driverActorPID, &eventstream.EventStream{}, logger)
	})
	controlActorPID := context.Spawn(controlProps)

	time.Sleep(200 * time.Millisecond)

	// feed a plan whose current slot commands ac charge
	start := time.Now().Truncate(time.Hour)
	result := domain.OptimizationResult{
		Source:            domain.BackendEOS,
		Timestamp:         time.Now(),
		Start:             start,
		ResolutionSeconds: 3600,
		SlotCount:         48,
		ACCharge:          make([]float64, 48),
		DCCharge:          make([]float64, 48),
		DischargeAllowed:  make([]bool, 48),
	}
	idx, ok := result.SlotAt(time.Now())
	assert.True(t, ok)
	result.ACCharge[idx] = 1

	context.Send(controlActorPID, domain.ApplyOptimizationResult{Result: result})

	time.Sleep(200 * time.Millisecond)

	// full relative demand is capped by the grid charge limit (4 kW of 5 kW)
	demand := getDemand(t, context, controlActorPID)
	assert.Equal(t, domain.ModeChargeFromGrid, demand.Mode)
	assert.Equal(t, 4000.0, demand.Demand.ACChargePowerW)
	assert.Equal(t, 0.8, demand.Demand.ACChargeRelative)

	// the snapshot reflects the committed plan
	res, err := context.RequestFuture(controlActorPID, domain.GetOptimizationSnapshotRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	snap, ok := res.(domain.GetOptimizationSnapshotResponse)
	assert.True(t, ok)
	assert.NotNil(t, snap.Result)
	assert.Equal(t, 48, snap.Result.SlotCount)
	assert.False(t, snap.LastSuccess.IsZero())

	// wait for an apply tick to reach the device
	time.Sleep(2500 * time.Millisecond)
	assert.Greater(t, int(testClient.LastForceChargeWatts), 0)

	context.Stop(controlActorPID)
	context.Stop(driverActorPID)
	as.Shutdown()
}

func TestControlHealthDegradesOnStalePlan(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()

	driverActorPID, _ := spawnTestDriver(t, context, logger)

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, driverActorPID, &eventstream.EventStream{}, logger)
	})
	controlActorPID := context.Spawn(controlProps)

	time.Sleep(200 * time.Millisecond)

	// before any optimization the loop just reports running
	health := getHealth(t, context, controlActorPID)
	assert.True(t, health.Healthy)
	assert.Equal(t, "running", health.State)

	// feed a plan whose last success is older than two refresh intervals
	// (15 min refresh in the test config)
	start := time.Now().Truncate(time.Hour)
	result := domain.OptimizationResult{
		Source:            domain.BackendEOS,
		Timestamp:         time.Now().Add(-31 * time.Minute),
		Start:             start,
		ResolutionSeconds: 3600,
		SlotCount:         48,
		ACCharge:          make([]float64, 48),
		DCCharge:          make([]float64, 48),
		DischargeAllowed:  make([]bool, 48),
	}
	context.Send(controlActorPID, domain.ApplyOptimizationResult{Result: result})

	time.Sleep(200 * time.Millisecond)

	// a stale plan degrades the loop but never fails it
	health = getHealth(t, context, controlActorPID)
	assert.True(t, health.Healthy)
	assert.Equal(t, "degraded", health.State)

	context.Stop(controlActorPID)
	context.Stop(driverActorPID)
	as.Shutdown()
}

func spawnTestDriver(t *testing.T, context *actor.RootContext, logger *zap.Logger) (*actor.PID, *storctl.TestStorageControlClient) {
	t.Helper()
	client, err := storctl.CreateTestStorageControlClient()
	if err != nil {
		t.Fatal(err)
	}
	testClient := client.(*storctl.TestStorageControlClient)

	cfg := util.LoadTestConfig()
	storageDriver := driver.NewStorageDriver(client, cfg.Inverter, logger)

	driverProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDriverActor(storageDriver, logger)
	})
	return context.Spawn(driverProps), testClient
}

func getHealth(t *testing.T, ctx *actor.RootContext, pid *actor.PID) domain.ActorHealthResponse {
	t.Helper()
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	health, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		t.Fatal(errors.New("unexpected response type"))
	}
	return health
}

func getDemand(t *testing.T, ctx *actor.RootContext, pid *actor.PID) *domain.GetDemandResponse {
	t.Helper()
	resp, err := ctx.RequestFuture(pid, domain.GetDemandRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	demand, ok := resp.(domain.GetDemandResponse)
	if !ok {
		t.Fatal(errors.New("unexpected response type"))
	}
	return &demand
}
