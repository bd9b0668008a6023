package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/events"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"
	. "github.com/greenwire-dev/optibridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ControlActor owns the BaseControl state machine and the cached plan. All
// mode/override mutations and plan reads go through its mailbox, which is
// what makes the single-writer/multi-reader contract hold.
type ControlActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	driverActor *actor.PID
	config      *config.Config
	sink        port.TelemetrySink

	base *service.BaseControl

	result      *domain.OptimizationResult
	request     *domain.OptimizationRequest
	lastSuccess time.Time
	currentSlot int
	slotLoaded  bool

	lastPublishedDemand *domain.Demand
	lastPublishedMode   domain.ControlMode

	logger *zap.Logger
}

type controlTick struct {
}

type applyTick struct {
}

type slotBoundaryTick struct {
}

func NewControlActor(cfg *config.Config, driverActor *actor.PID, sink port.TelemetrySink, logger *zap.Logger) *ControlActor {
	base := service.NewBaseControl(service.BaseControlParams{
		BatteryMaxChargeW:   cfg.Battery.MaxChargePower,
		MaxGridChargePowerW: cfg.Battery.MaxGridChargePower,
		MaxSOCPercent:       cfg.Battery.MaxSOCPercent,
	}, logger)
	act := &ControlActor{
		config:      cfg,
		driverActor: driverActor,
		stash:       &Stash{},
		sink:        sink,
		base:        base,
		logger:      ActorLogger(domain.ACTOR_ID_CONTROL, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CtrlStartingState{
		actor: act,
	})
	return act
}

func (state *ControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CtrlStartingState struct {
	ActorState
	actor *ControlActor
}

func (state CtrlStartingState) Name() string {
	return "starting"
}

func (state CtrlStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("control@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		tickInterval := time.Duration(state.actor.config.Control.TickIntervalMillis) * time.Millisecond
		applyInterval := time.Duration(state.actor.config.Control.ApplyIntervalMillis) * time.Millisecond
		state.actor.scheduler.SendRepeatedly(tickInterval, tickInterval, ctx.Self(), controlTick{})
		state.actor.scheduler.SendRepeatedly(applyInterval, applyInterval, ctx.Self(), applyTick{})
		state.actor.scheduleSlotBoundary(ctx)

		state.actor.Become(CtrlRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CtrlRunningState struct {
	ActorState
	actor *ControlActor
}

func (state CtrlRunningState) Name() string {
	return "running"
}

func (state CtrlRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("control@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROL,
			Healthy: true,
			State:   state.actor.healthState(time.Now()),
		})
	case controlTick:
		state.actor.onControlTick(time.Now())
	case slotBoundaryTick:
		state.actor.onControlTick(time.Now())
		state.actor.scheduleSlotBoundary(ctx)
	case applyTick:
		state.actor.applyToDriver(ctx)
	case domain.ApplyOptimizationResult:
		state.actor.logger.Info("control@running: new optimization result",
			zap.String("source", string(msg.Result.Source)),
			zap.Int("slots", msg.Result.SlotCount))
		result := msg.Result
		request := msg.Request
		state.actor.result = &result
		state.actor.request = &request
		state.actor.lastSuccess = result.Timestamp
		state.actor.slotLoaded = false
		state.actor.onControlTick(time.Now())
		state.actor.publishPlanEvents(time.Now())
	case domain.BatteryStateUpdate:
		state.actor.base.SetBatteryState(msg.SOCPercent, msg.DynamicMaxChargeW)
		state.actor.base.SetEVCharging(msg.EVFastCharging)
	case domain.SetOverrideRequest:
		state.actor.logger.Debug("control@running: SetOverrideRequest", zap.Int("mode", msg.Mode))
		override, err := state.actor.base.SetOverride(msg.Mode, msg.GridChargePowerW, msg.DurationMinutes, time.Now())
		ForRequest(msg).Respond(ctx, domain.SetOverrideResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Override: override,
		})
		if err == nil {
			state.actor.base.Recompute()
			state.actor.publishControlEvents(true)
			state.actor.applyToDriver(ctx)
		}
	case domain.ClearOverrideRequest:
		state.actor.logger.Debug("control@running: ClearOverrideRequest")
		state.actor.base.ClearOverride()
		ForRequest(msg).Respond(ctx, domain.ClearOverrideResponse{})
		state.actor.base.Recompute()
		state.actor.publishControlEvents(true)
		state.actor.applyToDriver(ctx)
	case domain.GetDemandRequest:
		ForRequest(msg).Respond(ctx, domain.GetDemandResponse{
			Demand: state.actor.base.Demand(),
			Mode:   state.actor.base.Mode(),
		})
	case domain.GetOverrideRequest:
		ForRequest(msg).Respond(ctx, domain.GetOverrideResponse{
			Override: state.actor.base.Override(),
		})
	case domain.GetOptimizationSnapshotRequest:
		ForRequest(msg).Respond(ctx, domain.GetOptimizationSnapshotResponse{
			Result:      state.actor.result,
			Request:     state.actor.request,
			LastSuccess: state.actor.lastSuccess,
		})
	case domain.ApplyControlResponse:
		// driver failures leave the previously commanded state in place;
		// the next apply tick retries
		if msg.HasResponseError() {
			state.actor.logger.Error("control@running: apply failed", zap.Error(msg.GetResponseError()))
		}
	default:
		state.actor.logger.Debug("control@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// healthState reports "running" while the plan is fresh and "degraded" once
// the last successful optimization is older than two refresh intervals. A
// stale plan never fails the health check.
func (state *ControlActor) healthState(now time.Time) string {
	if state.lastSuccess.IsZero() {
		return "running"
	}
	staleAfter := 2 * time.Duration(state.config.Optimizer.RefreshIntervalMinutes) * time.Minute
	if now.Sub(state.lastSuccess) > staleAfter {
		return "degraded"
	}
	return "running"
}

// scheduleSlotBoundary arms a one-shot wakeup at the next plan slot
// boundary so slot transitions land on time even when the regular tick
// fires just before the boundary.
func (state *ControlActor) scheduleSlotBoundary(ctx actor.Context) {
	next := service.NextSlotStart(time.Now(), state.config.Optimizer.ResolutionSeconds)
	state.scheduler.SendOnce(time.Until(next), ctx.Self(), slotBoundaryTick{})
}

// onControlTick runs the fast control cycle: expire the override, load the
// plan slot covering now, recompute the demand and surface changes.
func (state *ControlActor) onControlTick(now time.Time) {
	state.base.Tick(now)
	state.refreshSlot(now)
	state.base.Recompute()
	state.publishControlEvents(false)
}

func (state *ControlActor) refreshSlot(now time.Time) {
	if state.result == nil {
		return
	}
	idx, ok := state.result.SlotAt(now)
	if !ok {
		// plan window exhausted: release to the inverter's own strategy
		if state.slotLoaded {
			state.logger.Warn("optimization plan exhausted, releasing control",
				zap.Time("plan_start", state.result.Start))
			state.base.SetOptimizerSlot(0, 1, true)
			state.slotLoaded = false
		}
		return
	}
	if !state.slotLoaded || idx != state.currentSlot {
		state.currentSlot = idx
		state.slotLoaded = true
		state.base.SetOptimizerSlot(
			state.result.ACCharge[idx],
			state.result.DCCharge[idx],
			state.result.DischargeAllowed[idx])
		state.logger.Debug("control slot loaded", zap.Int("slot", idx),
			zap.Float64("ac_charge", state.result.ACCharge[idx]),
			zap.Bool("discharge_allowed", state.result.DischargeAllowed[idx]))
	}
}

// applyToDriver sends the resolved mode and bounded power to the driver
// actor. The response comes back as a plain message; errors are logged and
// the previous hardware state is assumed to hold.
func (state *ControlActor) applyToDriver(ctx actor.Context) {
	mode := state.base.ResolveMode()
	powerW := state.base.ComputeACChargePower()
	ctx.Request(state.driverActor, domain.ApplyControlRequest{
		Mode:   mode,
		PowerW: powerW,
	})
}

// publishControlEvents pushes demand/override sensor updates to the event
// stream, suppressing no-op updates unless forced.
func (state *ControlActor) publishControlEvents(force bool) {
	demand := state.base.Demand()
	mode := state.base.Mode()
	if !force && state.lastPublishedDemand != nil &&
		*state.lastPublishedDemand == demand && state.lastPublishedMode == mode {
		return
	}
	state.lastPublishedDemand = &demand
	state.lastPublishedMode = mode

	for _, ev := range events.DemandToUpdateEvents(demand, mode) {
		state.sink.Publish(ev)
	}
	for _, ev := range events.OverrideToUpdateEvents(state.base.Override()) {
		state.sink.Publish(ev)
	}
}

func (state *ControlActor) publishPlanEvents(now time.Time) {
	for _, ev := range events.PlanToUpdateEvents(state.result, now) {
		state.sink.Publish(ev)
	}
	if state.result != nil {
		state.publishSnapshot("result", state.result)
	}
	if state.request != nil {
		state.publishSnapshot("request", state.request)
	}
}

// publishSnapshot pushes the retained JSON record of the last optimization
// exchange. Marshal failures are logged, never fatal.
func (state *ControlActor) publishSnapshot(kind string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		state.logger.Error("control: could not marshal snapshot", zap.String("kind", kind), zap.Error(err))
		return
	}
	state.sink.Publish(domain.SnapshotUpdateEvent{
		Kind: kind,
		JSON: string(payload),
	})
}
