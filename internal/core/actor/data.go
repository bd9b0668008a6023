package actor

import (
	"fmt"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/events"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	. "github.com/greenwire-dev/optibridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// DataActor polls inverter telemetry on a fixed interval, publishes it to
// the telemetry sink and feeds battery state into the control actor.
type DataActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	controlActor *actor.PID
	driverActor  *actor.PID
	sink         port.TelemetrySink

	pollInterval time.Duration
	lastReadAt   time.Time

	logger *zap.Logger
}

type telemetryTick struct {
}

func NewDataActor(cfg *config.Config, driverActor *actor.PID, controlActor *actor.PID,
	sink port.TelemetrySink, logger *zap.Logger) *DataActor {
	act := &DataActor{
		driverActor:  driverActor,
		controlActor: controlActor,
		sink:         sink,
		pollInterval: time.Duration(cfg.Control.TelemetryIntervalMillis) * time.Millisecond,
		logger:       ActorLogger(domain.ACTOR_ID_DATA, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(DataPollingState{
		actor: act,
	})
	return act
}

func (state *DataActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

type DataPollingState struct {
	ActorState
	actor *DataActor
}

func (state DataPollingState) Name() string {
	return "polling"
}

func (state DataPollingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("data@polling started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.scheduler.SendRepeatedly(0, state.actor.pollInterval, ctx.Self(), telemetryTick{})
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("data@polling: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DATA,
			Healthy: true,
			State:   state.Name(),
		})
	case telemetryTick:
		state.actor.logger.Debug("data@polling telemetryTick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.driverActor,
			domain.GetTelemetryRequest{}, state.actor.pollInterval), func(err error) any {
			return domain.GetTelemetryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.GetTelemetryResponse:
		if msg.HasResponseError() {
			// stale telemetry is surfaced by the read timestamp sensor only
			state.actor.logger.Error("data@polling: telemetry read failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.actor.onTelemetry(ctx, msg.Telemetry)
	default:
		state.actor.logger.Debug("data@polling: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DataActor) onTelemetry(ctx actor.Context, telemetry *domain.InverterTelemetry) {
	state.lastReadAt = telemetry.ReadAt

	ctx.Send(state.controlActor, domain.BatteryStateUpdate{
		SOCPercent:        telemetry.BatterySOCPercent,
		DynamicMaxChargeW: telemetry.DynamicMaxChargeW,
		EVFastCharging:    telemetry.EVFastCharging,
	})

	for _, ev := range events.TelemetryToUpdateEvents(telemetry) {
		state.sink.Publish(ev)
	}
}
