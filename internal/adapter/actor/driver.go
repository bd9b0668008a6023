package actor

import (
	"fmt"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	DRIVER_ACTOR_ID = domain.ACTOR_ID_DRIVER

	driverTaskTimeout = 5 * time.Second
)

// DriverActor serializes all hardware access. Commands and telemetry reads
// run as background tasks while the mailbox stashes everything else, so at
// most one Modbus transaction is in flight.
type DriverActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	driver   port.InverterDriver
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewDriverActor(driver port.InverterDriver, logger *zap.Logger) *DriverActor {
	act := &DriverActor{
		driver:   driver,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(DRIVER_ACTOR_ID, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DriverActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DriverActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("driver@starting started")
		if err := state.driver.Open(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.driver.Close()
	default:
		state.logger.Debug("driver@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DriverActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("driver@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      DRIVER_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.ApplyControlRequest:
		state.logger.Debug("driver@default: ApplyControlRequest",
			zap.Stringer("mode", msg.Mode), zap.Float64("power_w", msg.PowerW))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.ApplyControlResponse {
			a := state.applyControl(msg)
			return &a
		}),
			mapTaskResult[domain.ApplyControlResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ApplyControlResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(driverTaskTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDriver)
	case domain.GetTelemetryRequest:
		state.logger.Debug("driver@default: GetTelemetryRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getTelemetry),
			mapTaskResult[domain.GetTelemetryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(driverTaskTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDriver)
	case *actor.Stopping:
		state.driver.Close()
	default:
		state.logger.Debug("driver@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DriverActor) WaitingDriver(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("driver@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.driver.Close()
	default:
		state.logger.Debug("driver@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DriverActor) applyControl(msg domain.ApplyControlRequest) domain.ApplyControlResponse {
	err := state.driver.Apply(msg.Mode, msg.PowerW)
	if err != nil {
		state.logger.Error("apply control failed", zap.Error(err))
		return domain.ApplyControlResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.ApplyControlResponse{}
}

func (state *DriverActor) getTelemetry() (*domain.GetTelemetryResponse, error) {
	telemetry, err := state.driver.ReadTelemetry()
	if err != nil {
		state.logger.Error("read telemetry failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetTelemetryResponse{
		Telemetry: telemetry,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
