package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"
	. "github.com/greenwire-dev/optibridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// minOptimizeSleep is the floor for the adaptive refresh interval: however
// slow the backend gets, cycles never run closer together than this.
const minOptimizeSleep = 30 * time.Second

// OptimizerActor drives the periodic optimization cycle: build the request
// from the forecast ports, submit it to the backend, normalize the response
// and hand the plan to the control actor. A failed cycle leaves the control
// actor on its previous plan.
type OptimizerActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	stash        *Stash
	controlActor *actor.PID

	backend    port.OptimizationBackend
	builder    *service.RequestBuilder
	normalizer *service.Normalizer

	refreshInterval time.Duration
	requestTimeout  time.Duration
	avgRTT          time.Duration

	logger *zap.Logger
}

type optimizeTick struct {
}

type optimizationOutcome struct {
	result  domain.OptimizationResult
	request domain.OptimizationRequest
	rtt     time.Duration
	err     error
}

func NewOptimizerActor(cfg *config.Config, controlActor *actor.PID, backend port.OptimizationBackend,
	builder *service.RequestBuilder, logger *zap.Logger) *OptimizerActor {
	act := &OptimizerActor{
		controlActor:    controlActor,
		backend:         backend,
		builder:         builder,
		normalizer:      service.NewNormalizer(cfg.Battery.MaxChargePower, cfg.Optimizer.ResolutionSeconds),
		refreshInterval: time.Duration(cfg.Optimizer.RefreshIntervalMinutes) * time.Minute,
		requestTimeout:  time.Duration(cfg.Optimizer.TimeoutSeconds) * time.Second,
		stash:           &Stash{},
		logger:          ActorLogger(domain.ACTOR_ID_OPTIMIZER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(OptIdleState{
		actor: act,
	})
	return act
}

func (state *OptimizerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type OptIdleState struct {
	ActorState
	actor *OptimizerActor
}

func (state OptIdleState) Name() string {
	return "idle"
}

func (state OptIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("optimizer@idle started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		// first cycle runs right away
		ctx.Send(ctx.Self(), optimizeTick{})
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("optimizer@idle: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OPTIMIZER,
			Healthy: true,
			State:   state.Name(),
		})
	case optimizeTick:
		state.actor.logger.Debug("optimizer@idle optimizeTick")
		state.actor.startCycle(ctx)
		state.actor.Become(OptOptimizingState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("optimizer@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Optimizing state

type OptOptimizingState struct {
	ActorState
	actor *OptimizerActor
}

func (state OptOptimizingState) Name() string {
	return "optimizing"
}

func (state OptOptimizingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("optimizer@optimizing: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OPTIMIZER,
			Healthy: true,
			State:   state.Name(),
		})
	case optimizationOutcome:
		if msg.err != nil {
			// keep the control actor's previous plan; retry next cycle
			state.actor.logger.Error("optimizer@optimizing: cycle failed", zap.Error(msg.err))
		} else {
			state.actor.logger.Info("optimizer@optimizing: cycle done",
				zap.Duration("rtt", msg.rtt), zap.Int("slots", msg.result.SlotCount))
			state.actor.observeRTT(msg.rtt)
			ctx.Send(state.actor.controlActor, domain.ApplyOptimizationResult{
				Result:  msg.result,
				Request: msg.request,
			})
		}
		sleep := state.actor.nextSleep()
		state.actor.logger.Debug("optimizer@optimizing: next cycle scheduled", zap.Duration("sleep", sleep))
		state.actor.scheduler.SendOnce(sleep, ctx.Self(), optimizeTick{})
		state.actor.Become(OptIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("optimizer@optimizing: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state *OptimizerActor) startCycle(ctx actor.Context) {
	backend := state.backend
	builder := state.builder
	normalizer := state.normalizer
	timeout := state.requestTimeout

	task := NewBackgroundTaskNoError(ctx, func() *optimizationOutcome {
		now := time.Now()
		taskCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		req, err := builder.Build(taskCtx, now)
		if err != nil {
			return &optimizationOutcome{err: err}
		}
		started := time.Now()
		raw, err := backend.Submit(taskCtx, req, req.Start.Hour())
		rtt := time.Since(started)
		if err != nil {
			return &optimizationOutcome{err: err, rtt: rtt}
		}
		result, err := normalizer.Normalize(raw, backend.Kind(), now)
		if err != nil {
			return &optimizationOutcome{err: err, rtt: rtt}
		}
		return &optimizationOutcome{result: result, request: req, rtt: rtt}
	}).Recover(func(err error) optimizationOutcome {
		return optimizationOutcome{err: err}
	}).WithTimeout(timeout + 5*time.Second)
	// a cycle can take minutes; keep the mailbox free so health checks
	// still get answered while the backend solves
	go task.PipeTo(ctx.Self())
}

// observeRTT keeps a smoothed round-trip time of successful cycles.
func (state *OptimizerActor) observeRTT(rtt time.Duration) {
	if state.avgRTT == 0 {
		state.avgRTT = rtt
		return
	}
	state.avgRTT = (state.avgRTT*3 + rtt) / 4
}

// nextSleep subtracts the average cycle cost from the configured refresh
// interval so plans land near slot boundaries, clamped to a safe floor.
func (state *OptimizerActor) nextSleep() time.Duration {
	sleep := state.refreshInterval - state.avgRTT
	if sleep < minOptimizeSleep {
		sleep = minOptimizeSleep
	}
	return sleep
}
