package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/greenwire-dev/optibridge/internal/adapter/actor"
	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"
	. "github.com/greenwire-dev/optibridge/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// The shared event stream doubles as the telemetry sink for the control and
// data loops.
var _ port.TelemetrySink = (*eventstream.EventStream)(nil)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type DriverActorProvider func() *adactor.DriverActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	driverActor         *actor.PID
	mqttActor           *actor.PID
	controlActor        *actor.PID
	optimizerActor      *actor.PID
	dataActor           *actor.PID
	driverActorProvider DriverActorProvider
	mqttActorProvider   MQTTActorProvider
	backend             port.OptimizationBackend
	builder             *service.RequestBuilder
	logger              *zap.Logger
}

type healthCheckResult struct {
	driverActorHealthy    bool
	mqttActorHealthy      bool
	controlActorHealthy   bool
	optimizerActorHealthy bool
	dataActorHealthy      bool
	controlState          string
	checksReceived        int
	respondTo             *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, driverActorProvider DriverActorProvider,
	mqttActorProvider MQTTActorProvider, backend port.OptimizationBackend,
	builder *service.RequestBuilder, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		driverActorProvider: driverActorProvider,
		mqttActorProvider:   mqttActorProvider,
		backend:             backend,
		builder:             builder,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start Driver child
		driverActorPID, err := state.startDriverActor(ctx)
		if err != nil {
			panic(err)
		}
		state.driverActor = driverActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Control child
		controlActorPID, err := state.startControlActor(ctx)
		if err != nil {
			panic(err)
		}
		state.controlActor = controlActorPID

		// start Optimizer child
		optimizerActorPID, err := state.startOptimizerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.optimizerActor = optimizerActorPID

		// start Data child
		dataActorPID, err := state.startDataActor(ctx)
		if err != nil {
			panic(err)
		}
		state.dataActor = dataActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Driver Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.driverActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_DRIVER,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Control Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.controlActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CONTROL,
				Healthy: false,
			}
		})
		// Optimizer Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.optimizerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_OPTIMIZER,
				Healthy: false,
			}
		})
		// Data Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.dataActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_DATA,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the control actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default could not parse command", zap.Error(err))
			} else if cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.SetOverrideRequest:
					ctx.Send(state.controlActor, pcmd)
				case domain.ClearOverrideRequest:
					ctx.Send(state.controlActor, pcmd)
				}
			}
		}
	case domain.GetDemandRequest:
		ctx.RequestWithCustomSender(state.controlActor, msg, ctx.Sender())
	case domain.GetOverrideRequest:
		ctx.RequestWithCustomSender(state.controlActor, msg, ctx.Sender())
	case domain.SetOverrideRequest:
		ctx.RequestWithCustomSender(state.controlActor, msg, ctx.Sender())
	case domain.ClearOverrideRequest:
		ctx.RequestWithCustomSender(state.controlActor, msg, ctx.Sender())
	case domain.GetOptimizationSnapshotRequest:
		ctx.RequestWithCustomSender(state.controlActor, msg, ctx.Sender())
	case *actor.Terminated:
		// if the driver fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_DRIVER) {
			state.logger.Error("master@default driver error")
			panic(errors.New("driver terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_DRIVER:
				state.currentHealthCheck.driverActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_CONTROL:
				state.currentHealthCheck.controlActorHealthy = true
			case domain.ACTOR_ID_OPTIMIZER:
				state.currentHealthCheck.optimizerActorHealthy = true
			case domain.ACTOR_ID_DATA:
				state.currentHealthCheck.dataActorHealthy = true
			}
		}
		if msg.Id == domain.ACTOR_ID_CONTROL {
			state.currentHealthCheck.controlState = msg.State
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startDriverActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	driverProps := actor.PropsFromProducer(func() actor.Actor {
		return state.driverActorProvider()
	}, actor.WithSupervisor(supervisor))
	driverActorPID, err := ctx.SpawnNamed(driverProps, domain.ACTOR_ID_DRIVER)
	if err != nil {
		return nil, err
	}

	return driverActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startControlActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&state.config, state.driverActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	controlActorPID, err := ctx.SpawnNamed(controlProps, domain.ACTOR_ID_CONTROL)
	if err != nil {
		return nil, err
	}

	return controlActorPID, nil
}

func (state *MasterOfPuppetsActor) startOptimizerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	optimizerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewOptimizerActor(&state.config, state.controlActor, state.backend, state.builder, state.logger)
	}, actor.WithSupervisor(supervisor))
	optimizerActorPID, err := ctx.SpawnNamed(optimizerProps, domain.ACTOR_ID_OPTIMIZER)
	if err != nil {
		return nil, err
	}

	return optimizerActorPID, nil
}

func (state *MasterOfPuppetsActor) startDataActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	dataProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDataActor(&state.config, state.driverActor, state.controlActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	dataActorPID, err := ctx.SpawnNamed(dataProps, domain.ACTOR_ID_DATA)
	if err != nil {
		return nil, err
	}

	return dataActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.driverActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.driverActorHealthy = false
	state.mqttActorHealthy = false
	state.controlActorHealthy = false
	state.optimizerActorHealthy = false
	state.dataActorHealthy = false
	state.controlState = ""
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 5
}

func (state *healthCheckResult) allHealthy() bool {
	return state.driverActorHealthy && state.mqttActorHealthy &&
		state.controlActorHealthy && state.optimizerActorHealthy &&
		state.dataActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.controlState,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
