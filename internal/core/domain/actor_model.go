package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_DRIVER       = "driver"
	ACTOR_ID_CONTROL      = "control"
	ACTOR_ID_OPTIMIZER    = "optimizer"
	ACTOR_ID_DATA         = "data"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Driver messages

type ApplyControlRequest struct {
	ActorRequestMixIn
	Mode   ControlMode
	PowerW float64
}

type ApplyControlResponse struct {
	ActorResponseMixIn
}

type GetTelemetryRequest struct {
	ActorRequestMixIn
}

type GetTelemetryResponse struct {
	ActorResponseMixIn
	Telemetry *InverterTelemetry
}

// Control messages

type GetDemandRequest struct {
	ActorRequestMixIn
}

type GetDemandResponse struct {
	ActorResponseMixIn
	Demand Demand
	Mode   ControlMode
}

type GetOverrideRequest struct {
	ActorRequestMixIn
}

type GetOverrideResponse struct {
	ActorResponseMixIn
	Override OverrideState
}

type SetOverrideRequest struct {
	ActorRequestMixIn
	Mode             int
	GridChargePowerW float64
	DurationMinutes  int
}

type SetOverrideResponse struct {
	ActorResponseMixIn
	Override OverrideState
}

type ClearOverrideRequest struct {
	ActorRequestMixIn
}

type ClearOverrideResponse struct {
	ActorResponseMixIn
}

// ApplyOptimizationResult commits a freshly normalized plan to the control
// actor, together with the request snapshot it was derived from.
type ApplyOptimizationResult struct {
	Result  OptimizationResult
	Request OptimizationRequest
}

// BatteryStateUpdate carries the data loop's battery/EV readings into the
// control actor.
type BatteryStateUpdate struct {
	SOCPercent        float64
	DynamicMaxChargeW float64
	EVFastCharging    bool
}

type GetOptimizationSnapshotRequest struct {
	ActorRequestMixIn
}

type GetOptimizationSnapshotResponse struct {
	ActorResponseMixIn
	Result      *OptimizationResult
	Request     *OptimizationRequest
	LastSuccess time.Time
}

// MQTT messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
