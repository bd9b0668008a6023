package actorutil

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// overridePayload is the JSON body accepted on the override command topic.
type overridePayload struct {
	Mode             int     `json:"mode"`
	GridChargePowerW float64 `json:"grid_charge_power_w"`
	DurationMinutes  int     `json:"duration_minutes"`
}

// ParsedMQTTCommandToCommand maps an MQTT command to the control actor
// request it stands for. Unknown commands map to nil without error.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch {
	case cmd.DeviceId == mqtt.DEVICE_ID_OVERRIDE && cmd.Command == "switch":
		// switching the override off returns to automatic; "on" without a
		// full override body is meaningless and ignored
		if cmd.Payload == mqtt.MQTT_PAYLOAD_OFF {
			return domain.ClearOverrideRequest{}, nil
		}
		return nil, nil
	case cmd.DeviceId == mqtt.DEVICE_ID_OVERRIDE && cmd.Command == "set":
		var payload overridePayload
		if err := json.Unmarshal([]byte(cmd.Payload), &payload); err != nil {
			return nil, err
		}
		return domain.SetOverrideRequest{
			Mode:             payload.Mode,
			GridChargePowerW: payload.GridChargePowerW,
			DurationMinutes:  payload.DurationMinutes,
		}, nil
	}
	return nil, nil
}
