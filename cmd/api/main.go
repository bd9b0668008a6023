package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/greenwire-dev/optibridge/internal/adapter/actor"
	"github.com/greenwire-dev/optibridge/internal/adapter/backend"
	"github.com/greenwire-dev/optibridge/internal/adapter/driver"
	"github.com/greenwire-dev/optibridge/internal/adapter/forecast"
	"github.com/greenwire-dev/optibridge/internal/config"
	"github.com/greenwire-dev/optibridge/internal/core/actor"
	"github.com/greenwire-dev/optibridge/internal/core/domain"
	"github.com/greenwire-dev/optibridge/internal/core/port"
	"github.com/greenwire-dev/optibridge/internal/core/service"
	"github.com/greenwire-dev/optibridge/internal/server"
	"github.com/greenwire-dev/optibridge/internal/util/actorutil"
	"github.com/greenwire-dev/optibridge/pkg/storctl"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("optibridge", "version", versioninfo.Short())
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// forecast collaborators: HTTP client behind a refreshing cache
	forecastClient := forecast.NewHTTPClient(cfg.Forecast)
	forecastCache := forecast.NewCache(forecastClient, forecastClient, forecastClient,
		cfg.Optimizer.ResolutionSeconds, logger)
	if err := forecastCache.Start(context.Background(), time.Duration(cfg.Forecast.RefreshCronMinutes)*time.Minute); err != nil {
		logger.Error("could not start forecast cache", zap.Error(err))
		return
	}
	defer forecastCache.Stop()

	builder := service.NewRequestBuilder(forecastCache, forecastCache, forecastCache, forecastClient,
		service.BatteryParams{
			CapacityWh:        cfg.Battery.CapacityWh,
			MaxChargeW:        cfg.Battery.MaxChargePower,
			MaxDischargeW:     cfg.Battery.MaxDischargePower,
			MinSOCPercent:     cfg.Battery.MinSOCPercent,
			MaxSOCPercent:     cfg.Battery.MaxSOCPercent,
			InverterMaxPowerW: cfg.Battery.InverterMaxPower,
		}, cfg.Optimizer.ResolutionSeconds, logger)

	optBackend, err := optimizationBackend(cfg, logger)
	if err != nil {
		logger.Error("could not create optimizer backend", zap.Error(err))
		return
	}

	// init Driver actor provider
	driverProv, err := driverActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, driverProv, mqttActorProvider(cfg, logger), optBackend, builder, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => OPTIBRIDGE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("OPTIBRIDGE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("optibridge")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Optimizer.Backend != "eos" && cfg.Optimizer.Backend != "evopt" {
		return nil, errors.New("config param optimizer.backend should be \"eos\" or \"evopt\"")
	}
	if cfg.Optimizer.ResolutionSeconds != 900 && cfg.Optimizer.ResolutionSeconds != 3600 {
		return nil, errors.New("config param optimizer.resolution_seconds should be 900 or 3600")
	}
	if cfg.Optimizer.RefreshIntervalMinutes < 1 {
		return nil, errors.New("config param optimizer.refresh_interval_minutes should be >= 1")
	}
	if cfg.Control.TickIntervalMillis < 1000 {
		return nil, errors.New("config param control.tick_interval_millis should be >= 1000")
	}
	if cfg.Control.ApplyIntervalMillis < 1000 {
		return nil, errors.New("config param control.apply_interval_millis should be >= 1000")
	}
	if cfg.Control.TelemetryIntervalMillis < 1000 {
		return nil, errors.New("config param control.telemetry_interval_millis should be >= 1000")
	}
	if cfg.Battery.MaxChargePower <= 0 {
		return nil, errors.New("config param battery.max_charge_power should be > 0")
	}
	if cfg.Battery.MaxGridChargePower <= 0 {
		return nil, errors.New("config param battery.max_grid_charge_power should be > 0")
	}
	if cfg.Forecast.RefreshCronMinutes < 1 {
		return nil, errors.New("config param forecast.refresh_cron_minutes should be >= 1")
	}

	return &cfg, nil
}

func optimizationBackend(cfg *config.Config, logger *zap.Logger) (port.OptimizationBackend, error) {
	switch cfg.Optimizer.Backend {
	case "eos":
		return backend.NewEOSBackend(cfg.Optimizer, logger), nil
	case "evopt":
		return backend.NewEVoptBackend(cfg.Optimizer, logger), nil
	}
	return nil, fmt.Errorf("unknown optimizer backend %q", cfg.Optimizer.Backend)
}

func driverActorProvider(cfg *config.Config, logger *zap.Logger) (actor.DriverActorProvider, error) {

	client, err := storctl.CreateStorageControlModbusClient(cfg.Inverter.Host,
		cfg.Inverter.Port, uint8(cfg.Inverter.UnitId), 1*time.Second, logger, nil)
	if err != nil {
		return nil, err
	}

	storageDriver := driver.NewStorageDriver(client, cfg.Inverter, logger)

	return func() *adactor.DriverActor {
		return adactor.NewDriverActor(storageDriver, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "optibridge")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("optimizer.backend", "eos")
	viper.SetDefault("optimizer.timeout_seconds", 120)
	viper.SetDefault("optimizer.refresh_interval_minutes", 15)
	viper.SetDefault("optimizer.resolution_seconds", 3600)
	viper.SetDefault("battery.min_soc_percent", 5)
	viper.SetDefault("battery.max_soc_percent", 100)
	viper.SetDefault("battery.default_charge_cost_per_wh", 0)
	viper.SetDefault("control.tick_interval_millis", 1000)
	viper.SetDefault("control.apply_interval_millis", 20000)
	viper.SetDefault("control.telemetry_interval_millis", 15000)
	viper.SetDefault("forecast.refresh_cron_minutes", 15)
	viper.SetDefault("forecast.timeout_seconds", 30)
	viper.SetDefault("inverter.unit_id", 1)
	viper.SetDefault("inverter.read_delay_after_change_millis", 2000)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
