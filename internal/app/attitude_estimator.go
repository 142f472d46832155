package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude-estimator/internal/attitude"
	"github.com/relabs-tech/attitude-estimator/internal/config"
	"github.com/relabs-tech/attitude-estimator/internal/estimator"
	"github.com/relabs-tech/attitude-estimator/internal/flightstatus"
	"github.com/relabs-tech/attitude-estimator/internal/logging"
	"github.com/relabs-tech/attitude-estimator/internal/platform"
	"github.com/relabs-tech/attitude-estimator/internal/sensors"
	"github.com/relabs-tech/attitude-estimator/internal/settingsbus"
)

// RunAttitudeEstimator wires the sensor source, fusion engine, settings
// bus, flight-status bus, and MQTT publishing into the periodic task of
// spec §4.1, then blocks until interrupted.
func RunAttitudeEstimator() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	logging.Log.Info().Str("broker", cfg.MQTTBroker).Msg("attitude estimator connected to MQTT broker")

	reader, err := sensors.NewIMUSourceLeft()
	if err != nil {
		return err
	}

	period := time.Duration(cfg.AttitudeUpdatePeriodMS) * time.Millisecond
	source := sensors.NewAttitudeSource(reader, period)
	defer source.Close()

	initial := cfg.AttitudeSettings()
	if cfg.AttitudeBiasSeedFile != "" {
		seed, err := attitude.LoadBiasSeed(cfg.AttitudeBiasSeedFile)
		if err != nil {
			logging.Log.Warn().Err(err).Msg("attitude estimator: load bias seed")
		} else if seed != (attitude.BiasSeed{}) {
			initial = seed.Apply(initial)
		}
	}
	store := attitude.NewStore(initial)
	if err := settingsbus.Subscribe(client, cfg.TopicAttitudeSettings, store); err != nil {
		return err
	}

	engine := attitude.NewEngine()
	store.Subscribe(engine.ApplySettings)

	status := flightstatus.NewStatus()
	if err := flightstatus.Subscribe(client, cfg.TopicFlightStatus, status); err != nil {
		return err
	}

	task := &estimator.Task{
		Engine:   engine,
		Gyro:     source,
		Accel:    source,
		Settings: store,
		Status:   status,
		Clock:    platform.NewSystemClock(),
		Watchdog: platform.NopWatchdog{},
		Alarms:   platform.NewMQTTAlarmSink(client, cfg.TopicAttitudeAlarm),
		Publish: &estimator.MQTTPublisher{
			Client:      client,
			RawTopic:    cfg.TopicAttitudeRaw,
			ActualTopic: cfg.TopicAttitudeActual,
		},
		UpdatePeriod:     period,
		TicksPerSecond:   1000,
		BiasSeedPath:     cfg.AttitudeBiasSeedFile,
		BiasSeedInterval: 30 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Log.Info().Dur("period", period).Msg("attitude estimator task starting")
	return task.Run(ctx)
}
