package estimator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/attitude-estimator/internal/attitude"
	"github.com/relabs-tech/attitude-estimator/internal/flightstatus"
	"github.com/relabs-tech/attitude-estimator/internal/logging"
	"github.com/relabs-tech/attitude-estimator/internal/platform"
)

const attitudeAlarmName = "Attitude"

// Startup-phase gain override constants (§4.1).
const (
	startupWindowStartMS = 1000
	startupWindowEndMS   = 7000
	startupAccelKp       = 1.0
	startupAccelKi       = 0.9
	startupYawBiasRate   = 0.23
)

// Task is the periodic estimator loop of §4.1. It owns no filter state
// directly (that lives in Engine); it only sequences acquisition,
// fusion, and publication, and tracks the one piece of its own state
// the spec calls out: the init latch, which records that the
// startup-phase gain override has been exited. The latch does not
// change which gains are used.
type Task struct {
	Engine   *attitude.Engine
	Gyro     attitude.GyroQueue
	Accel    attitude.AccelFIFO
	Settings *attitude.Store
	Status   *flightstatus.Status
	Clock    platform.Clock
	Watchdog platform.Watchdog
	Alarms   platform.AlarmSink
	Publish  Publisher

	// UpdatePeriod is the nominal cadence (§5: "2 ms" in the source;
	// configurable here since the ADC-rate driving it is a deployment
	// detail, not a filter constant).
	UpdatePeriod time.Duration

	// TicksPerSecond converts Clock's tick unit into seconds for dT
	// (§4.3). Clock here counts milliseconds, so this is 1000.
	TicksPerSecond float64

	// BiasSeedPath, when non-empty, is where the learned gyro bias and
	// board rotation are periodically snapshotted so a restart seeds
	// from the last known state instead of a cold zero.
	BiasSeedPath     string
	BiasSeedInterval time.Duration

	init bool
}

// Run blocks until ctx is cancelled. It first waits for the first
// accelerometer sample (§7 StartupStall, §9 "Supplemented features"
// #2), forces one settings reload (§9 "Supplemented features" #1),
// then drives the per-cycle loop forever.
func (t *Task) Run(ctx context.Context) error {
	if err := t.awaitFirstAccelSample(ctx); err != nil {
		return err
	}

	// Force settings update to make sure board rotation loaded before
	// the first cycle runs, mirroring the original's explicit call to
	// settingsUpdatedCb before entering its main loop.
	t.Engine.ApplySettings(t.Settings.Get())

	ticker := time.NewTicker(t.UpdatePeriod)
	defer ticker.Stop()

	var saveTicker *time.Ticker
	var saveC <-chan time.Time
	if t.BiasSeedPath != "" && t.BiasSeedInterval > 0 {
		saveTicker = time.NewTicker(t.BiasSeedInterval)
		defer saveTicker.Stop()
		saveC = saveTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.runCycle()
		case <-saveC:
			if err := attitude.SaveBiasSeed(t.BiasSeedPath, t.Engine.Snapshot()); err != nil {
				logging.Log.Warn().Err(err).Msg("estimator: save bias seed")
			}
		}
	}
}

func (t *Task) awaitFirstAccelSample(ctx context.Context) error {
	t.Alarms.SetAlarm(attitudeAlarmName, platform.AlarmCritical)
	for t.Accel.FIFOElements() == 0 {
		t.Watchdog.Ping()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

func (t *Task) runCycle() {
	t.Watchdog.Ping()

	armed := t.Status.IsArming()
	settings := t.applyStartupPolicy(t.Settings.Get(), t.Clock.Ticks(), armed)

	raw, err := t.Engine.UpdateSensors(t.Gyro, t.Accel, settings, 2*t.UpdatePeriod)
	if err != nil {
		if errors.Is(err, attitude.ErrSensorTimeout) {
			t.Alarms.SetAlarm(attitudeAlarmName, platform.AlarmError)
			logging.Log.Warn().Err(err).Msg("estimator: gyro sensor timeout")
		}
		// AccelEmpty and any other acquisition failure: skip fusion
		// this cycle without changing the alarm (§7).
		return
	}

	out := t.Engine.UpdateAttitude(raw, settings, t.Clock.Ticks(), t.TicksPerSecond)

	t.Publish.PublishRaw(rawMessage(raw))
	t.Publish.PublishActual(actualMessage(out))
	t.Alarms.SetAlarm(attitudeAlarmName, platform.AlarmClear)
}

// applyStartupPolicy implements §4.1's startup/arming gain override.
// Entry into the override is governed purely by the tick window (or
// arming), never by init; init only latches once the override has been
// exited, mirroring attitude.c's "init = 0" writes inside the branch
// and "init == 0" reload-once check outside it.
func (t *Task) applyStartupPolicy(settings attitude.Settings, nowTicks uint32, arming bool) attitude.Settings {
	inStartupWindow := nowTicks > startupWindowStartMS && nowTicks < startupWindowEndMS

	if inStartupWindow || (arming && settings.ZeroDuringArming) {
		settings.AccelKp = startupAccelKp
		settings.AccelKi = startupAccelKi
		settings.YawBiasRate = startupYawBiasRate
		t.init = false
		return settings
	}

	if !t.init {
		t.init = true
	}
	return settings
}
