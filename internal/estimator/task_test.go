package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/attitude-estimator/internal/attitude"
)

// baseSettings are the non-startup gains a normal boot settles on once
// the startup window has been exited.
func baseSettings() attitude.Settings {
	return attitude.Settings{
		AccelKp:     0.5,
		AccelKi:     0.01,
		YawBiasRate: 0,
	}
}

func TestApplyStartupPolicyOverridesWithinWindow(t *testing.T) {
	task := &Task{}
	settings := baseSettings()

	// Before the window: normal gains.
	out := task.applyStartupPolicy(settings, 500, false)
	assert.Equal(t, settings.AccelKp, out.AccelKp)

	// Just inside the window: override gains apply.
	out = task.applyStartupPolicy(settings, 1001, false)
	assert.Equal(t, startupAccelKp, out.AccelKp)
	assert.Equal(t, startupAccelKi, out.AccelKi)
	assert.Equal(t, startupYawBiasRate, out.YawBiasRate)

	// Still inside the window many cycles later: override still applies
	// (this is the behavior the !t.init gate used to defeat after the
	// first cycle latched t.init to true).
	out = task.applyStartupPolicy(settings, 6999, false)
	assert.Equal(t, startupAccelKp, out.AccelKp)

	// At and beyond the boundary ticks: window is open, so the boundary
	// itself no longer overrides.
	out = task.applyStartupPolicy(settings, startupWindowStartMS, false)
	assert.Equal(t, settings.AccelKp, out.AccelKp)

	out = task.applyStartupPolicy(settings, startupWindowEndMS, false)
	assert.Equal(t, settings.AccelKp, out.AccelKp)

	// After the window: normal gains resume.
	out = task.applyStartupPolicy(settings, 8000, false)
	assert.Equal(t, settings.AccelKp, out.AccelKp)
	assert.Equal(t, settings.AccelKi, out.AccelKi)
	assert.Equal(t, settings.YawBiasRate, out.YawBiasRate)
}

func TestApplyStartupPolicyArmingOverridesWhenZeroDuringArming(t *testing.T) {
	task := &Task{}
	settings := baseSettings()
	settings.ZeroDuringArming = true

	out := task.applyStartupPolicy(settings, 8000, true)
	assert.Equal(t, startupAccelKp, out.AccelKp)
	assert.Equal(t, startupAccelKi, out.AccelKi)
	assert.Equal(t, startupYawBiasRate, out.YawBiasRate)
}

func TestApplyStartupPolicyArmingIgnoredWithoutZeroDuringArming(t *testing.T) {
	task := &Task{}
	settings := baseSettings()
	settings.ZeroDuringArming = false

	out := task.applyStartupPolicy(settings, 8000, true)
	assert.Equal(t, settings.AccelKp, out.AccelKp)
}

func TestApplyStartupPolicyInitLatchesOnceOutsideWindow(t *testing.T) {
	task := &Task{}
	settings := baseSettings()

	task.applyStartupPolicy(settings, 2000, false)
	assert.False(t, task.init, "init must stay cleared while inside the startup window")

	task.applyStartupPolicy(settings, 8000, false)
	assert.True(t, task.init, "init latches once the window is exited")
}
