package attitude

import "sync"

// Settings mirrors the AttitudeSettings object of §3: the fields mutated
// by the settings-change callback and read once per cycle by the
// estimator task.
type Settings struct {
	AccelKp      float64
	AccelKi      float64
	YawBiasRate  float64
	GyroGain     float64
	AccelBias    Vec3 // raw accel-count offset
	GyroBiasSeed Vec3 // persisted bias; divided by 100 to seed gyro_bias

	BoardRotationRPY RPY // body-to-board Euler angles, degrees

	ZeroDuringArming bool
	BiasCorrectGyro  bool
}

// DefaultSettings mirrors the original module's compile-time defaults
// (AttitudeStart/AttitudeInitialize before any settings object write).
func DefaultSettings() Settings {
	return Settings{
		GyroGain: 0.42,
	}
}

// Store holds the live settings snapshot plus subscriber callbacks,
// modeling the "typed key/value store with change callbacks" broadcast
// object framework described in spec §1 and §4.4. A single writer (the
// settings bus adapter) calls Set; any number of readers call Get.
// Set and Get copy the whole snapshot under a read/write lock, so a
// reader never sees a mix of old and new fields.
type Store struct {
	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// NewStore creates a settings store seeded with initial.
func NewStore(initial Settings) *Store {
	return &Store{current: initial}
}

// Get returns the current settings snapshot.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set installs a new settings snapshot and invokes every subscriber,
// exactly like the original's settingsUpdatedCb being invoked by the
// UAVObject broadcast framework whenever the object changes.
func (s *Store) Set(next Settings) {
	s.mu.Lock()
	s.current = next
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}

// Subscribe registers a callback invoked on every Set, and immediately
// invokes it once with the current snapshot (mirroring
// AttitudeSettingsConnectCallback's "call once to force an initial
// read", used in SPEC_FULL's startup forced-reload behavior).
func (s *Store) Subscribe(cb func(Settings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, cb)
	current := s.current
	s.mu.Unlock()
	cb(current)
}
