package attitude

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	gyroNeutralCount = 1665.0
	accelLSBScale    = 0.004
	gravity          = 9.81
	rejectLow        = 9.8
	rejectHigh       = 1.5 * 9.8
	fifoDrainCap     = 32
	reinitThreshold  = 1e-3
)

// RawObservation is AttitudeRaw (§6): the conditioned accel/gyro triple
// for the cycle plus FIFO drain diagnostics. The diagnostics are
// published in the field the original overloads for this purpose
// (gyrotemp); here they get their own names instead of riding along
// under a temperature-shaped field.
type RawObservation struct {
	Accel            Vec3
	Gyro             Vec3
	SamplesRemaining int
	SampleCount      int
}

// AttitudeOutput is AttitudeActual (§6): the propagated quaternion and
// its Euler-angle projection, always derived from the same q.
type AttitudeOutput struct {
	Quaternion Quaternion
	RPY        RPY
}

// Engine owns the filter state of §3: q, gyro_bias, R/rotate, and
// last_tick. q and last_tick are touched only by the estimator task
// (single writer, no lock needed); gyro_bias and the rotation pair are
// also read and written by UpdateSensors/UpdateAttitude on the task
// thread but can be rewritten by a settings-change callback on a
// different goroutine, so those fields are guarded by mu.
type Engine struct {
	mu       sync.Mutex
	gyroBias Vec3
	rot      Mat3
	rotate   bool
	rpy      RPY // last applied BoardRotationRPY, kept for Snapshot

	q        Quaternion
	lastTick uint32
}

// NewEngine returns an engine in its power-on state: q = identity,
// biases zero, R = identity (§3 Lifecycle).
func NewEngine() *Engine {
	return &Engine{
		rot: IdentityMat3,
		q:   IdentityQuaternion,
	}
}

// Quaternion returns the current attitude estimate.
func (e *Engine) Quaternion() Quaternion {
	return e.q
}

// ApplySettings is the settings-update handler of §4.4. It reseeds the
// gyro bias from the persisted seed and recomputes the rotation pair.
func (e *Engine) ApplySettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gyroBias = s.GyroBiasSeed.Scale(1.0 / 100)
	e.rpy = s.BoardRotationRPY

	if s.BoardRotationRPY == (RPY{}) {
		e.rotate = false
		e.rot = IdentityMat3
		return
	}

	// Clear rotate before the matrix is replaced so a concurrent reader
	// of the pair never sees rotate=true paired with a stale R (§5).
	e.rotate = false
	e.rot = quatToR(rpyToQuat(s.BoardRotationRPY))
	e.rotate = true
}

// UpdateSensors implements §4.2: one blocking gyro receive, an
// accelerometer FIFO drain and average, sign/axis conditioning, optional
// board-rotation transform, accel scaling, gyro bias correction, and the
// yaw-bias pull.
func (e *Engine) UpdateSensors(gyroQ GyroQueue, accel AccelFIFO, settings Settings, timeout time.Duration) (RawObservation, error) {
	sample, err := gyroQ.Receive(timeout)
	if err != nil {
		return RawObservation{}, errors.Wrap(ErrSensorTimeout, err.Error())
	}

	if accel.FIFOElements() == 0 {
		return RawObservation{}, errors.WithStack(ErrAccelEmpty)
	}

	gyro := Vec3{
		X: -(sample.RawX - gyroNeutralCount) * settings.GyroGain,
		Y: (sample.RawY - gyroNeutralCount) * settings.GyroGain,
		Z: -(sample.RawZ - gyroNeutralCount) * settings.GyroGain,
	}

	var sum Vec3
	count := 0
	remaining := accel.FIFOElements()
	for count < fifoDrainCap && remaining > 0 {
		x, y, z, rem, err := accel.Read()
		if err != nil {
			return RawObservation{}, errors.Wrap(err, "read accel fifo")
		}
		sum.X += float64(x)
		sum.Y += -float64(y)
		sum.Z += -float64(z)
		count++
		remaining = rem
	}
	accelRaw := sum.Scale(1 / float64(count))

	e.mu.Lock()
	if e.rotate {
		accelRaw = rotMult(e.rot, accelRaw)
		gyro = rotMult(e.rot, gyro)
	}
	e.mu.Unlock()

	accelCond := Vec3{
		X: (accelRaw.X - settings.AccelBias.X) * accelLSBScale * gravity,
		Y: (accelRaw.Y - settings.AccelBias.Y) * accelLSBScale * gravity,
		Z: (accelRaw.Z - settings.AccelBias.Z) * accelLSBScale * gravity,
	}

	e.mu.Lock()
	if settings.BiasCorrectGyro {
		gyro = gyro.Add(e.gyroBias)
	}
	// Yaw-bias pull uses gz *after* the bias-correct addition above,
	// so the correction term feeds back into itself; preserved as-is.
	e.gyroBias.Z -= gyro.Z * settings.YawBiasRate
	e.mu.Unlock()

	return RawObservation{
		Accel:            accelCond,
		Gyro:             gyro,
		SamplesRemaining: remaining,
		SampleCount:      count,
	}, nil
}

// UpdateAttitude implements §4.3: the gravity-reference innovation, its
// linear-acceleration attenuation, PI bias/rate correction, and
// quaternion propagation with renormalization. now and ticksPerSecond
// drive the dT computation; ticksPerSecond converts the tick unit (e.g.
// milliseconds) into seconds.
func (e *Engine) UpdateAttitude(raw RawObservation, settings Settings, now uint32, ticksPerSecond float64) AttitudeOutput {
	var dT float64
	if now == e.lastTick {
		dT = 0.001
	} else {
		dT = float64(now-e.lastTick) / ticksPerSecond
	}
	e.lastTick = now

	q := e.q

	grot := Vec3{
		X: -(2 * (q.X*q.Z - q.W*q.Y)),
		Y: -(2 * (q.Y*q.Z + q.W*q.X)),
		Z: -(q.W*q.W - q.X*q.X - q.Y*q.Y + q.Z*q.Z),
	}

	accelErr := raw.Accel.Cross(grot)

	// Deliberately unnormalized: phi is a pseudo-angle, not the true
	// angle between accels and grot, since accels carries m/s^2
	// magnitude rather than unit length. Preserved per the source.
	phi := math.Acos(raw.Accel.Dot(grot))
	if n := accelErr.Norm(); n != 0 {
		accelErr = accelErr.Scale(phi / n)
	}

	aMag := raw.Accel.Norm()
	if aMag <= rejectLow || aMag > rejectHigh {
		accelErr = Vec3{}
	} else {
		displacement := math.Acos(rejectLow / aMag)
		if n := accelErr.Norm(); n != 0 {
			accelErr = accelErr.Sub(accelErr.Scale(displacement / n))
		}
	}

	e.mu.Lock()
	e.gyroBias.X += accelErr.X * settings.AccelKi
	e.gyroBias.Y += accelErr.Y * settings.AccelKi
	e.mu.Unlock()

	gyro := Vec3{
		X: raw.Gyro.X + accelErr.X*settings.AccelKp/dT,
		Y: raw.Gyro.Y + accelErr.Y*settings.AccelKp/dT,
		Z: raw.Gyro.Z + accelErr.Z*settings.AccelKp/dT,
	}

	s := dT * math.Pi / 360
	qdot := Quaternion{
		W: (-q.X*gyro.X - q.Y*gyro.Y - q.Z*gyro.Z) * s,
		X: (q.W*gyro.X - q.Z*gyro.Y + q.Y*gyro.Z) * s,
		Y: (q.Z*gyro.X + q.W*gyro.Y - q.X*gyro.Z) * s,
		Z: (-q.Y*gyro.X + q.X*gyro.Y + q.W*gyro.Z) * s,
	}

	q.W += qdot.W
	q.X += qdot.X
	q.Y += qdot.Y
	q.Z += qdot.Z

	if q.W < 0 {
		q = q.Negate()
	}

	qmag := q.Norm()
	if qmag < reinitThreshold || math.IsNaN(qmag) {
		q = IdentityQuaternion
	} else {
		q = q.Scale(1 / qmag)
	}

	e.q = q

	return AttitudeOutput{
		Quaternion: q,
		RPY:        quatToRPY(q),
	}
}
