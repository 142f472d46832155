// Package estimator wires the attitude fusion engine (internal/attitude)
// into the periodic task described in spec §4.1: flight-status lookup,
// startup-phase gain overrides, watchdog pings, alarm reporting, and
// publishing the raw/actual objects each cycle.
package estimator

import "github.com/relabs-tech/attitude-estimator/internal/attitude"

// AttitudeRaw is the wire shape of §6's "Produced: AttitudeRaw". The
// diagnostic FIFO counts ride in Gyrotemp, exactly the overloaded slot
// the original source abuses for the same purpose (§9).
type AttitudeRaw struct {
	Accels   [3]float64 `json:"accels"`
	Gyros    [3]float64 `json:"gyros"`
	Gyrotemp [2]float64 `json:"gyrotemp"` // [0]=samples_remaining, [1]=sample_count
}

// AttitudeActual is the wire shape of §6's "Produced: AttitudeActual".
type AttitudeActual struct {
	Q1    float64 `json:"q1"`
	Q2    float64 `json:"q2"`
	Q3    float64 `json:"q3"`
	Q4    float64 `json:"q4"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

func rawMessage(r attitude.RawObservation) AttitudeRaw {
	return AttitudeRaw{
		Accels:   [3]float64{r.Accel.X, r.Accel.Y, r.Accel.Z},
		Gyros:    [3]float64{r.Gyro.X, r.Gyro.Y, r.Gyro.Z},
		Gyrotemp: [2]float64{float64(r.SamplesRemaining), float64(r.SampleCount)},
	}
}

func actualMessage(o attitude.AttitudeOutput) AttitudeActual {
	return AttitudeActual{
		Q1:    o.Quaternion.W,
		Q2:    o.Quaternion.X,
		Q3:    o.Quaternion.Y,
		Q4:    o.Quaternion.Z,
		Roll:  o.RPY.Roll,
		Pitch: o.RPY.Pitch,
		Yaw:   o.RPY.Yaw,
	}
}

// Publisher delivers each cycle's outputs to whatever sits downstream
// (MQTT in production, a slice in tests).
type Publisher interface {
	PublishRaw(AttitudeRaw)
	PublishActual(AttitudeActual)
}
