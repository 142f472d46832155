package attitude

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BiasSeed is the on-disk snapshot of the learned gyro bias and board
// rotation, written periodically so a restart doesn't relearn them from
// a cold zero, the persisted counterpart to GyroBiasSeed/BoardRotationRPY.
type BiasSeed struct {
	GyroBiasSeedX float64 `yaml:"gyro_bias_seed_x"`
	GyroBiasSeedY float64 `yaml:"gyro_bias_seed_y"`
	GyroBiasSeedZ float64 `yaml:"gyro_bias_seed_z"`
	BoardRotRoll  float64 `yaml:"board_rotation_roll"`
	BoardRotPitch float64 `yaml:"board_rotation_pitch"`
	BoardRotYaw   float64 `yaml:"board_rotation_yaw"`
}

// LoadBiasSeed reads a persisted snapshot from path. A missing file is
// not an error: it just means there's nothing to seed from yet.
func LoadBiasSeed(path string) (BiasSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BiasSeed{}, nil
		}
		return BiasSeed{}, errors.Wrap(err, "read bias seed file")
	}
	var seed BiasSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return BiasSeed{}, errors.Wrap(err, "decode bias seed file")
	}
	return seed, nil
}

// SaveBiasSeed writes the current engine bias/rotation state to path.
func SaveBiasSeed(path string, seed BiasSeed) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(seed); err != nil {
		return errors.Wrap(err, "encode bias seed file")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "close bias seed encoder")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write bias seed file")
	}
	return nil
}

// Apply folds a loaded seed into a settings snapshot, used at startup
// before the first settings-bus message arrives.
func (b BiasSeed) Apply(s Settings) Settings {
	s.GyroBiasSeed = Vec3{X: b.GyroBiasSeedX, Y: b.GyroBiasSeedY, Z: b.GyroBiasSeedZ}
	s.BoardRotationRPY = RPY{Roll: b.BoardRotRoll, Pitch: b.BoardRotPitch, Yaw: b.BoardRotYaw}
	return s
}

// Snapshot captures the engine's current bias/rotation as a BiasSeed.
func (e *Engine) Snapshot() BiasSeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BiasSeed{
		GyroBiasSeedX: e.gyroBias.X * 100,
		GyroBiasSeedY: e.gyroBias.Y * 100,
		GyroBiasSeedZ: e.gyroBias.Z * 100,
		BoardRotRoll:  e.rpy.Roll,
		BoardRotPitch: e.rpy.Pitch,
		BoardRotYaw:   e.rpy.Yaw,
	}
}
