package attitude

import "github.com/pkg/errors"

// Sentinel errors returned by UpdateSensors. Callers distinguish them
// with errors.Is; both are wrapped at the call site (errors.Wrap for
// ErrSensorTimeout, errors.WithStack for ErrAccelEmpty) so a stack trace
// is attached without losing the sentinel identity.
var (
	// ErrSensorTimeout is returned when the gyro queue yields nothing
	// within 2x the update period (§4.2 step 1, §7).
	ErrSensorTimeout = errors.New("attitude: gyro sensor timeout")

	// ErrAccelEmpty is returned when the accelerometer FIFO reports zero
	// entries (§4.2 step 2, §7). Not an alarm condition.
	ErrAccelEmpty = errors.New("attitude: accelerometer fifo empty")
)
