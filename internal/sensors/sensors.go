package sensors

import (
	"errors"

	"compass-ng/internal/geom"
)

// Errors shared by magnetometer implementations. Drivers wrap them with %w;
// any other error from Read or SelfTest is a bus failure.
var (
	// ErrSaturated means at least one axis overflowed. Transient: retry on
	// the next cycle.
	ErrSaturated = errors.New("sensor saturated")
	// ErrSelfTest means the self-test delta fell outside the data-sheet
	// limits.
	ErrSelfTest = errors.New("sensor self-test out of range")
)

// Magnetometer is a 3-axis magnetometer.
//
// Read returns a raw reading in sensor counts. SelfTest returns the
// self-test delta (reading with the internal bias field minus the ambient),
// used as the per-axis sensitivity reference for temperature compensation.
type Magnetometer interface {
	Read() (geom.Position, error)
	SelfTest() (geom.Position, error)
}

// IsBusError reports whether err is neither nil nor one of the sensor
// condition errors above.
func IsBusError(err error) bool {
	return err != nil && !errors.Is(err, ErrSaturated) && !errors.Is(err, ErrSelfTest)
}
