package validate

import (
	"strings"

	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
)

// Flags describe why an adjusted reading looks suspicious. They are advisory;
// a heading can still be computed.
type Flags uint8

const (
	// Tilt: the reading is too far out of the plane of rotation seen during
	// calibration.
	Tilt Flags = 1 << iota
	// Interference: the field magnitude is implausible for the Earth's field.
	Interference
)

func (f Flags) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	if f&Tilt != 0 {
		parts = append(parts, "tilt")
	}
	if f&Interference != 0 {
		parts = append(parts, "interference")
	}
	return strings.Join(parts, "|")
}

// DefaultTiltRatio is sin(20°) as a Fixed.
const DefaultTiltRatio fixedpt.Fixed = 0x02BC

// Limits bound a plausible adjusted reading. MagMin and MagMax are inclusive
// and expressed in sensor counts.
type Limits struct {
	TiltRatio fixedpt.Fixed
	MagMin    fixedpt.Fixed
	MagMax    fixedpt.Fixed
}

// DefaultLimits accepts 0.20 to 0.80 gauss at the given sensor gain, a little
// wider than the 0.25..0.65 G of the Earth's surface field.
func DefaultLimits(gainLSBPerGauss int) Limits {
	return Limits{
		TiltRatio: DefaultTiltRatio,
		MagMin:    fixedpt.Fixed(gainLSBPerGauss * 20 / 100),
		MagMax:    fixedpt.Fixed(gainLSBPerGauss * 80 / 100),
	}
}

// Check validates a reading that has already been translated and rotated by
// the calibration record.
func Check(adj geom.Position, lim Limits) Flags {
	var f Flags
	mag := adj.Magnitude()

	// sin(angle between reading and XY plane) = z / |reading|
	if mag != 0 && fixedpt.Abs(fixedpt.Div(adj.Z, mag)) > lim.TiltRatio {
		f |= Tilt
	}
	if mag < lim.MagMin || mag > lim.MagMax {
		f |= Interference
	}
	return f
}
