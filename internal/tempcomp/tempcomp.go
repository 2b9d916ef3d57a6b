// Package tempcomp implements temperature compensation for AMR magnetometers.
//
// Sensor sensitivity drifts with temperature. The self-test measures a field
// of known strength, so the ratio of the self-test result recorded at
// calibration time to a recent one gives the per-axis sensitivity change.
package tempcomp

import (
	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
)

// Scale rescales raw to the sensitivity in effect when atCal was measured.
//
// now is a self-test result taken close in time to raw. Every axis of now
// must be nonzero; a passing self-test guarantees that.
func Scale(raw, atCal, now geom.Position) geom.Position {
	return geom.Position{
		X: axis(raw.X, atCal.X, now.X),
		Y: axis(raw.Y, atCal.Y, now.Y),
		Z: axis(raw.Z, atCal.Z, now.Z),
	}
}

func axis(v, orig, cur fixedpt.Fixed) fixedpt.Fixed {
	return fixedpt.Div(fixedpt.Mul(v, orig), cur)
}
