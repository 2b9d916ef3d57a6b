package heading

import (
	"compass-ng/internal/calibrate"
	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
)

// Adjust removes the hard-iron offset from pos and rotates it into the body
// frame established during calibration.
func Adjust(pos geom.Position, rec calibrate.Record) geom.Position {
	return pos.Sub(rec.Translate).Rotate(rec.Rotate)
}

// FromAdjusted returns the heading of an adjusted reading in binary radians
// clockwise from North, in [0, FullCirc).
func FromAdjusted(adj geom.Position) fixedpt.BRad {
	return fixedpt.Atan2(adj.X, adj.Y).Normalize()
}

// Heading transforms a (temperature-compensated) raw reading into a compass
// heading. Multiply by 180/SemiCirc for degrees.
func Heading(pos geom.Position, rec calibrate.Record) fixedpt.BRad {
	return FromAdjusted(Adjust(pos, rec))
}
