package geom

import "compass-ng/internal/fixedpt"

// Position is a magnetometer sample (raw or transformed).
type Position struct {
	X, Y, Z fixedpt.Fixed
}

func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Axis returns component i (0=X, 1=Y, 2=Z).
func (p Position) Axis(i Axis) fixedpt.Fixed {
	switch i {
	case X:
		return p.X
	case Y:
		return p.Y
	default:
		return p.Z
	}
}

// Dist returns the distance between p and q.
func (p Position) Dist(q Position) fixedpt.Fixed {
	d := p.Sub(q)
	return fixedpt.Dist(d.X, d.Y, d.Z)
}

// Magnitude returns the distance from the origin to p.
func (p Position) Magnitude() fixedpt.Fixed {
	return fixedpt.Dist(p.X, p.Y, p.Z)
}

func (p Position) vec() [3]fixedpt.Fixed {
	return [3]fixedpt.Fixed{p.X, p.Y, p.Z}
}
