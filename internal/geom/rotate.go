package geom

import "compass-ng/internal/fixedpt"

// Axis selects an elemental rotation.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return "?"
}

// Rotation is a 3x3 rotation matrix. Points are transformed by dotting them
// against the columns (see Position.Rotate).
type Rotation struct {
	R [3][3]fixedpt.Fixed
}

func Identity() Rotation {
	var r Rotation
	for i := 0; i < 3; i++ {
		r.R[i][i] = fixedpt.One
	}
	return r
}

// Elemental returns the rotation about axis which zeroes the coordinate
// associated with a.
//
// a and b are the coordinates on the two axes orthogonal to the rotation
// axis. With i=(axis+1)%3 and j=(axis+2)%3, a point whose i coordinate is -a
// and whose j coordinate is b ends up with i=0 and j=|(a,b)|. (a, b) must not
// both be zero; if they are, the identity is returned.
func Elemental(a, b fixedpt.Fixed, axis Axis) Rotation {
	d := fixedpt.Dist(a, b, fixedpt.Zero)
	if d == 0 {
		return Identity()
	}
	sin := -fixedpt.Div(a, d)
	cos := fixedpt.Div(b, d)

	var r Rotation
	i := (axis + 1) % 3
	j := (i + 1) % 3
	r.R[axis][axis] = fixedpt.One
	r.R[i][i] = cos
	r.R[j][j] = cos
	r.R[i][j] = sin
	r.R[j][i] = -sin
	return r
}

// Rotate returns p transformed by r.
func (p Position) Rotate(r Rotation) Position {
	v := p.vec()
	var out [3]fixedpt.Fixed
	for k := 0; k < 3; k++ {
		out[k] = fixedpt.Mul(r.R[0][k], v[0]) +
			fixedpt.Mul(r.R[1][k], v[1]) +
			fixedpt.Mul(r.R[2][k], v[2])
	}
	return Position{X: out[0], Y: out[1], Z: out[2]}
}

// Compose replaces r with the product r·b, i.e. b's rotation applied after
// r's.
func (r *Rotation) Compose(b Rotation) {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = fixedpt.Mul(r.R[i][0], b.R[0][j]) +
				fixedpt.Mul(r.R[i][1], b.R[1][j]) +
				fixedpt.Mul(r.R[i][2], b.R[2][j])
		}
	}
	*r = out
}
