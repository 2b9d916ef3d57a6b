package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-ng/internal/fixedpt"
)

func set(p *Position, axis Axis, v fixedpt.Fixed) {
	switch axis {
	case X:
		p.X = v
	case Y:
		p.Y = v
	default:
		p.Z = v
	}
}

var pairs = [][2]fixedpt.Fixed{
	{300, 400},
	{-300, 400},
	{5, -900},
	{-700, -20},
	{1000, 1},
}

func TestElemental_ZeroesFirstCoordinate(t *testing.T) {
	for _, ab := range pairs {
		a, b := ab[0], ab[1]
		for _, axis := range []Axis{X, Y, Z} {
			i := (axis + 1) % 3
			j := (axis + 2) % 3

			var p Position
			set(&p, i, b)
			set(&p, j, a)
			got := p.Rotate(Elemental(a, b, axis))

			d := fixedpt.Dist(a, b, 0)
			assert.InDeltaf(t, 0, int(got.Axis(j)), 2, "a=%d b=%d axis=%s", a, b, axis)
			assert.Greaterf(t, int(got.Axis(i)), 0, "a=%d b=%d axis=%s", a, b, axis)
			assert.InDeltaf(t, int(d), int(got.Axis(i)), 4, "a=%d b=%d axis=%s", a, b, axis)
			assert.Equal(t, p.Axis(axis), got.Axis(axis), "rotation axis untouched")
		}
	}
}

func TestElemental_NegatedConvention(t *testing.T) {
	// The calibration drives N.x to zero with Elemental(-N.x, N.y, Z).
	n := Position{X: -358, Y: 122, Z: 104}
	got := n.Rotate(Elemental(-n.X, n.Y, Z))
	assert.InDelta(t, 0, int(got.X), 2)
	assert.Greater(t, got.Y, fixedpt.Fixed(0))
	assert.Equal(t, n.Z, got.Z)
}

func TestElemental_DegenerateIsIdentity(t *testing.T) {
	assert.Equal(t, Identity(), Elemental(0, 0, Y))
}

func TestElemental_Orthonormal(t *testing.T) {
	r := Elemental(300, 400, Z)
	for col := 0; col < 3; col++ {
		norm := fixedpt.Dist(r.R[0][col], r.R[1][col], r.R[2][col])
		assert.InDelta(t, int(fixedpt.One), int(norm), 4)
	}
}

func TestRotate_Identity(t *testing.T) {
	p := Position{X: 1090, Y: -12, Z: 500}
	assert.Equal(t, p, p.Rotate(Identity()))
}

func TestCompose_MatchesSequentialRotation(t *testing.T) {
	p := Position{X: 250, Y: -310, Z: 140}
	r1 := Elemental(120, 340, Z)
	r2 := Elemental(-200, 90, X)
	r3 := Elemental(60, -400, Y)

	seq := p.Rotate(r1).Rotate(r2).Rotate(r3)

	comp := r1
	comp.Compose(r2)
	comp.Compose(r3)
	got := p.Rotate(comp)

	assert.InDelta(t, int(seq.X), int(got.X), 6)
	assert.InDelta(t, int(seq.Y), int(got.Y), 6)
	assert.InDelta(t, int(seq.Z), int(got.Z), 6)
}

func TestCompose_FloatOracle(t *testing.T) {
	r1 := Elemental(120, 340, Z)
	r2 := Elemental(-200, 90, X)

	var want [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				want[i][j] += r1.R[i][k].Float() * r2.R[k][j].Float()
			}
		}
	}

	got := r1
	got.Compose(r2)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			require.InDeltaf(t, want[i][j], got.R[i][j].Float(), 4.0/float64(fixedpt.One), "r[%d][%d]", i, j)
		}
	}
}

func TestElemental_FloatOracle(t *testing.T) {
	// Rz for the pair (a, b) is a rotation by atan2(-a, b).
	a, b := fixedpt.Fixed(300), fixedpt.Fixed(400)
	r := Elemental(a, b, Z)
	theta := math.Atan2(-float64(a), float64(b))
	assert.InDelta(t, math.Cos(theta), r.R[0][0].Float(), 2.0/float64(fixedpt.One))
	assert.InDelta(t, math.Sin(theta), r.R[0][1].Float(), 2.0/float64(fixedpt.One))
	assert.InDelta(t, -math.Sin(theta), r.R[1][0].Float(), 2.0/float64(fixedpt.One))
}

func TestPosition_Helpers(t *testing.T) {
	p := Position{X: 3, Y: 4, Z: 12}
	q := Position{X: 1, Y: 1, Z: 1}
	assert.Equal(t, Position{X: 2, Y: 3, Z: 11}, p.Sub(q))
	assert.Equal(t, fixedpt.Fixed(13), p.Magnitude())
	assert.Equal(t, fixedpt.Fixed(13), p.Dist(Position{}))
	assert.Equal(t, "z", Z.String())
}
