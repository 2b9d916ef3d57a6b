// Package fixedpt implements the compass fixed-point arithmetic.
//
// A Fixed is a 16-bit signed value with FracBits bits to the right of the
// binary point (range roughly ±16). Raw sensor counts are stored directly in
// a Fixed, so one count is 1/One of a unit.
//
// Add, subtract and shift Fixed values like any other integer. Use Mul and
// Div to multiply or divide two Fixed values; both widen to 32 bits and
// truncate rather than round. Neither detects overflow.
package fixedpt

import "math"

type Fixed int16

const (
	FracBits = 11

	Zero Fixed = 0
	One  Fixed = 1 << FracBits

	MinFixed Fixed = math.MinInt16
	MaxFixed Fixed = math.MaxInt16
)

func Mul(a, b Fixed) Fixed {
	return Fixed((int32(a) * int32(b)) >> FracBits)
}

// Div divides a by b. b must be nonzero.
func Div(a, b Fixed) Fixed {
	return Fixed(((int32(a) << 16) / int32(b)) >> (16 - FracBits))
}

// Abs returns |x|. MinFixed has no positive counterpart and is returned as is.
func Abs(x Fixed) Fixed {
	if x > 0 {
		return x
	}
	return -x
}

// Dist returns the distance from the origin to (a, b, c).
//
// The square root is computed digit by digit on the 32-bit sum of squares, so
// the result has the same scale as the inputs.
func Dist(a, b, c Fixed) Fixed {
	x := uint32(int32(a)*int32(a)) + uint32(int32(b)*int32(b)) + uint32(int32(c)*int32(c))

	// Highest power of four <= x.
	bit := uint32(1) << 30
	for bit > x {
		bit >>= 2
	}

	var res uint32
	for bit != 0 {
		if x >= res+bit {
			x -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	return Fixed(res)
}

// FromFloat converts f to Fixed, truncating toward zero.
func FromFloat(f float64) Fixed {
	return Fixed(math.Trunc(f * float64(One)))
}

func (x Fixed) Float() float64 {
	return float64(x) / float64(One)
}
