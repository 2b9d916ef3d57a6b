package fixedpt

// BRad is an angle in binary radians: SemiCirc is half a circle.
//
// It is wider than Fixed so that a full circle (2*SemiCirc) fits.
type BRad int32

const (
	SemiCirc   BRad = BRad(One) * 8
	FullCirc   BRad = 2 * SemiCirc
	cordicIter      = 12
)

// atan(2^-i) in binary radians, pre-scaled by 4. Entry 0 is never used by the
// iteration; it is kept so the index matches the shift.
var atanTbl = [cordicIter]int32{
	0x4000, 0x25c8, 0x13f6, 0x0a22, 0x0516, 0x028c,
	0x0146, 0x00a3, 0x0051, 0x0029, 0x0014, 0x000a,
}

// Atan2 returns the angle from the positive X axis to (x, y). Note the
// argument order: y first.
//
// CORDIC vectoring after folding (x, y) into the first octant. The result is
// not normalized; callers wanting [0, FullCirc) use Normalize.
func Atan2(y, x Fixed) BRad {
	if y == 0 {
		if x >= 0 {
			return 0
		}
		return SemiCirc
	}

	// Work in 32 bits so the octant fold cannot overflow.
	xx, yy := int32(x), int32(y)
	var phi BRad
	if yy < 0 {
		xx, yy = -xx, -yy
		phi += SemiCirc
	}
	if xx <= 0 {
		xx, yy = yy, -xx
		phi += SemiCirc / 2
	}
	if xx <= yy {
		xx, yy = xx+yy, yy-xx
		phi += SemiCirc / 4
	}

	var dphi int32
	for i := 1; i < cordicIter; i++ {
		if yy >= 0 {
			xx, yy = xx+(yy>>i), yy-(xx>>i)
			dphi += atanTbl[i]
		} else {
			xx, yy = xx-(yy>>i), yy+(xx>>i)
			dphi -= atanTbl[i]
		}
	}
	return phi + BRad(dphi>>2)
}

// Normalize folds a into [0, FullCirc).
func (a BRad) Normalize() BRad {
	a %= FullCirc
	if a < 0 {
		a += FullCirc
	}
	return a
}

func (a BRad) Degrees() float64 {
	return float64(a) * 180 / float64(SemiCirc)
}
