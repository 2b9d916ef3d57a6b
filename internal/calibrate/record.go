package calibrate

import (
	"encoding/binary"
	"fmt"

	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
)

// RecordSize is the encoded size of a Record: 15 int16 values.
const RecordSize = 30

// Record is the result of one successful calibration.
type Record struct {
	// Scale is the self-test delta measured at calibration time.
	Scale geom.Position
	// Translate is the hard-iron offset (centre of the calibration ellipse).
	Translate geom.Position
	// Rotate maps a translated reading into the body frame: North on +Y,
	// West in the -X half of the XY plane.
	Rotate geom.Rotation
}

func (r Record) values() [15]fixedpt.Fixed {
	var v [15]fixedpt.Fixed
	v[0], v[1], v[2] = r.Scale.X, r.Scale.Y, r.Scale.Z
	v[3], v[4], v[5] = r.Translate.X, r.Translate.Y, r.Translate.Z
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v[6+i*3+j] = r.Rotate.R[i][j]
		}
	}
	return v
}

// MarshalBinary encodes r as 15 little-endian int16: scale, translate, then
// the rotation matrix row by row.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	for i, v := range r.values() {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf, nil
}

func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("calibrate: record is %d bytes, want %d", len(b), RecordSize)
	}
	v := func(i int) fixedpt.Fixed {
		return fixedpt.Fixed(int16(binary.LittleEndian.Uint16(b[i*2:])))
	}
	r.Scale = geom.Position{X: v(0), Y: v(1), Z: v(2)}
	r.Translate = geom.Position{X: v(3), Y: v(4), Z: v(5)}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Rotate.R[i][j] = v(6 + i*3 + j)
		}
	}
	return nil
}
