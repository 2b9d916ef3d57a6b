package calibrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-ng/internal/geom"
)

func TestRecord_BinaryLayout(t *testing.T) {
	rec := Record{
		Scale:     geom.Position{X: 1, Y: 2, Z: 3},
		Translate: geom.Position{X: -1, Y: 0x0102, Z: 0},
		Rotate:    geom.Identity(),
	}
	b, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, RecordSize)

	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, b[0:6], "scale little-endian")
	assert.Equal(t, []byte{0xff, 0xff, 0x02, 0x01, 0, 0}, b[6:12], "translate")
	assert.Equal(t, []byte{0x00, 0x08}, b[12:14], "rotate[0][0] = One")
	assert.Equal(t, []byte{0x00, 0x08}, b[20:22], "rotate[1][1] = One")

	var got Record
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, rec, got)
}

func TestRecord_UnmarshalRejectsShortBuffer(t *testing.T) {
	var r Record
	err := r.UnmarshalBinary(make([]byte, RecordSize-1))
	require.EqualError(t, err, "calibrate: record is 29 bytes, want 30")
}
