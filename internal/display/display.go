package display

import (
	"log"
	"strings"
	"sync"

	"compass-ng/internal/validate"
)

// Image is an 8x8 monochrome bitmap, one byte per row, top row first. Bit 7
// is the leftmost column.
type Image [8]byte

// Drawer renders an Image. There is no feedback channel beyond the error.
type Drawer interface {
	Draw(img Image) error
}

var (
	Blank = Image{}
	// Lamp lights every segment; shown while the button is held.
	Lamp = Image{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	// Err is a short bar on the left edge.
	Err = Image{2: 0x80, 3: 0x80, 4: 0x80}
	// Interference is a bar one column in from the right edge.
	Interference = Image{3: 0x02, 4: 0x02, 5: 0x02, 6: 0x02}
	// Tilt is a bar on the right edge.
	Tilt = Image{2: 0x01, 3: 0x01, 4: 0x01, 5: 0x01}
	// FaceNorth asks the operator to point the device north and press.
	FaceNorth = Image{1: 0x0F, 3: 0x7C}
	// Turn asks the operator to turn slowly through a full circle.
	Turn = Image{0: 0x0F, 1: 0xF0, 5: 0x80, 6: 0x80}
)

// Or returns the union of two images.
func (img Image) Or(o Image) Image {
	for i := range img {
		img[i] |= o[i]
	}
	return img
}

// String renders img as eight lines of '#' and '.'.
func (img Image) String() string {
	var sb strings.Builder
	for r, row := range img {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 7; c >= 0; c-- {
			if row&(1<<uint(c)) != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
	}
	return sb.String()
}

// Status returns the indicator bitmap for validation flags (Blank for none).
func Status(f validate.Flags) Image {
	img := Blank
	if f&validate.Tilt != 0 {
		img = img.Or(Tilt)
	}
	if f&validate.Interference != 0 {
		img = img.Or(Interference)
	}
	return img
}

// Logger is a Drawer for hosts without a matrix: it logs each image that
// differs from the previous one.
type Logger struct {
	mu   sync.Mutex
	last Image
	seen bool
	n    int
}

func (l *Logger) Draw(img Image) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen && img == l.last {
		return nil
	}
	l.last, l.seen = img, true
	l.n++
	log.Printf("display: frame %d\n%s", l.n, img)
	return nil
}

// Last returns the most recently drawn image.
func (l *Logger) Last() Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
