package tempcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"compass-ng/internal/geom"
)

func TestScale_UnchangedSensitivityIsIdentity(t *testing.T) {
	st := geom.Position{X: 1200, Y: 1200, Z: 1130}
	raw := geom.Position{X: 800, Y: -420, Z: 33}
	got := Scale(raw, st, st)
	assert.InDelta(t, 800, int(got.X), 3)
	assert.InDelta(t, -420, int(got.Y), 3)
	assert.InDelta(t, 33, int(got.Z), 3)
}

func TestScale_CompensatesPerAxis(t *testing.T) {
	atCal := geom.Position{X: 1200, Y: 1200, Z: 1200}
	// Sensor became 20% more sensitive on X and 20% less on Y.
	now := geom.Position{X: 1440, Y: 960, Z: 1200}
	raw := geom.Position{X: 600, Y: 400, Z: -300}

	got := Scale(raw, atCal, now)
	assert.InDelta(t, 500, int(got.X), 2)
	assert.InDelta(t, 500, int(got.Y), 2)
	assert.InDelta(t, -300, int(got.Z), 2)
}
