package sim

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/chewxy/math32"

	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
	"compass-ng/internal/sensors"
	"compass-ng/internal/sensors/hmc5883l"
)

// MagConfig describes the simulated sensor and its installation.
type MagConfig struct {
	// Gain in LSb/Ga; 0 means hmc5883l.DefaultGain.
	Gain int
	// Earth field components in gauss.
	HorizontalGauss float32
	VerticalGauss   float32
	// Offset is the hard-iron offset in counts.
	Offset [3]float32
	// MountDeg rotates the sensor relative to the body (X, Y, Z Euler angles
	// in degrees).
	MountDeg [3]float32
	// Noise is the maximum per-axis jitter in counts.
	Noise int
	Seed  int64
}

func DefaultMagConfig() MagConfig {
	return MagConfig{
		Gain:            hmc5883l.DefaultGain,
		HorizontalGauss: 0.35,
		VerticalGauss:   0.40,
		Offset:          [3]float32{120, -80, 45},
		MountDeg:        [3]float32{6, -4, 25},
		Noise:           1,
		Seed:            1,
	}
}

type mode int

const (
	modeScript mode = iota
	modeHold
	modeTurn
)

// selfTestGauss is the field added by the positive bias strap.
const selfTestGauss = 1.16

// Magnetometer is a synthetic sensors.Magnetometer. Readings follow the
// handling Plan, except while an Operator holds it facing North or turns it
// for calibration.
type Magnetometer struct {
	mu    sync.Mutex
	cfg   MagConfig
	mount [3][3]float32
	plan  *Plan
	rng   *rand.Rand

	mode     mode
	step     int
	turnStep int
	turnLen  int

	// sensitivity scales readings (hard-iron offset included) and self-test
	// alike, modelling the temperature coefficient of the sensor.
	sensitivity float32
	reads       int
}

func NewMagnetometer(cfg MagConfig, plan *Plan) (*Magnetometer, error) {
	if cfg.Gain == 0 {
		cfg.Gain = hmc5883l.DefaultGain
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("sim: noise must be >= 0")
	}
	if plan == nil {
		p, err := NewPlan(DefaultScript())
		if err != nil {
			return nil, err
		}
		plan = p
	}
	d2r := float32(math32.Pi / 180)
	return &Magnetometer{
		cfg:         cfg,
		mount:       rotXYZ(cfg.MountDeg[0]*d2r, cfg.MountDeg[1]*d2r, cfg.MountDeg[2]*d2r),
		plan:        plan,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		sensitivity: 1,
	}, nil
}

func (m *Magnetometer) Gain() int { return m.cfg.Gain }

// SetSensitivity changes the simulated sensor sensitivity (1 is nominal).
func (m *Magnetometer) SetSensitivity(s float32) {
	m.mu.Lock()
	m.sensitivity = s
	m.mu.Unlock()
}

// Hold keeps the compass level and facing North until the next BeginTurn.
func (m *Magnetometer) Hold() {
	m.mu.Lock()
	m.mode = modeHold
	m.mu.Unlock()
}

// BeginTurn starts one clockwise turn spread over steps reads, carried a
// little past North so the turn closes. The handling plan resumes from its
// start afterwards.
func (m *Magnetometer) BeginTurn(steps int) {
	if steps < 8 {
		steps = 8
	}
	m.mu.Lock()
	m.mode = modeTurn
	m.turnStep = 0
	m.turnLen = steps
	m.mu.Unlock()
}

// Reads returns the number of readings taken so far.
func (m *Magnetometer) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *Magnetometer) attitude() Attitude {
	switch m.mode {
	case modeHold:
		return Attitude{FieldScale: 1}
	case modeTurn:
		a := Attitude{
			HeadingDeg: normDeg(360 * float64(m.turnStep) / float64(m.turnLen)),
			FieldScale: 1,
		}
		m.turnStep++
		if m.turnStep > m.turnLen+m.turnLen/8 {
			m.mode = modeScript
			m.step = 0
		}
		return a
	}
	a := m.plan.At(m.step, true)
	m.step++
	return a
}

func (m *Magnetometer) Read() (geom.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	a := m.attitude()
	if a.Saturate {
		return geom.Position{}, fmt.Errorf("sim: read: %w", sensors.ErrSaturated)
	}

	d2r := float32(math32.Pi / 180)
	psi := float32(a.HeadingDeg) * d2r
	gain := float32(m.cfg.Gain) * float32(a.FieldScale)
	h := m.cfg.HorizontalGauss * gain
	v := m.cfg.VerticalGauss * gain

	// Earth field seen by a level body facing psi (clockwise from North),
	// then pitched and rolled, then through the sensor mounting.
	level := [3]float32{-h * math32.Sin(psi), h * math32.Cos(psi), v}
	body := apply(rotXYZ(float32(a.PitchDeg)*d2r, float32(a.RollDeg)*d2r, 0), level)
	raw := apply(m.mount, body)

	var out [3]fixedpt.Fixed
	for i := range raw {
		out[i] = fixedpt.Fixed(round((raw[i]+m.cfg.Offset[i])*m.sensitivity)) + m.jitter()
	}
	return geom.Position{X: out[0], Y: out[1], Z: out[2]}, nil
}

// SelfTest returns the bias-strap delta, checked against the HMC5883L
// data-sheet limits like the real driver.
func (m *Magnetometer) SelfTest() (geom.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := fixedpt.Fixed(round(selfTestGauss * float32(m.cfg.Gain) * m.sensitivity))
	p := geom.Position{X: v, Y: v, Z: v}
	lo, hi := hmc5883l.SelfTestLimits(m.cfg.Gain)
	if int(v) < lo || int(v) > hi {
		return p, fmt.Errorf("sim: self-test %d outside %d..%d: %w", v, lo, hi, sensors.ErrSelfTest)
	}
	return p, nil
}

func (m *Magnetometer) jitter() fixedpt.Fixed {
	if m.cfg.Noise == 0 {
		return 0
	}
	return fixedpt.Fixed(m.rng.Intn(2*m.cfg.Noise+1) - m.cfg.Noise)
}

func round(x float32) float32 { return math32.Floor(x + 0.5) }

func rotXYZ(ax, ay, az float32) [3][3]float32 {
	cx, sx := math32.Cos(ax), math32.Sin(ax)
	cy, sy := math32.Cos(ay), math32.Sin(ay)
	cz, sz := math32.Cos(az), math32.Sin(az)
	rx := [3][3]float32{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	ry := [3][3]float32{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	rz := [3][3]float32{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return mul(rz, mul(ry, rx))
}

func mul(a, b [3][3]float32) [3][3]float32 {
	var out [3][3]float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func apply(r [3][3]float32, v [3]float32) [3]float32 {
	var out [3]float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i] += r[i][j] * v[j]
		}
	}
	return out
}

var _ sensors.Magnetometer = (*Magnetometer)(nil)
