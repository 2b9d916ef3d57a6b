package sim

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Script is a deterministic description of how the simulated compass is
// handled between calibrations. Time is counted in sensor reads (steps), so
// a run replays identically whatever the loop rate.
//
// YAML schema (v1):
//
//	version: 1
//	steps: 720           # optional; derived from the last keyframe
//	keyframes:
//	  - step: 0
//	    heading_deg: 0
//	  - step: 180
//	    heading_deg: 90
//	    pitch_deg: 30     # tilted: expect the TILT indicator
//	  - step: 200
//	    heading_deg: 95
//	    saturate: true    # magnet next to the sensor
//
// Keyframes must be sorted by step. Headings interpolate along the shorter
// arc; pitch, roll and field scale interpolate linearly; saturate holds
// until the next keyframe.
type Script struct {
	Version   int        `yaml:"version"`
	Steps     int        `yaml:"steps"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

type Keyframe struct {
	Step       int     `yaml:"step"`
	HeadingDeg float64 `yaml:"heading_deg"`
	PitchDeg   float64 `yaml:"pitch_deg"`
	RollDeg    float64 `yaml:"roll_deg"`
	// FieldScale multiplies the Earth field (0 means 1). Values far from 1
	// model nearby iron.
	FieldScale float64 `yaml:"field_scale"`
	Saturate   bool    `yaml:"saturate"`
}

// Attitude is the handling state at one step.
type Attitude struct {
	HeadingDeg float64
	PitchDeg   float64
	RollDeg    float64
	FieldScale float64
	Saturate   bool
}

// Plan is a validated Script.
type Plan struct {
	script Script
	steps  int
}

// DefaultScript turns the compass slowly through a full circle, level.
func DefaultScript() Script {
	return Script{
		Version: 1,
		Keyframes: []Keyframe{
			{Step: 0, HeadingDeg: 0},
			{Step: 180, HeadingDeg: 90},
			{Step: 360, HeadingDeg: 180},
			{Step: 540, HeadingDeg: 270},
			{Step: 720, HeadingDeg: 0},
		},
	}
}

func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return ParseScriptYAML(b)
}

func ParseScriptYAML(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("sim: parse script: %w", err)
	}
	return s, nil
}

func NewPlan(script Script) (*Plan, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported script version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.Step < 0 {
			return nil, fmt.Errorf("keyframes[%d].step must be >= 0", i)
		}
		if i > 0 && kf.Step < script.Keyframes[i-1].Step {
			return nil, fmt.Errorf("keyframes must be sorted by step (index %d)", i)
		}
		if kf.FieldScale < 0 {
			return nil, fmt.Errorf("keyframes[%d].field_scale must be >= 0", i)
		}
	}
	steps := script.Steps
	if steps <= 0 {
		steps = script.Keyframes[len(script.Keyframes)-1].Step
	}
	if steps <= 0 {
		steps = 1
	}
	return &Plan{script: script, steps: steps}, nil
}

func (p *Plan) Steps() int {
	if p == nil {
		return 0
	}
	return p.steps
}

// At returns the attitude at step. With loop set the script repeats;
// otherwise the last keyframe holds.
func (p *Plan) At(step int, loop bool) Attitude {
	if p == nil {
		return Attitude{FieldScale: 1}
	}
	if step < 0 {
		step = 0
	}
	if loop {
		step %= p.steps
	} else if step > p.steps {
		step = p.steps
	}

	k0, k1, alpha := selectSegment(p.script.Keyframes, step)
	scale0, scale1 := k0.FieldScale, k1.FieldScale
	if scale0 == 0 {
		scale0 = 1
	}
	if scale1 == 0 {
		scale1 = 1
	}
	return Attitude{
		HeadingDeg: lerpAngleDeg(k0.HeadingDeg, k1.HeadingDeg, alpha),
		PitchDeg:   lerp(k0.PitchDeg, k1.PitchDeg, alpha),
		RollDeg:    lerp(k0.RollDeg, k1.RollDeg, alpha),
		FieldScale: lerp(scale0, scale1, alpha),
		Saturate:   k0.Saturate,
	}
}

func selectSegment(kfs []Keyframe, step int) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].Step > step })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	ds := k1.Step - k0.Step
	if ds <= 0 {
		return k1, k1, 0
	}
	return k0, k1, float64(step-k0.Step) / float64(ds)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func normDeg(x float64) float64 {
	for x < 0 {
		x += 360
	}
	for x >= 360 {
		x -= 360
	}
	return x
}

// lerpAngleDeg interpolates along the shorter arc, result in [0, 360).
func lerpAngleDeg(a0, a1, t float64) float64 {
	a0 = normDeg(a0)
	a1 = normDeg(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return normDeg(a0 + delta*t)
}
