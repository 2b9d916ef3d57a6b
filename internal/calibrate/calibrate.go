// Package calibrate implements guided calibration.
//
// The operator starts facing magnetic North and makes one full turn to the
// right about the yaw axis (speed and path shape do not matter). While they
// turn we track three points on the ellipse traced by the readings:
//
//	N: the first reading (facing North)
//	C: the centre of the ellipse (average of evenly spaced readings)
//	W: a point on the Western half, equidistant from N and S, where S is the
//	   point farthest from N
//
// C is the hard-iron offset. Rotating N onto +Y and then W into the -X half
// of the XY plane gives the sensor-to-body rotation.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
	"compass-ng/internal/sensors"
)

// ErrCancelled is returned when the operator activates the input during the
// turn. It is an outcome, not a fault: keep using the previous calibration.
var ErrCancelled = errors.New("calibration cancelled")

// Delta is the jitter threshold: readings closer than this to the last one
// counted are ignored for the centre average, and the turn is complete once
// the reading comes back within 2*Delta of N.
const Delta fixedpt.Fixed = 1 << (fixedpt.FracBits - 6)

var afterFn = time.After

// Input is a debounced push button. Activated reports (and clears) whether
// it was pressed and released since the previous call.
type Input interface {
	Activated() bool
}

// NWC holds the reference points found during the turn.
type NWC struct {
	N, W, C geom.Position
}

// FindNWC samples the sensor until the operator has completed a turn.
//
// The input is polled once per sample; activation returns ErrCancelled.
// Sensor errors end the search immediately. ctx is checked once per sample.
func FindNWC(ctx context.Context, sensor sensors.Magnetometer, input Input) (NWC, error) {
	var p NWC

	n, err := sensor.Read()
	if err != nil {
		return NWC{}, fmt.Errorf("calibrate: read N: %w", err)
	}
	p.N = n

	s, prev := n, n
	var sumX, sumY, sumZ int32
	var count int32
	var distNS, best fixedpt.Fixed
	samples := 0

	for {
		select {
		case <-ctx.Done():
			return NWC{}, ctx.Err()
		default:
		}
		if input.Activated() {
			return NWC{}, ErrCancelled
		}

		pos, err := sensor.Read()
		if err != nil {
			return NWC{}, fmt.Errorf("calibrate: read: %w", err)
		}
		samples++

		distN := pos.Dist(p.N)
		distS := pos.Dist(s)

		// Only count readings that moved noticeably since the last counted
		// one, so the average approximates equal arc lengths whatever the
		// sample rate or turn speed.
		if pos.Dist(prev) > Delta {
			sumX += int32(pos.X)
			sumY += int32(pos.Y)
			sumZ += int32(pos.Z)
			count++
			prev = pos
		}

		// New S: farther from N than the current S by more than a small
		// fraction of the distance to S. On a very eccentric ellipse two
		// points can be (nearly) farthest from N; this keeps the first.
		// Restarting the W search here means W always comes from the part
		// of the turn after the last S.
		if distN-distNS > distS>>3 {
			s = pos
			distNS = distN
			best = distN
			distS = 0
		}

		if diff := fixedpt.Abs(distN - distS); diff < best {
			best = diff
			p.W = pos
		}

		// Back near the start after a genuinely large excursion.
		if distN>>1 <= Delta && distNS>>2 >= Delta {
			break
		}
	}

	if count == 0 {
		p.C = p.N
	} else {
		p.C = geom.Position{
			X: fixedpt.Fixed(sumX / count),
			Y: fixedpt.Fixed(sumY / count),
			Z: fixedpt.Fixed(sumZ / count),
		}
	}
	log.Printf("calibrate: turn complete samples=%d averaged=%d N=%v S=%v W=%v C=%v", samples, count, p.N, s, p.W, p.C)
	return p, nil
}

// elemRot finds the elemental rotation for (a, b) about axis, applies it to
// N and W and, if prod is non-nil, composes it into prod.
func elemRot(a, b fixedpt.Fixed, axis geom.Axis, n, w *geom.Position, prod *geom.Rotation) geom.Rotation {
	r := geom.Elemental(a, b, axis)
	*n = n.Rotate(r)
	*w = w.Rotate(r)
	if prod != nil {
		prod.Compose(r)
	}
	return r
}

// Derive computes the hard-iron offset and the rotation taking a translated
// reading into the body frame.
func Derive(p NWC) (geom.Position, geom.Rotation) {
	n := p.N.Sub(p.C)
	w := p.W.Sub(p.C)

	var rot geom.Rotation
	// Zero the larger of N.x and N.z first so neither step normalizes by a
	// near-zero distance.
	if fixedpt.Abs(n.X) > fixedpt.Abs(n.Z) {
		rot = elemRot(-n.X, n.Y, geom.Z, &n, &w, nil)
		elemRot(n.Z, n.Y, geom.X, &n, &w, &rot)
	} else {
		rot = elemRot(n.Z, n.Y, geom.X, &n, &w, nil)
		elemRot(-n.X, n.Y, geom.Z, &n, &w, &rot)
	}

	// W onto the negative-X half of the XY plane.
	elemRot(w.Z, -w.X, geom.Y, &n, &w, &rot)

	return p.C, rot
}

// Stage identifies the instruction the operator should currently see.
type Stage int

const (
	StageFaceNorth Stage = iota
	StageTurn
)

func (s Stage) String() string {
	switch s {
	case StageFaceNorth:
		return "face-north"
	case StageTurn:
		return "turn"
	}
	return "unknown"
}

// Engine runs a complete calibration.
type Engine struct {
	Sensor sensors.Magnetometer
	Input  Input

	// Prompt, if set, is called when the operator instruction changes.
	Prompt func(Stage)

	// PollInterval is how often the input is polled while waiting for the
	// operator to face North. Defaults to 25ms.
	PollInterval time.Duration
}

// Run self-tests the sensor, waits for the operator to face North and press
// the button, then records the turn.
//
// Returns the new record, ErrCancelled, or the sensor error that stopped the
// calibration.
func (e *Engine) Run(ctx context.Context) (Record, error) {
	if e == nil || e.Sensor == nil || e.Input == nil {
		return Record{}, fmt.Errorf("calibrate: engine not configured")
	}
	poll := e.PollInterval
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}

	var rec Record
	scale, err := e.Sensor.SelfTest()
	if err != nil {
		return Record{}, fmt.Errorf("calibrate: self-test: %w", err)
	}
	rec.Scale = scale

	e.prompt(StageFaceNorth)
	for !e.Input.Activated() {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-afterFn(poll):
		}
	}

	e.prompt(StageTurn)
	nwc, err := FindNWC(ctx, e.Sensor, e.Input)
	if err != nil {
		return Record{}, err
	}

	rec.Translate, rec.Rotate = Derive(nwc)
	log.Printf("calibrate: done translate=%v rotate=%v", rec.Translate, rec.Rotate.R)
	return rec, nil
}

func (e *Engine) prompt(s Stage) {
	if e.Prompt != nil {
		e.Prompt(s)
	}
}
