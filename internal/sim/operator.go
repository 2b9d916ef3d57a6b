package sim

import (
	"log"
	"time"

	"compass-ng/internal/calibrate"
)

// Presser is the button the simulated operator pushes.
type Presser interface {
	Press()
}

// Operator plays the person holding the compass during calibration: on the
// face-North prompt they level the compass, point it North and press the
// button after Delay; on the turn prompt they make one slow turn of
// TurnSteps readings.
type Operator struct {
	Mag       *Magnetometer
	Button    Presser
	Delay     time.Duration
	TurnSteps int
}

// Prompt is suitable as calibrate.Engine.Prompt.
func (o *Operator) Prompt(s calibrate.Stage) {
	switch s {
	case calibrate.StageFaceNorth:
		o.Mag.Hold()
		log.Printf("sim: operator facing north, pressing in %s", o.Delay)
		if o.Delay <= 0 {
			o.Button.Press()
			return
		}
		time.AfterFunc(o.Delay, o.Button.Press)
	case calibrate.StageTurn:
		steps := o.TurnSteps
		if steps <= 0 {
			steps = 360
		}
		log.Printf("sim: operator turning steps=%d", steps)
		o.Mag.BeginTurn(steps)
	}
}
