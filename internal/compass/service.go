package compass

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"compass-ng/internal/calibrate"
	"compass-ng/internal/display"
	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
	"compass-ng/internal/heading"
	"compass-ng/internal/sensors"
	"compass-ng/internal/storedcal"
	"compass-ng/internal/tempcomp"
	"compass-ng/internal/validate"
)

var afterFn = time.After

const (
	// ARC is one 32nd of a circle.
	ARC = fixedpt.SemiCirc >> 4
	// DefaultHysteresis keeps the reported heading still until the reading
	// moves by more than this.
	DefaultHysteresis = ARC >> 3

	DefaultTcompPeriod = 6000

	errFlashHalfPeriod = 500 * time.Millisecond
)

// Input is the operator's push button.
type Input interface {
	calibrate.Input
	// Sleep waits for d or a press, whichever comes first, and reports (and
	// consumes) the press.
	Sleep(ctx context.Context, d time.Duration) bool
}

// HeadingSink receives every accepted heading.
type HeadingSink interface {
	SendHeading(h fixedpt.BRad) error
}

type Config struct {
	Sensor  sensors.Magnetometer
	Store   *storedcal.Store
	Input   Input
	Display display.Drawer // nil: nothing drawn
	Output  HeadingSink    // nil: headings only logged

	// OnPrompt, if set, also receives calibration prompts.
	OnPrompt func(calibrate.Stage)

	// Interval between readings; 0 reads back to back.
	Interval    time.Duration
	TcompPeriod int
	Hysteresis  fixedpt.BRad
	Limits      validate.Limits
	// Recalibrate forces a calibration at start-up.
	Recalibrate bool
}

// Status names the state of the last control-loop cycle.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusCalibrating Status = "calibrating"
	StatusOK          Status = "ok"
	StatusFlagged     Status = "flagged"
	StatusSaturated   Status = "saturated"
	StatusSensorError Status = "sensor-error"
)

type Snapshot struct {
	Status       Status
	Heading      fixedpt.BRad
	Flags        validate.Flags
	Calibrated   bool
	Record       calibrate.Record
	Cycles       uint64
	Calibrations int
	SelfTests    int
	LastError    string
	LastUpdateAt time.Time
}

// Service is the compass control loop: read, temperature-compensate,
// correct, validate, report. Button presses start re-calibration.
type Service struct {
	cfg Config

	mu   sync.RWMutex
	snap Snapshot

	rec       calibrate.Record
	tcal      geom.Position
	tcompCnt  int
	prev      fixedpt.BRad
	havePrev  bool
	lastLog   Status
	lastOutEr string
}

func New(cfg Config) (*Service, error) {
	if cfg.Sensor == nil {
		return nil, fmt.Errorf("compass: sensor is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("compass: store is nil")
	}
	if cfg.Store.SlotSize() != calibrate.RecordSize {
		return nil, fmt.Errorf("compass: store slot is %d bytes, want %d", cfg.Store.SlotSize(), calibrate.RecordSize)
	}
	if cfg.Input == nil {
		return nil, fmt.Errorf("compass: input is nil")
	}
	if cfg.TcompPeriod <= 0 {
		cfg.TcompPeriod = DefaultTcompPeriod
	}
	if cfg.Hysteresis < 0 {
		cfg.Hysteresis = 0
	}
	if cfg.Limits == (validate.Limits{}) {
		cfg.Limits = validate.DefaultLimits(1090)
	}
	return &Service{cfg: cfg, snap: Snapshot{Status: StatusStarting}}, nil
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

// Run loads the stored calibration (calibrating first if there is none) and
// runs the control loop until ctx is done. It returns ctx.Err() on shutdown.
func (s *Service) Run(ctx context.Context) error {
	rec, err := s.load()
	switch {
	case err == nil && !s.cfg.Recalibrate:
		s.useRecord(rec, false)
		log.Printf("compass: loaded calibration translate=%v", rec.Translate)
	case err == nil, errors.Is(err, storedcal.ErrNotFound):
		if err != nil {
			log.Printf("compass: no stored calibration, calibrating")
		}
		if err := s.forceCalibration(ctx); err != nil {
			return err
		}
	default:
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cfg.Input.Activated() {
			s.recalibrate(ctx)
		}
		s.cycle()
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Service) load() (calibrate.Record, error) {
	buf := make([]byte, calibrate.RecordSize)
	if _, err := s.cfg.Store.Get(buf); err != nil {
		return calibrate.Record{}, err
	}
	var rec calibrate.Record
	if err := rec.UnmarshalBinary(buf); err != nil {
		return calibrate.Record{}, err
	}
	return rec, nil
}

func (s *Service) save(rec calibrate.Record) error {
	b, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.cfg.Store.Set(b); err != nil {
		return fmt.Errorf("compass: store calibration: %w", err)
	}
	return nil
}

// useRecord makes rec current. A fresh record's scale was measured just now,
// so it is also the temperature-compensation reference; otherwise the
// reference is kept, or taken on the next cycle if there is none yet.
func (s *Service) useRecord(rec calibrate.Record, fresh bool) {
	s.rec = rec
	if fresh {
		s.tcal = rec.Scale
		s.tcompCnt = s.cfg.TcompPeriod
	}
	s.havePrev = false
	s.setState(func(sn *Snapshot) {
		sn.Calibrated = true
		sn.Record = rec
	})
}

func (s *Service) forceCalibration(ctx context.Context) error {
	for {
		rec, err := s.calibrate(ctx)
		if err == nil {
			if err := s.save(rec); err != nil {
				log.Printf("compass: %v", err)
			}
			s.useRecord(rec, true)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Nothing to fall back to: retry until it works.
		if !errors.Is(err, calibrate.ErrCancelled) {
			s.flashErr(ctx)
		}
	}
}

func (s *Service) recalibrate(ctx context.Context) {
	rec, err := s.calibrate(ctx)
	if err == nil {
		if err := s.save(rec); err != nil {
			log.Printf("compass: %v", err)
		}
		s.useRecord(rec, true)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if prev, lerr := s.load(); lerr == nil {
		s.useRecord(prev, false)
	}
	if !errors.Is(err, calibrate.ErrCancelled) {
		s.flashErr(ctx)
	}
}

func (s *Service) calibrate(ctx context.Context) (calibrate.Record, error) {
	s.setState(func(sn *Snapshot) {
		sn.Status = StatusCalibrating
		sn.Calibrations++
	})
	s.logStatus(StatusCalibrating, "")

	eng := &calibrate.Engine{
		Sensor: s.cfg.Sensor,
		Input:  s.cfg.Input,
		Prompt: s.prompt,
	}
	rec, err := eng.Run(ctx)
	switch {
	case err == nil:
		log.Printf("compass: calibration complete scale=%v translate=%v", rec.Scale, rec.Translate)
	case errors.Is(err, calibrate.ErrCancelled):
		log.Printf("compass: calibration cancelled")
	case ctx.Err() == nil:
		log.Printf("compass: calibration failed: %v", err)
		s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
	}
	return rec, err
}

func (s *Service) prompt(st calibrate.Stage) {
	switch st {
	case calibrate.StageFaceNorth:
		s.draw(display.FaceNorth)
	case calibrate.StageTurn:
		s.draw(display.Turn)
	}
	if s.cfg.OnPrompt != nil {
		s.cfg.OnPrompt(st)
	}
}

// flashErr blinks the error bitmap at 1Hz until the button is pressed.
func (s *Service) flashErr(ctx context.Context) {
	for ctx.Err() == nil {
		s.draw(display.Err)
		if s.cfg.Input.Sleep(ctx, errFlashHalfPeriod) {
			return
		}
		s.draw(display.Blank)
		if s.cfg.Input.Sleep(ctx, errFlashHalfPeriod) {
			return
		}
	}
}

// cycle takes and processes one reading.
func (s *Service) cycle() {
	defer s.setState(func(sn *Snapshot) { sn.Cycles++ })

	raw, err := s.cfg.Sensor.Read()
	if errors.Is(err, sensors.ErrSaturated) {
		s.fault(StatusSaturated, display.Interference, err)
		return
	}
	if err != nil {
		s.fault(StatusSensorError, display.Err, err)
		return
	}

	if s.tcompCnt == 0 {
		scale, err := s.cfg.Sensor.SelfTest()
		s.setState(func(sn *Snapshot) { sn.SelfTests++ })
		if err != nil {
			s.fault(StatusSensorError, display.Err, err)
			return
		}
		s.tcal = scale
		s.tcompCnt = s.cfg.TcompPeriod
	} else {
		s.tcompCnt--
	}

	p := tempcomp.Scale(raw, s.rec.Scale, s.tcal)
	adj := heading.Adjust(p, s.rec)
	hdg := heading.FromAdjusted(adj)

	if flags := validate.Check(adj, s.cfg.Limits); flags != 0 {
		s.draw(display.Status(flags))
		s.setState(func(sn *Snapshot) {
			sn.Status = StatusFlagged
			sn.Flags = flags
			sn.Heading = hdg
		})
		s.logStatus(StatusFlagged, flags.String())
		return
	}

	if s.havePrev && Within(s.prev, hdg, s.cfg.Hysteresis) {
		hdg = s.prev
	} else {
		s.prev, s.havePrev = hdg, true
	}

	s.draw(display.Blank)
	s.setState(func(sn *Snapshot) {
		sn.Status = StatusOK
		sn.Flags = 0
		sn.Heading = hdg
	})
	s.logStatus(StatusOK, "")
	s.output(hdg)
}

func (s *Service) fault(st Status, img display.Image, err error) {
	s.draw(img)
	s.setState(func(sn *Snapshot) {
		sn.Status = st
		sn.LastError = err.Error()
	})
	s.logStatus(st, err.Error())
}

func (s *Service) output(h fixedpt.BRad) {
	if s.cfg.Output == nil {
		return
	}
	err := s.cfg.Output.SendHeading(h)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg != s.lastOutEr {
		if err != nil {
			log.Printf("compass: output failed: %v", err)
		} else {
			log.Printf("compass: output recovered")
		}
		s.lastOutEr = msg
	}
}

func (s *Service) draw(img display.Image) {
	if s.cfg.Display == nil {
		return
	}
	if err := s.cfg.Display.Draw(img); err != nil {
		log.Printf("compass: draw failed: %v", err)
	}
}

// logStatus logs state transitions only.
func (s *Service) logStatus(st Status, detail string) {
	if st == s.lastLog {
		return
	}
	s.lastLog = st
	if detail != "" {
		log.Printf("compass: status=%s %s", st, detail)
		return
	}
	log.Printf("compass: status=%s", st)
}

func (s *Service) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil || s.cfg.Interval <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-afterFn(s.cfg.Interval):
		return nil
	}
}

// Within reports whether a and b are less than arc apart, going the short
// way round the circle.
func Within(a, b, arc fixedpt.BRad) bool {
	d := (a - b).Normalize()
	if d > fixedpt.SemiCirc {
		d = fixedpt.FullCirc - d
	}
	return d < arc
}
