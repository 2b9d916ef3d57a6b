// Package hmc5883l drives the HMC5883L 3-axis magnetometer.
//
// The part is kept idle between readings and triggered in single
// measurement mode; conversion takes at most 1/160 s at the default
// configuration, so we wait instead of polling the status register.
package hmc5883l

import (
	"fmt"
	"time"

	"compass-ng/internal/fixedpt"
	"compass-ng/internal/geom"
	"compass-ng/internal/i2c"
	"compass-ng/internal/sensors"
)

var sleep = time.Sleep

const (
	addrDefault = 0x1E

	regConfigA = 0x00
	regConfigB = 0x01
	regMode    = 0x02
	regDataX   = 0x03 // X, Z, Y, MSB first
	regIdentA  = 0x0A

	modeSingle = 0x01
	modeIdle   = 0x03

	avg8 = 0x03 << 5

	biasNone = 0x00
	biasPos  = 0x01

	axisSaturated = -4096

	conversionWait = 6250 * time.Microsecond

	// Self-test limits from the data sheet, stated at 390 LSb/Ga.
	selfTestMin    = 243
	selfTestMax    = 575
	selfTestRefLSb = 390
)

var ident = [3]byte{'H', '4', '3'}

// gains lists the selectable CRB gain settings in LSb/Ga, index = GN bits.
var gains = [...]int{1370, 1090, 820, 660, 440, 390, 330, 230}

const DefaultGain = 1090

type regIO interface {
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
	WriteRegs(reg byte, values []byte) error
}

type Device struct {
	dev     regIO
	gainIdx byte
}

func DefaultAddress() uint16 { return addrDefault }

// Gains returns the supported gain settings in LSb/Ga.
func Gains() []int { return append([]int(nil), gains[:]...) }

func New(dev *i2c.Dev, gain int) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("hmc5883l: dev is nil")
	}
	return newWithIO(dev, gain)
}

func newWithIO(dev regIO, gain int) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("hmc5883l: dev is nil")
	}
	if gain == 0 {
		gain = DefaultGain
	}
	idx := -1
	for i, g := range gains {
		if g == gain {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("hmc5883l: unsupported gain %d LSb/Ga", gain)
	}
	d := &Device{dev: dev, gainIdx: byte(idx)}

	var id [3]byte
	if err := d.dev.ReadReg(regIdentA, id[:]); err != nil {
		return nil, fmt.Errorf("hmc5883l: ident read failed: %w", err)
	}
	if id != ident {
		return nil, fmt.Errorf("hmc5883l: ident=%q want %q", id[:], ident[:])
	}

	if err := d.configure(biasNone); err != nil {
		return nil, err
	}
	// A gain change takes effect one measurement late.
	if _, err := d.Read(); err != nil {
		return nil, fmt.Errorf("hmc5883l: discard read failed: %w", err)
	}
	return d, nil
}

// Gain returns the configured gain in LSb/Ga.
func (d *Device) Gain() int { return gains[d.gainIdx] }

// configure writes CRA, CRB and the mode register in one burst and leaves the
// part idle.
func (d *Device) configure(bias byte) error {
	if err := d.dev.WriteRegs(regConfigA, []byte{avg8 | bias, d.gainIdx << 5, modeIdle}); err != nil {
		return fmt.Errorf("hmc5883l: configure failed: %w", err)
	}
	return nil
}

// Read triggers a single measurement and returns it in sensor counts.
func (d *Device) Read() (geom.Position, error) {
	if err := d.dev.WriteReg(regMode, modeSingle); err != nil {
		return geom.Position{}, fmt.Errorf("hmc5883l: trigger failed: %w", err)
	}
	sleep(conversionWait)

	var b [6]byte
	if err := d.dev.ReadReg(regDataX, b[:]); err != nil {
		return geom.Position{}, fmt.Errorf("hmc5883l: read failed: %w", err)
	}
	x := be16(b[0:2])
	z := be16(b[2:4])
	y := be16(b[4:6])
	if x == axisSaturated || y == axisSaturated || z == axisSaturated {
		return geom.Position{}, fmt.Errorf("hmc5883l: x=%d y=%d z=%d: %w", x, y, z, sensors.ErrSaturated)
	}
	return geom.Position{X: fixedpt.Fixed(x), Y: fixedpt.Fixed(y), Z: fixedpt.Fixed(z)}, nil
}

// SelfTest takes one measurement with the positive bias strap energized
// (about 1.1 Ga superimposed on each axis) and checks it against the
// data-sheet limits scaled to the configured gain. The part is returned to
// normal operation even if the measurement fails.
func (d *Device) SelfTest() (geom.Position, error) {
	if err := d.configure(biasPos); err != nil {
		return geom.Position{}, err
	}
	p, rerr := d.Read()
	if err := d.configure(biasNone); err != nil {
		return geom.Position{}, err
	}
	if rerr != nil {
		return geom.Position{}, rerr
	}

	lo, hi := SelfTestLimits(d.Gain())
	for _, v := range []fixedpt.Fixed{p.X, p.Y, p.Z} {
		if int(v) < lo || int(v) > hi {
			return p, fmt.Errorf("hmc5883l: self-test %d,%d,%d outside %d..%d: %w",
				p.X, p.Y, p.Z, lo, hi, sensors.ErrSelfTest)
		}
	}
	return p, nil
}

// SelfTestLimits returns the inclusive acceptable self-test range at gain.
func SelfTestLimits(gain int) (lo, hi int) {
	return selfTestMin * gain / selfTestRefLSb, selfTestMax * gain / selfTestRefLSb
}

func be16(b []byte) int16 { return int16(uint16(b[0])<<8 | uint16(b[1])) }

var _ sensors.Magnetometer = (*Device)(nil)
