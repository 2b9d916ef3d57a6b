// Package ht16k33 drives an HT16K33 LED controller on an 8x8 matrix backpack.
//
// Display RAM holds 16 column bytes per row pair; an 8x8 matrix uses the
// even addresses only. On the common backpack the column wiring is rotated
// by one bit relative to the image, so rows are rotated before writing.
package ht16k33

import (
	"fmt"

	"compass-ng/internal/display"
	"compass-ng/internal/i2c"
)

const (
	addrDefault = 0x70

	cmdOscOn      = 0x21
	cmdDisplayOn  = 0x81 // display on, blink off
	cmdDisplayOff = 0x80
	cmdBrightness = 0xE0

	ramStart = 0x00

	MaxBrightness = 15
)

type regIO interface {
	Write(p []byte) error
	WriteRegs(reg byte, values []byte) error
}

type Matrix struct {
	dev regIO
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev, brightness int) (*Matrix, error) {
	if dev == nil {
		return nil, fmt.Errorf("ht16k33: dev is nil")
	}
	return newWithIO(dev, brightness)
}

func newWithIO(dev regIO, brightness int) (*Matrix, error) {
	if dev == nil {
		return nil, fmt.Errorf("ht16k33: dev is nil")
	}
	if brightness < 0 || brightness > MaxBrightness {
		return nil, fmt.Errorf("ht16k33: brightness %d out of range 0..%d", brightness, MaxBrightness)
	}
	m := &Matrix{dev: dev}
	if err := m.dev.Write([]byte{cmdOscOn}); err != nil {
		return nil, fmt.Errorf("ht16k33: oscillator on failed: %w", err)
	}
	if err := m.Draw(display.Blank); err != nil {
		return nil, err
	}
	if err := m.dev.Write([]byte{cmdBrightness | byte(brightness)}); err != nil {
		return nil, fmt.Errorf("ht16k33: brightness failed: %w", err)
	}
	if err := m.dev.Write([]byte{cmdDisplayOn}); err != nil {
		return nil, fmt.Errorf("ht16k33: display on failed: %w", err)
	}
	return m, nil
}

func (m *Matrix) Draw(img display.Image) error {
	var ram [16]byte
	for i, row := range img {
		ram[2*i] = row>>1 | row<<7
	}
	if err := m.dev.WriteRegs(ramStart, ram[:]); err != nil {
		return fmt.Errorf("ht16k33: draw failed: %w", err)
	}
	return nil
}

// Close blanks the matrix and turns the display off.
func (m *Matrix) Close() error {
	if err := m.Draw(display.Blank); err != nil {
		return err
	}
	if err := m.dev.Write([]byte{cmdDisplayOff}); err != nil {
		return fmt.Errorf("ht16k33: display off failed: %w", err)
	}
	return nil
}

var _ display.Drawer = (*Matrix)(nil)
