package ht16k33

import (
	"errors"
	"testing"

	"compass-ng/internal/display"
)

type fakeI2C struct {
	cmds   []byte
	ram    [][]byte
	errRAM error
}

func (f *fakeI2C) Write(p []byte) error {
	f.cmds = append(f.cmds, p...)
	return nil
}

func (f *fakeI2C) WriteRegs(reg byte, values []byte) error {
	if f.errRAM != nil {
		return f.errRAM
	}
	if reg != ramStart {
		return errors.New("unexpected register")
	}
	f.ram = append(f.ram, append([]byte(nil), values...))
	return nil
}

func TestNew_InitSequence(t *testing.T) {
	f := &fakeI2C{}
	if _, err := newWithIO(f, 10); err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	want := []byte{cmdOscOn, cmdBrightness | 10, cmdDisplayOn}
	if string(f.cmds) != string(want) {
		t.Fatalf("cmds=% X want % X", f.cmds, want)
	}
	if len(f.ram) != 1 {
		t.Fatalf("ram writes=%d want 1 (blank)", len(f.ram))
	}
	for i, b := range f.ram[0] {
		if b != 0 {
			t.Fatalf("ram[%d]=0x%02X want blank", i, b)
		}
	}
}

func TestNew_BrightnessRange(t *testing.T) {
	for _, b := range []int{-1, 16} {
		if _, err := newWithIO(&fakeI2C{}, b); err == nil {
			t.Fatalf("brightness %d: expected error", b)
		}
	}
}

func TestDraw_RotatesColumns(t *testing.T) {
	f := &fakeI2C{}
	m, err := newWithIO(f, 0)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	if err := m.Draw(display.Image{0: 0x80, 1: 0x01, 7: 0xFF}); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	ram := f.ram[len(f.ram)-1]
	if len(ram) != 16 {
		t.Fatalf("len=%d want 16", len(ram))
	}
	if ram[0] != 0x40 || ram[2] != 0x80 || ram[14] != 0xFF {
		t.Fatalf("ram=% X", ram)
	}
	for i := 1; i < 16; i += 2 {
		if ram[i] != 0 {
			t.Fatalf("odd ram[%d]=0x%02X want 0", i, ram[i])
		}
	}
}

func TestDraw_WrapsError(t *testing.T) {
	f := &fakeI2C{}
	m, err := newWithIO(f, 0)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	busErr := errors.New("nak")
	f.errRAM = busErr
	if err := m.Draw(display.Lamp); !errors.Is(err, busErr) {
		t.Fatalf("err=%v want wrapped nak", err)
	}
}

func TestClose_BlanksAndTurnsOff(t *testing.T) {
	f := &fakeI2C{}
	m, err := newWithIO(f, 0)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.cmds[len(f.cmds)-1] != cmdDisplayOff {
		t.Fatalf("last cmd=0x%02X want display off", f.cmds[len(f.cmds)-1])
	}
}
