//go:build linux

package button

import (
	"testing"

	"github.com/warthog618/go-gpiocdev"
)

func TestGPIOHandle_RisingEdgeIsPress(t *testing.T) {
	g := &GPIO{Button: New(nil)}

	g.handle(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})
	if g.Activated() {
		t.Fatalf("release counted as press")
	}
	g.handle(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge})
	if !g.Activated() {
		t.Fatalf("press not latched")
	}
}

func TestOpenGPIO_InvalidLine(t *testing.T) {
	if _, err := OpenGPIO("gpiochip0", -1, 0, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGPIOClose_Nil(t *testing.T) {
	var g *GPIO
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
