//go:build linux

package button

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO is a momentary push button between a GPIO line and ground, read
// through the Linux GPIO character device. The line is biased with the
// internal pull-up and treated as active-low, so a press is a logical rising
// edge.
type GPIO struct {
	*Button
	line *gpiocdev.Line
}

// OpenGPIO requests offset on chip (e.g. "gpiochip0") and feeds debounced
// presses into a Button.
func OpenGPIO(chip string, offset int, debounce time.Duration, onPress func()) (*GPIO, error) {
	if offset < 0 {
		return nil, fmt.Errorf("button: invalid gpio line %d", offset)
	}
	g := &GPIO{Button: New(onPress)}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithConsumer("compass-button"),
		gpiocdev.WithEventHandler(g.handle),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}
	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("button: request %s line %d: %w", chip, offset, err)
	}
	g.line = line
	log.Printf("button: watching %s line %d debounce=%s", chip, offset, debounce)
	return g, nil
}

func (g *GPIO) handle(evt gpiocdev.LineEvent) {
	if evt.Type == gpiocdev.LineEventRisingEdge {
		g.Press()
	}
}

func (g *GPIO) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	return err
}
