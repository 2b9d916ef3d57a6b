//go:build !linux

package button

import (
	"fmt"
	"time"
)

type GPIO struct {
	*Button
}

func OpenGPIO(chip string, offset int, debounce time.Duration, onPress func()) (*GPIO, error) {
	return nil, fmt.Errorf("button: gpio unsupported OS (need linux)")
}

func (g *GPIO) Close() error { return nil }
