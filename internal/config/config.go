package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Sensor  SensorConfig  `yaml:"sensor"`
	Storage StorageConfig `yaml:"storage"`
	Button  ButtonConfig  `yaml:"button"`
	Display DisplayConfig `yaml:"display"`
	Output  OutputConfig  `yaml:"output"`
	Compass CompassConfig `yaml:"compass"`
	Sim     SimConfig     `yaml:"sim"`
}

type SensorConfig struct {
	I2CBus string `yaml:"i2c_bus"`
	Addr   uint16 `yaml:"addr"`
	// Gain in LSb/Ga.
	Gain int `yaml:"gain"`
}

const (
	StorageFile   = "file"
	StorageEEPROM = "eeprom"
	StorageMemory = "memory"
)

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Capacity   int    `yaml:"capacity"`
	EEPROMAddr uint16 `yaml:"eeprom_addr"`
	PageSize   int    `yaml:"page_size"`
}

type ButtonConfig struct {
	GPIOChip string        `yaml:"gpio_chip"`
	Line     int           `yaml:"line"`
	Debounce time.Duration `yaml:"debounce"`
}

type DisplayConfig struct {
	Enable     bool   `yaml:"enable"`
	Addr       uint16 `yaml:"addr"`
	Brightness int    `yaml:"brightness"`
}

type OutputConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
	Talker string `yaml:"talker"`
}

type CompassConfig struct {
	// Interval is the minimum time between readings.
	Interval time.Duration `yaml:"interval"`
	// TcompPeriod is the number of readings between sensor self-tests used
	// for temperature compensation.
	TcompPeriod int `yaml:"tcomp_period"`
	// Hysteresis in binary radians (16384 = 180 degrees). Unset means 128;
	// an explicit 0 turns it off.
	Hysteresis *int `yaml:"hysteresis"`
	// TiltRatio is sin(max tilt) in fixed point (2048 = 1.0).
	TiltRatio int `yaml:"tilt_ratio"`
	// Plausible field magnitude in milligauss.
	FieldMinMilliGauss int `yaml:"field_min_mgauss"`
	FieldMaxMilliGauss int `yaml:"field_max_mgauss"`
	// Recalibrate forces a calibration at start-up even if one is stored.
	Recalibrate bool `yaml:"recalibrate"`
}

type SimConfig struct {
	Enable     bool          `yaml:"enable"`
	Script     string        `yaml:"script"`
	Offset     [3]float32    `yaml:"offset"`
	MountDeg   [3]float32    `yaml:"mount_deg"`
	Noise      int           `yaml:"noise"`
	Seed       int64         `yaml:"seed"`
	PressDelay time.Duration `yaml:"press_delay"`
	TurnSteps  int           `yaml:"turn_steps"`
}

var talkerRe = regexp.MustCompile(`^[A-Z]{2}$`)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) && allUnknownFields(te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLines(te.Errors), "; "))
		}
		return Config{}, err
	}

	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	// Sensor.
	if cfg.Sensor.I2CBus == "" {
		cfg.Sensor.I2CBus = "/dev/i2c-1"
	}
	if cfg.Sensor.Addr == 0 {
		cfg.Sensor.Addr = 0x1E
	}
	if cfg.Sensor.Addr > 0x7F {
		return fmt.Errorf("sensor.addr must be a 7-bit address")
	}
	if cfg.Sensor.Gain == 0 {
		cfg.Sensor.Gain = 1090
	}
	switch cfg.Sensor.Gain {
	case 1370, 1090, 820, 660, 440, 390, 330, 230:
	default:
		return fmt.Errorf("sensor.gain must be one of 1370, 1090, 820, 660, 440, 390, 330, 230")
	}

	// Storage.
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
	}
	if cfg.Storage.Capacity == 0 {
		cfg.Storage.Capacity = 512
	}
	if cfg.Storage.Capacity < 0 {
		return fmt.Errorf("storage.capacity must be > 0")
	}
	switch cfg.Storage.Backend {
	case StorageFile:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = "compass.cal"
		}
	case StorageEEPROM:
		if cfg.Sim.Enable {
			return fmt.Errorf("storage.backend 'eeprom' cannot be used with sim.enable")
		}
		if cfg.Storage.Capacity > 2048 {
			return fmt.Errorf("storage.capacity must be <= 2048 when storage.backend is 'eeprom'")
		}
		if cfg.Storage.EEPROMAddr == 0 {
			cfg.Storage.EEPROMAddr = 0x50
		}
		if cfg.Storage.PageSize == 0 {
			cfg.Storage.PageSize = 16
		}
		if cfg.Storage.PageSize < 0 {
			return fmt.Errorf("storage.page_size must be > 0")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.backend must be one of 'file', 'eeprom', 'memory'")
	}

	// Button.
	if cfg.Button.Debounce == 0 {
		cfg.Button.Debounce = 25 * time.Millisecond
	}
	if cfg.Button.Debounce < 0 {
		return fmt.Errorf("button.debounce must be >= 0")
	}
	if !cfg.Sim.Enable {
		if cfg.Button.GPIOChip == "" {
			return fmt.Errorf("button.gpio_chip is required unless sim.enable is true")
		}
		if cfg.Button.Line < 0 {
			return fmt.Errorf("button.line must be >= 0")
		}
	}

	// Display.
	if cfg.Display.Addr == 0 {
		cfg.Display.Addr = 0x70
	}
	if cfg.Display.Brightness == 0 {
		cfg.Display.Brightness = 10
	}
	if cfg.Display.Brightness < 0 || cfg.Display.Brightness > 15 {
		return fmt.Errorf("display.brightness must be 0..15")
	}

	// Output.
	if cfg.Output.Talker == "" {
		cfg.Output.Talker = "HC"
	}
	if !talkerRe.MatchString(cfg.Output.Talker) {
		return fmt.Errorf("output.talker must be two upper-case letters")
	}
	if cfg.Output.Enable && cfg.Output.Dest == "" {
		return fmt.Errorf("output.dest is required when output.enable is true")
	}

	// Control loop.
	if cfg.Compass.Interval == 0 {
		cfg.Compass.Interval = 50 * time.Millisecond
	}
	if cfg.Compass.Interval < 0 {
		return fmt.Errorf("compass.interval must be >= 0")
	}
	if cfg.Compass.TcompPeriod == 0 {
		cfg.Compass.TcompPeriod = 6000
	}
	if cfg.Compass.TcompPeriod < 0 {
		return fmt.Errorf("compass.tcomp_period must be > 0")
	}
	if cfg.Compass.Hysteresis == nil {
		h := 128 // 1/256 of a circle
		cfg.Compass.Hysteresis = &h
	}
	if h := *cfg.Compass.Hysteresis; h < 0 || h >= 16384 {
		return fmt.Errorf("compass.hysteresis must be 0..16383")
	}
	if cfg.Compass.TiltRatio == 0 {
		cfg.Compass.TiltRatio = 0x02BC
	}
	if cfg.Compass.TiltRatio < 0 || cfg.Compass.TiltRatio > 2048 {
		return fmt.Errorf("compass.tilt_ratio must be 0..2048")
	}
	if cfg.Compass.FieldMinMilliGauss == 0 {
		cfg.Compass.FieldMinMilliGauss = 200
	}
	if cfg.Compass.FieldMaxMilliGauss == 0 {
		cfg.Compass.FieldMaxMilliGauss = 800
	}
	if cfg.Compass.FieldMinMilliGauss < 0 || cfg.Compass.FieldMaxMilliGauss <= cfg.Compass.FieldMinMilliGauss {
		return fmt.Errorf("compass.field_max_mgauss must be > compass.field_min_mgauss >= 0")
	}

	// Simulator defaults (safe even if disabled).
	if cfg.Sim.Offset == ([3]float32{}) {
		cfg.Sim.Offset = [3]float32{120, -80, 45}
	}
	if cfg.Sim.MountDeg == ([3]float32{}) {
		cfg.Sim.MountDeg = [3]float32{6, -4, 25}
	}
	if cfg.Sim.Noise < 0 {
		return fmt.Errorf("sim.noise must be >= 0")
	}
	if cfg.Sim.Seed == 0 {
		cfg.Sim.Seed = 1
	}
	if cfg.Sim.PressDelay == 0 {
		cfg.Sim.PressDelay = 2 * time.Second
	}
	if cfg.Sim.TurnSteps == 0 {
		cfg.Sim.TurnSteps = 360
	}
	if cfg.Sim.TurnSteps < 8 {
		return fmt.Errorf("sim.turn_steps must be >= 8")
	}
	return nil
}

func allUnknownFields(te *yaml.TypeError) bool {
	if len(te.Errors) == 0 {
		return false
	}
	for _, e := range te.Errors {
		if !strings.Contains(e, " not found in type ") {
			return false
		}
	}
	return true
}

var lineRe = regexp.MustCompile(`^line \d+: `)

func stripLines(errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, lineRe.ReplaceAllString(e, ""))
	}
	return out
}
