package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimal = "button:\n  gpio_chip: gpiochip0\n  line: 17\n"

func TestLoad_RequiresButtonOnHardware(t *testing.T) {
	path := writeTempConfig(t, "sensor: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "button.gpio_chip is required unless sim.enable is true")
}

func TestLoad_EmptyFileSimOnlyNeedsEnable(t *testing.T) {
	path := writeTempConfig(t, "sim:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sim.TurnSteps != 360 || cfg.Sim.PressDelay != 2*time.Second || cfg.Sim.Seed != 1 {
		t.Fatalf("sim defaults not applied: %+v", cfg.Sim)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, minimal)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sensor.I2CBus != "/dev/i2c-1" || cfg.Sensor.Addr != 0x1E || cfg.Sensor.Gain != 1090 {
		t.Fatalf("sensor defaults: %+v", cfg.Sensor)
	}
	if cfg.Storage.Backend != StorageFile || cfg.Storage.Path != "compass.cal" || cfg.Storage.Capacity != 512 {
		t.Fatalf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Button.Debounce != 25*time.Millisecond {
		t.Fatalf("debounce=%s want 25ms", cfg.Button.Debounce)
	}
	if cfg.Display.Addr != 0x70 || cfg.Display.Brightness != 10 {
		t.Fatalf("display defaults: %+v", cfg.Display)
	}
	if cfg.Output.Talker != "HC" {
		t.Fatalf("talker=%q want HC", cfg.Output.Talker)
	}
	c := cfg.Compass
	if c.Interval != 50*time.Millisecond || c.TcompPeriod != 6000 || *c.Hysteresis != 128 || c.TiltRatio != 0x02BC {
		t.Fatalf("compass defaults: %+v", c)
	}
	if c.FieldMinMilliGauss != 200 || c.FieldMaxMilliGauss != 800 {
		t.Fatalf("field defaults: %+v", c)
	}
	// Simulator defaults should be populated even if sim is absent.
	if cfg.Sim.Offset == ([3]float32{}) || cfg.Sim.MountDeg == ([3]float32{}) || cfg.Sim.TurnSteps == 0 {
		t.Fatalf("expected sim defaults applied")
	}
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	path := writeTempConfig(t, `
sensor:
  i2c_bus: /dev/i2c-0
  addr: 0x1e
  gain: 390
storage:
  backend: eeprom
  capacity: 1024
  eeprom_addr: 0x54
button:
  gpio_chip: gpiochip4
  line: 5
  debounce: 10ms
display:
  enable: true
  brightness: 3
output:
  enable: true
  dest: 192.168.10.255:10110
  talker: II
compass:
  interval: 20ms
  hysteresis: 64
sim:
  offset: [1, 2, 3]
  mount_deg: [0, 0, 90]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sensor.I2CBus != "/dev/i2c-0" || cfg.Sensor.Gain != 390 {
		t.Fatalf("sensor: %+v", cfg.Sensor)
	}
	if cfg.Storage.EEPROMAddr != 0x54 || cfg.Storage.PageSize != 16 || cfg.Storage.Capacity != 1024 {
		t.Fatalf("storage: %+v", cfg.Storage)
	}
	if cfg.Button.Line != 5 || cfg.Button.Debounce != 10*time.Millisecond {
		t.Fatalf("button: %+v", cfg.Button)
	}
	if !cfg.Output.Enable || cfg.Output.Talker != "II" {
		t.Fatalf("output: %+v", cfg.Output)
	}
	if cfg.Compass.Interval != 20*time.Millisecond || *cfg.Compass.Hysteresis != 64 {
		t.Fatalf("compass: %+v", cfg.Compass)
	}
	if cfg.Sim.Offset != [3]float32{1, 2, 3} || cfg.Sim.MountDeg != [3]float32{0, 0, 90} {
		t.Fatalf("sim: %+v", cfg.Sim)
	}
}

func TestLoad_ExplicitZeroHysteresisKept(t *testing.T) {
	path := writeTempConfig(t, minimal+"compass:\n  hysteresis: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Compass.Hysteresis == nil || *cfg.Compass.Hysteresis != 0 {
		t.Fatalf("hysteresis=%v want explicit 0", cfg.Compass.Hysteresis)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{"Gain", "sensor:\n  gain: 1000\n", "sensor.gain must be one of 1370, 1090, 820, 660, 440, 390, 330, 230"},
		{"SensorAddr", "sensor:\n  addr: 0x80\n", "sensor.addr must be a 7-bit address"},
		{"Backend", "storage:\n  backend: flash\n", "storage.backend must be one of 'file', 'eeprom', 'memory'"},
		{"EEPROMCapacity", "storage:\n  backend: eeprom\n  capacity: 4096\n", "storage.capacity must be <= 2048 when storage.backend is 'eeprom'"},
		{"Brightness", "display:\n  brightness: 16\n", "display.brightness must be 0..15"},
		{"Talker", "output:\n  talker: hc\n", "output.talker must be two upper-case letters"},
		{"OutputDest", "output:\n  enable: true\n", "output.dest is required when output.enable is true"},
		{"Hysteresis", "compass:\n  hysteresis: 20000\n", "compass.hysteresis must be 0..16383"},
		{"TiltRatio", "compass:\n  tilt_ratio: 3000\n", "compass.tilt_ratio must be 0..2048"},
		{"Field", "compass:\n  field_min_mgauss: 900\n", "compass.field_max_mgauss must be > compass.field_min_mgauss >= 0"},
		{"TurnSteps", "sim:\n  turn_steps: 4\n", "sim.turn_steps must be >= 8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, minimal+tc.extra)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_EEPROMRejectedInSim(t *testing.T) {
	path := writeTempConfig(t, "sim:\n  enable: true\nstorage:\n  backend: eeprom\n")
	_, err := Load(path)
	requireErrEq(t, err, "storage.backend 'eeprom' cannot be used with sim.enable")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, minimal+"sensor:\n  bus: /dev/i2c-1\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field bus not found in type config.SensorConfig")
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
