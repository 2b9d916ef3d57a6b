package main

import (
	"fmt"
	"log"

	"compass-ng/internal/button"
	"compass-ng/internal/calibrate"
	"compass-ng/internal/compass"
	"compass-ng/internal/config"
	"compass-ng/internal/display"
	"compass-ng/internal/display/ht16k33"
	"compass-ng/internal/eeprom"
	"compass-ng/internal/fixedpt"
	"compass-ng/internal/i2c"
	"compass-ng/internal/sensors"
	"compass-ng/internal/sensors/hmc5883l"
	"compass-ng/internal/sim"
	"compass-ng/internal/storedcal"
	"compass-ng/internal/udp"
	"compass-ng/internal/validate"
)

type closer interface{ Close() error }

// runtime holds everything wired from the config.
type runtime struct {
	svc     *compass.Service
	store   *storedcal.Store
	closers []closer
}

func (rt *runtime) Close() {
	// Reverse order: devices before the bus they sit on.
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	rt.closers = nil
}

func build(cfg config.Config) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	var bus *i2c.Bus
	needBus := !cfg.Sim.Enable || cfg.Storage.Backend == config.StorageEEPROM
	if needBus {
		bus, err = i2c.Open(cfg.Sensor.I2CBus)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, bus)
	}

	dev, err := openStorage(cfg.Storage, bus)
	if err != nil {
		return nil, err
	}
	if c, ok := dev.(closer); ok {
		rt.closers = append(rt.closers, c)
	}
	rt.store, err = storedcal.New(dev, calibrate.RecordSize)
	if err != nil {
		return nil, err
	}
	log.Printf("storage: backend=%s capacity=%d slots=%d", cfg.Storage.Backend, dev.Size(), rt.store.Slots())

	var drawer display.Drawer
	switch {
	case cfg.Display.Enable && !cfg.Sim.Enable:
		m, err := ht16k33.New(bus.Dev(cfg.Display.Addr), cfg.Display.Brightness)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, m)
		drawer = m
	case cfg.Display.Enable:
		drawer = &display.Logger{}
	}
	lamp := lampTest(drawer)

	svcCfg := compass.Config{
		Store:       rt.store,
		Display:     drawer,
		Interval:    cfg.Compass.Interval,
		TcompPeriod: cfg.Compass.TcompPeriod,
		Hysteresis:  fixedpt.BRad(*cfg.Compass.Hysteresis),
		Limits:      limits(cfg.Sensor.Gain, cfg.Compass),
		Recalibrate: cfg.Compass.Recalibrate,
	}

	if cfg.Sim.Enable {
		mag, op, btn, err := buildSim(cfg, lamp)
		if err != nil {
			return nil, err
		}
		svcCfg.Sensor, svcCfg.Input, svcCfg.OnPrompt = mag, btn, op.Prompt
	} else {
		mag, err := hmc5883l.New(bus.Dev(cfg.Sensor.Addr), cfg.Sensor.Gain)
		if err != nil {
			return nil, err
		}
		log.Printf("hmc5883l: ready addr=0x%02X gain=%d", cfg.Sensor.Addr, mag.Gain())
		btn, err := button.OpenGPIO(cfg.Button.GPIOChip, cfg.Button.Line, cfg.Button.Debounce, lamp)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, btn)
		svcCfg.Sensor, svcCfg.Input = sensors.Magnetometer(mag), btn
	}

	if cfg.Output.Enable {
		b, err := udp.NewBroadcaster(cfg.Output.Dest)
		if err != nil {
			return nil, err
		}
		hs := udp.NewHeadingSender(b, cfg.Output.Talker)
		rt.closers = append(rt.closers, hs)
		svcCfg.Output = hs
		log.Printf("udp: nmea dest=%s talker=%s", cfg.Output.Dest, cfg.Output.Talker)
	}

	rt.svc, err = compass.New(svcCfg)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func openStorage(sc config.StorageConfig, bus *i2c.Bus) (storedcal.Device, error) {
	switch sc.Backend {
	case config.StorageFile:
		return eeprom.OpenFile(sc.Path, int64(sc.Capacity))
	case config.StorageEEPROM:
		return eeprom.NewAT24(bus, sc.EEPROMAddr, int64(sc.Capacity), sc.PageSize)
	case config.StorageMemory:
		return eeprom.NewMem(sc.Capacity), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", sc.Backend)
}

func buildSim(cfg config.Config, lamp func()) (*sim.Magnetometer, *sim.Operator, *button.Button, error) {
	var plan *sim.Plan
	if cfg.Sim.Script != "" {
		script, err := sim.LoadScript(cfg.Sim.Script)
		if err != nil {
			return nil, nil, nil, err
		}
		plan, err = sim.NewPlan(script)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sim: %s: %w", cfg.Sim.Script, err)
		}
	}
	mc := sim.DefaultMagConfig()
	mc.Gain = cfg.Sensor.Gain
	mc.Offset = cfg.Sim.Offset
	mc.MountDeg = cfg.Sim.MountDeg
	mc.Noise = cfg.Sim.Noise
	mc.Seed = cfg.Sim.Seed
	mag, err := sim.NewMagnetometer(mc, plan)
	if err != nil {
		return nil, nil, nil, err
	}
	btn := button.New(lamp)
	op := &sim.Operator{Mag: mag, Button: btn, Delay: cfg.Sim.PressDelay, TurnSteps: cfg.Sim.TurnSteps}
	log.Printf("sim: magnetometer gain=%d offset=%v mount=%v noise=%d", mc.Gain, mc.Offset, mc.MountDeg, mc.Noise)
	return mag, op, btn, nil
}

// lampTest returns the button press callback that lights the whole matrix.
// It runs on the GPIO event goroutine, so failures are only logged.
func lampTest(drawer display.Drawer) func() {
	return func() {
		if drawer == nil {
			return
		}
		if err := drawer.Draw(display.Lamp); err != nil {
			log.Printf("button: lamp test draw failed: %v", err)
		}
	}
}

// limits converts the configured field bounds to sensor counts at gain.
func limits(gain int, cc config.CompassConfig) validate.Limits {
	return validate.Limits{
		TiltRatio: fixedpt.Fixed(cc.TiltRatio),
		MagMin:    fixedpt.Fixed(gain * cc.FieldMinMilliGauss / 1000),
		MagMax:    fixedpt.Fixed(gain * cc.FieldMaxMilliGauss / 1000),
	}
}
