// Command panel drives the touch input layer of a control terminal: a
// GT911 touch controller and a grid of debounced, optionally latching
// buttons. Confirmed presses and icon changes are logged for the
// display compositor to act on.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"crowpanel.dev/config"
	"crowpanel.dev/driver/buzzer"
	"crowpanel.dev/driver/gt911"
	"crowpanel.dev/gui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panel: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	configPath := flag.String("config", "", "panel layout `file`")
	dummy := flag.Bool("dummy", false, "run against a simulated touch controller")
	logFile := flag.String("log", "", "append logs to a rotating `file`")
	hz := flag.Int("hz", 20, "poll rate")
	flag.Parse()

	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	if *logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		})
	}
	if *hz <= 0 {
		return errors.New("invalid poll rate")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	touchCfg := gt911.Config{
		Width:         cfg.Display.Width,
		Height:        cfg.Display.Height,
		SecondaryAddr: cfg.Touch.SecondaryAddr,
	}
	var bus gt911.Bus
	var toner gui.Toner
	if *dummy {
		sim := gt911.NewSimulator()
		sim.SetResolution(cfg.Display.Width, cfg.Display.Height)
		bus = sim
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		b, err := i2creg.Open(cfg.Touch.Bus)
		if err != nil {
			return err
		}
		defer b.Close()
		bus = b
		if touchCfg.Reset, err = pinByName(cfg.Touch.ResetPin); err != nil {
			return err
		}
		if touchCfg.Int, err = pinByName(cfg.Touch.IntPin); err != nil {
			return err
		}
		if cfg.Buzzer.Pin != "" {
			pin, err := pinByName(cfg.Buzzer.Pin)
			if err != nil {
				return err
			}
			bz := buzzer.New(pin)
			defer bz.Close()
			toner = bz
		}
	}

	dev, err := gt911.New(bus, touchCfg)
	if err != nil {
		return err
	}
	if err := dev.Configure(); err != nil {
		return err
	}
	id, err := dev.ProductID()
	if err != nil {
		return err
	}
	log.Printf("panel: touch controller %s firmware %04x vendor %02x", id.Product, id.Firmware, id.Vendor)
	res, err := dev.Resolution()
	if err != nil {
		return err
	}
	if res.X != cfg.Display.Width || res.Y != cfg.Display.Height {
		return fmt.Errorf("%w: controller reports %dx%d, want %dx%d",
			gt911.ErrConfigMismatch, res.X, res.Y, cfg.Display.Width, cfg.Display.Height)
	}

	buttons := make([]*gui.Button, 0, len(cfg.Buttons.Layout))
	for i, bc := range cfg.Buttons.Layout {
		btn, err := gui.NewButton(gui.ButtonConfig{
			Name:          bc.Name,
			Pos:           cfg.Buttons.Position(i),
			Size:          cfg.Buttons.Cell,
			Latching:      bc.Latching,
			DebounceDelay: time.Duration(cfg.Buttons.DebounceMs) * time.Millisecond,
			Icon:          &iconLogger{name: bc.Name},
			Toner:         toner,
			ToneFrequency: physic.Frequency(cfg.Buzzer.FrequencyHz) * physic.Hertz,
			ToneDuration:  time.Duration(cfg.Buzzer.DurationMs) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		buttons = append(buttons, btn)
	}

	tick := time.NewTicker(time.Second / time.Duration(*hz))
	defer tick.Stop()
	for now := range tick.C {
		sample, err := dev.ReadTouches()
		if err != nil {
			return err
		}
		for _, btn := range buttons {
			if btn.Update(sample, now) {
				log.Printf("panel: button %s pressed (indicator %v)", btn.Name(), btn.Indicator())
			}
		}
	}
	return nil
}

func pinByName(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no pin named %q", name)
	}
	return pin, nil
}

// iconLogger stands in for the display widget owning the button's icon
// atlas; rendering is composed by a separate process watching the log.
type iconLogger struct {
	name string
	last int
}

func (l *iconLogger) SetIcon(index int) {
	if index == l.last {
		return
	}
	l.last = index
	log.Printf("panel: button %s icon %d", l.name, index)
}
