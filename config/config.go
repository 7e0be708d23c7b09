// Package config loads the panel layout and hardware wiring from a
// YAML file.
package config

import (
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v2"
)

// Panel is the complete panel configuration.
type Panel struct {
	Display DisplayConfig `yaml:"display"`
	Touch   TouchConfig   `yaml:"touch"`
	Buzzer  BuzzerConfig  `yaml:"buzzer"`
	Buttons ButtonsConfig `yaml:"buttons"`
}

// DisplayConfig is the panel resolution the touch controller reports
// coordinates in.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TouchConfig is the touch controller wiring.
type TouchConfig struct {
	// Bus is the I²C bus name; empty selects the first available bus.
	Bus string `yaml:"bus"`
	// ResetPin and IntPin name the RESET and INT lines; either may be
	// empty when not wired.
	ResetPin string `yaml:"resetPin"`
	IntPin   string `yaml:"intPin"`
	// SecondaryAddr selects the controller's secondary I²C address
	// during reset.
	SecondaryAddr bool `yaml:"secondaryAddr"`
}

// BuzzerConfig is the feedback tone wiring and parameters.
type BuzzerConfig struct {
	// Pin names the buzzer line; empty disables tone feedback.
	Pin         string `yaml:"pin"`
	FrequencyHz int    `yaml:"frequencyHz"`
	DurationMs  int    `yaml:"durationMs"`
}

// ButtonsConfig is the button grid, laid out row-major on square cells.
type ButtonsConfig struct {
	DebounceMs int `yaml:"debounceMs"`
	// Cell is the side length of a button cell in pixels.
	Cell    int            `yaml:"cell"`
	Columns int            `yaml:"columns"`
	Layout  []ButtonConfig `yaml:"layout"`
}

type ButtonConfig struct {
	Name     string `yaml:"name"`
	Latching bool   `yaml:"latching"`
}

// Position returns the top-left corner of the i-th cell.
func (c *ButtonsConfig) Position(i int) image.Point {
	return image.Pt((i%c.Columns)*c.Cell, (i/c.Columns)*c.Cell)
}

// Default returns the configuration of the stock panel hardware.
func Default() *Panel {
	return &Panel{
		Display: DisplayConfig{Width: 320, Height: 240},
		Touch: TouchConfig{
			ResetPin: "GPIO5",
			IntPin:   "GPIO6",
		},
		Buzzer: BuzzerConfig{
			Pin:         "GPIO13",
			FrequencyHz: 1760,
			DurationMs:  2,
		},
		Buttons: ButtonsConfig{
			DebounceMs: 150,
			Cell:       80,
			Columns:    2,
			Layout: []ButtonConfig{
				{Name: "panda", Latching: true},
				{Name: "pig", Latching: true},
				{Name: "deer"},
				{Name: "tiger"},
				{Name: "elephant"},
				{Name: "fox"},
			},
		},
	}
}

// Load returns the default configuration overridden by the YAML file
// at path, if any.
func Load(path string) (*Panel, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (p *Panel) validate() error {
	if p.Display.Width <= 0 || p.Display.Height <= 0 {
		return fmt.Errorf("invalid display resolution %dx%d", p.Display.Width, p.Display.Height)
	}
	if p.Buzzer.Pin != "" && (p.Buzzer.FrequencyHz <= 0 || p.Buzzer.DurationMs <= 0) {
		return fmt.Errorf("invalid tone %dHz/%dms", p.Buzzer.FrequencyHz, p.Buzzer.DurationMs)
	}
	b := &p.Buttons
	if b.DebounceMs <= 0 {
		return fmt.Errorf("invalid debounce delay %dms", b.DebounceMs)
	}
	if b.Cell <= 0 || b.Columns <= 0 {
		return fmt.Errorf("invalid grid cell %d, columns %d", b.Cell, b.Columns)
	}
	for i, btn := range b.Layout {
		if btn.Name == "" {
			return fmt.Errorf("button %d has no name", i)
		}
	}
	rows := (len(b.Layout) + b.Columns - 1) / b.Columns
	if b.Columns*b.Cell > p.Display.Width || rows*b.Cell > p.Display.Height {
		return fmt.Errorf("%d button grid does not fit %dx%d display",
			len(b.Layout), p.Display.Width, p.Display.Height)
	}
	return nil
}
