// Package buzzer implements a tone generator for a passive buzzer on a
// PWM capable GPIO pin.
package buzzer

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type Device struct {
	pin     gpio.PinOut
	playing bool
}

func New(pin gpio.PinOut) *Device {
	return &Device{pin: pin}
}

// PlayTone sounds a square wave at frequency f for the given duration.
// It blocks until the tone has finished. The PWM output is acquired
// lazily on each call, so the device is usable again after Close.
func (d *Device) PlayTone(f physic.Frequency, dur time.Duration) error {
	if err := d.pin.PWM(gpio.DutyHalf, f); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}
	d.playing = true
	time.Sleep(dur)
	return d.Stop()
}

// Stop silences the buzzer. It is safe to call when no tone is
// playing.
func (d *Device) Stop() error {
	if !d.playing {
		return nil
	}
	d.playing = false
	if err := d.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}
	return nil
}

// Close releases the pin.
func (d *Device) Close() error {
	d.playing = false
	if err := d.pin.Halt(); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}
	return nil
}
