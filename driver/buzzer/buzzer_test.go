package buzzer

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// pwmPin records the PWM and level writes it receives.
type pwmPin struct {
	ops    []string
	duty   gpio.Duty
	freq   physic.Frequency
	pwmErr error
	halted bool
}

func (p *pwmPin) String() string   { return "BUZZER" }
func (p *pwmPin) Name() string     { return "BUZZER" }
func (p *pwmPin) Number() int      { return 19 }
func (p *pwmPin) Function() string { return "PWM" }

func (p *pwmPin) Halt() error {
	p.halted = true
	p.ops = append(p.ops, "halt")
	return nil
}

func (p *pwmPin) Out(l gpio.Level) error {
	p.ops = append(p.ops, "out")
	return nil
}

func (p *pwmPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if p.pwmErr != nil {
		return p.pwmErr
	}
	p.duty, p.freq = duty, f
	p.ops = append(p.ops, "pwm")
	return nil
}

func TestPlayTone(t *testing.T) {
	pin := new(pwmPin)
	d := New(pin)
	if err := d.PlayTone(1760*physic.Hertz, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if pin.duty != gpio.DutyHalf {
		t.Errorf("duty = %v, want 50%%", pin.duty)
	}
	if pin.freq != 1760*physic.Hertz {
		t.Errorf("frequency = %v, want 1.760kHz", pin.freq)
	}
	want := []string{"pwm", "out"}
	if len(pin.ops) != len(want) || pin.ops[0] != want[0] || pin.ops[1] != want[1] {
		t.Errorf("pin operations %v, want %v", pin.ops, want)
	}
}

func TestStopIdle(t *testing.T) {
	pin := new(pwmPin)
	d := New(pin)
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	if len(pin.ops) != 0 {
		t.Errorf("pin operations %v, want none", pin.ops)
	}
}

func TestPlayToneError(t *testing.T) {
	pwmErr := errors.New("gpio: pwm unsupported")
	pin := &pwmPin{pwmErr: pwmErr}
	d := New(pin)
	if err := d.PlayTone(440*physic.Hertz, time.Millisecond); !errors.Is(err, pwmErr) {
		t.Errorf("error = %v, want wrapped pwm error", err)
	}
}

func TestClose(t *testing.T) {
	pin := new(pwmPin)
	d := New(pin)
	if err := d.PlayTone(440*physic.Hertz, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !pin.halted {
		t.Error("pin not halted")
	}
	// The device stays usable; PWM is reacquired on the next tone.
	if err := d.PlayTone(440*physic.Hertz, time.Millisecond); err != nil {
		t.Fatal(err)
	}
}
