// Package gui implements the touch widgets of the panel interface.
package gui

import (
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/physic"

	"crowpanel.dev/driver/gt911"
)

// Icon displays one of the variants of a button's icon atlas.
// Rendering is owned by the display compositor; widgets only select
// the variant index.
type Icon interface {
	SetIcon(index int)
}

// Toner sounds a feedback tone. PlayTone blocks for the duration of
// the tone.
type Toner interface {
	PlayTone(f physic.Frequency, d time.Duration) error
}

// Icon variants, in tile order of the button icon atlas.
const (
	IconNormal = iota
	IconPressed
	IconIndicator
	IconIndicatorPressed
)

// DefaultDebounceDelay is how long a contact must be held before a
// press can be confirmed.
const DefaultDebounceDelay = 150 * time.Millisecond

// The press cycle is a six-state machine. The indicator states mirror
// the plain states with the latch held on, folded into a single
// enumeration instead of a separate latch flag.
//
//	normal -> pressed -> debounced -> normal (or indicator when latching)
//	indicator -> indicatorPressed -> indicatorDebounced -> normal
type buttonState int

const (
	stateNormal buttonState = iota
	statePressed
	stateDebounced
	stateIndicator
	stateIndicatorPressed
	stateIndicatorDebounced
)

type ButtonConfig struct {
	// Name identifies the button in logs and selects its icon atlas.
	Name string
	// Pos is the top-left corner of the square hit region, Size its
	// side length. A contact anywhere in [x, x+size] x [y, y+size]
	// counts as touching the button.
	Pos  image.Point
	Size int
	// Latching selects toggle behavior: every other confirmed press
	// leaves the button latched in its indicator state.
	Latching bool
	// DebounceDelay overrides DefaultDebounceDelay when non-zero.
	DebounceDelay time.Duration
	// Icon, when set, receives the icon variant on visible state
	// changes.
	Icon Icon
	// Toner, when set, sounds ToneFrequency for ToneDuration when a
	// contact survives the debounce delay.
	Toner         Toner
	ToneFrequency physic.Frequency
	ToneDuration  time.Duration
}

// Button debounces touch contacts over its hit region into confirmed
// presses. It is not safe for concurrent use; the panel loop owns it.
type Button struct {
	name     string
	pos      image.Point
	size     int
	latching bool
	delay    time.Duration
	icon     Icon
	toner    Toner
	toneFreq physic.Frequency
	toneDur  time.Duration

	state     buttonState
	lastTouch time.Time
	touched   bool
}

func NewButton(cfg ButtonConfig) (*Button, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("gui: button %q: invalid size %d", cfg.Name, cfg.Size)
	}
	delay := cfg.DebounceDelay
	if delay == 0 {
		delay = DefaultDebounceDelay
	}
	return &Button{
		name:     cfg.Name,
		pos:      cfg.Pos,
		size:     cfg.Size,
		latching: cfg.Latching,
		delay:    delay,
		icon:     cfg.Icon,
		toner:    cfg.Toner,
		toneFreq: cfg.ToneFrequency,
		toneDur:  cfg.ToneDuration,
	}, nil
}

// Update feeds one touch sample to the button and reports whether a
// press was confirmed. A press is confirmed on release, after the
// contact has been held past the debounce delay; an earlier release is
// treated as a bounce and ignored. Update never fails and the sample is
// not retained.
func (b *Button) Update(sample []gt911.TouchPoint, now time.Time) bool {
	b.touched = b.hit(sample)
	elapsed := now.Sub(b.lastTouch)
	switch b.state {
	case stateNormal:
		if b.touched {
			b.lastTouch = now
			b.state = statePressed
		}
	case statePressed:
		switch {
		case !b.touched:
			// Released before the delay; a bounce, not a press.
			b.setState(stateNormal, IconNormal)
		case elapsed > b.delay:
			b.setState(stateDebounced, IconPressed)
			b.beep()
		}
	case stateDebounced:
		if !b.touched {
			if b.latching {
				b.setState(stateIndicator, IconIndicator)
			} else {
				b.setState(stateNormal, IconNormal)
			}
			return true
		}
	case stateIndicator:
		if b.touched {
			b.lastTouch = now
			b.state = stateIndicatorPressed
		}
	case stateIndicatorPressed:
		switch {
		case !b.touched:
			b.setState(stateIndicator, IconIndicator)
		case elapsed > b.delay:
			b.setState(stateIndicatorDebounced, IconIndicatorPressed)
			b.beep()
		}
	case stateIndicatorDebounced:
		if !b.touched {
			b.setState(stateNormal, IconNormal)
			return true
		}
	}
	return false
}

// Indicator reports whether a latching button is latched on. It is
// always false for non-latching buttons.
func (b *Button) Indicator() bool {
	switch b.state {
	case stateIndicator, stateIndicatorPressed, stateIndicatorDebounced:
		return true
	}
	return false
}

// SetIndicator forces the latch state, bypassing debouncing. It is
// used for mutual exclusion between buttons and external state sync,
// and has no effect on non-latching buttons.
func (b *Button) SetIndicator(on bool) {
	if !b.latching {
		return
	}
	if on {
		b.setState(stateIndicator, IconIndicator)
	} else {
		b.setState(stateNormal, IconNormal)
	}
}

// Latching reports whether the button toggles.
func (b *Button) Latching() bool {
	return b.latching
}

func (b *Button) Name() string {
	return b.name
}

func (b *Button) hit(sample []gt911.TouchPoint) bool {
	max := b.pos.Add(image.Pt(b.size, b.size))
	for _, p := range sample {
		if b.pos.X <= p.Pos.X && p.Pos.X <= max.X &&
			b.pos.Y <= p.Pos.Y && p.Pos.Y <= max.Y {
			return true
		}
	}
	return false
}

func (b *Button) setState(s buttonState, icon int) {
	b.state = s
	if b.icon != nil {
		b.icon.SetIcon(icon)
	}
}

func (b *Button) beep() {
	if b.toner == nil {
		return
	}
	// Feedback is best effort.
	_ = b.toner.PlayTone(b.toneFreq, b.toneDur)
}
