package gui

import (
	"image"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"crowpanel.dev/driver/gt911"
)

type iconRecorder struct {
	sets []int
}

func (r *iconRecorder) SetIcon(index int) {
	r.sets = append(r.sets, index)
}

type toneRecorder struct {
	n    int
	freq physic.Frequency
	dur  time.Duration
}

func (r *toneRecorder) PlayTone(f physic.Frequency, d time.Duration) error {
	r.n++
	r.freq, r.dur = f, d
	return nil
}

var (
	touchInside = []gt911.TouchPoint{{Pos: image.Pt(10, 10), Size: 5}}
	noTouch     []gt911.TouchPoint
)

func newTestButton(t *testing.T, latching bool, icon *iconRecorder, tone *toneRecorder) *Button {
	t.Helper()
	cfg := ButtonConfig{
		Name:          "mic",
		Pos:           image.Pt(0, 0),
		Size:          80,
		Latching:      latching,
		DebounceDelay: 150 * time.Millisecond,
		ToneFrequency: 1760 * physic.Hertz,
		ToneDuration:  2 * time.Millisecond,
	}
	if icon != nil {
		cfg.Icon = icon
	}
	if tone != nil {
		cfg.Toner = tone
	}
	b, err := NewButton(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func at(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func TestPressConfirmedOnRelease(t *testing.T) {
	icon := new(iconRecorder)
	tone := new(toneRecorder)
	b := newTestButton(t, false, icon, tone)

	if b.Update(touchInside, at(0)) {
		t.Error("press reported on first contact")
	}
	if b.state != statePressed {
		t.Fatalf("state = %d, want pressed", b.state)
	}
	if b.Update(touchInside, at(160)) {
		t.Error("press reported while still held")
	}
	if b.state != stateDebounced {
		t.Fatalf("state = %d, want debounced", b.state)
	}
	if tone.n != 1 {
		t.Errorf("tone fired %d times, want 1", tone.n)
	}
	if tone.freq != 1760*physic.Hertz || tone.dur != 2*time.Millisecond {
		t.Errorf("tone %v for %v, want 1.760kHz for 2ms", tone.freq, tone.dur)
	}
	if !b.Update(noTouch, at(200)) {
		t.Error("no press reported on release")
	}
	if b.state != stateNormal {
		t.Errorf("state = %d, want normal", b.state)
	}
	if tone.n != 1 {
		t.Errorf("tone fired %d times after release, want 1", tone.n)
	}
	want := []int{IconPressed, IconNormal}
	if len(icon.sets) != len(want) {
		t.Fatalf("icon sets %v, want %v", icon.sets, want)
	}
	for i := range want {
		if icon.sets[i] != want[i] {
			t.Fatalf("icon sets %v, want %v", icon.sets, want)
		}
	}
}

func TestBounceRejected(t *testing.T) {
	tone := new(toneRecorder)
	b := newTestButton(t, false, nil, tone)

	steps := []struct {
		ms    int
		touch []gt911.TouchPoint
	}{
		{0, touchInside},
		{100, touchInside}, // within the delay, stays pressed
		{149, noTouch},     // released 1ms early
	}
	for _, s := range steps {
		if b.Update(s.touch, at(s.ms)) {
			t.Errorf("press reported at t=%dms", s.ms)
		}
	}
	if b.state != stateNormal {
		t.Errorf("state = %d, want normal", b.state)
	}
	if tone.n != 0 {
		t.Errorf("tone fired %d times, want 0", tone.n)
	}
}

func TestHeldPressFiresToneOnce(t *testing.T) {
	tone := new(toneRecorder)
	b := newTestButton(t, false, nil, tone)

	b.Update(touchInside, at(0))
	for ms := 160; ms < 1000; ms += 50 {
		if b.Update(touchInside, at(ms)) {
			t.Errorf("press reported while held at t=%dms", ms)
		}
	}
	if tone.n != 1 {
		t.Errorf("tone fired %d times, want 1", tone.n)
	}
}

func TestLatchCycle(t *testing.T) {
	icon := new(iconRecorder)
	b := newTestButton(t, true, icon, nil)

	press := func(start int) bool {
		t.Helper()
		var pressed bool
		for _, s := range []struct {
			ms    int
			touch []gt911.TouchPoint
		}{
			{start, touchInside},
			{start + 160, touchInside},
			{start + 200, noTouch},
		} {
			if b.Update(s.touch, at(s.ms)) {
				if pressed {
					t.Fatal("press reported twice in one cycle")
				}
				pressed = true
			}
		}
		return pressed
	}

	if b.Indicator() {
		t.Fatal("indicator on before any press")
	}
	if !press(0) {
		t.Fatal("first press not confirmed")
	}
	if !b.Indicator() {
		t.Error("indicator off after first press")
	}
	if !press(1000) {
		t.Fatal("second press not confirmed")
	}
	if b.Indicator() {
		t.Error("indicator on after second press")
	}
	want := []int{IconPressed, IconIndicator, IconIndicatorPressed, IconNormal}
	if len(icon.sets) != len(want) {
		t.Fatalf("icon sets %v, want %v", icon.sets, want)
	}
	for i := range want {
		if icon.sets[i] != want[i] {
			t.Fatalf("icon sets %v, want %v", icon.sets, want)
		}
	}
}

func TestIndicatorBounce(t *testing.T) {
	b := newTestButton(t, true, nil, nil)
	b.SetIndicator(true)

	b.Update(touchInside, at(0))
	if b.state != stateIndicatorPressed {
		t.Fatalf("state = %d, want indicatorPressed", b.state)
	}
	if b.Update(noTouch, at(100)) {
		t.Error("press reported on bounce")
	}
	if b.state != stateIndicator {
		t.Errorf("state = %d, want indicator", b.state)
	}
	if !b.Indicator() {
		t.Error("indicator lost on bounce")
	}
}

func TestNonLatchingIndicatorAlwaysOff(t *testing.T) {
	b := newTestButton(t, false, nil, nil)

	inputs := [][]gt911.TouchPoint{
		touchInside, touchInside, noTouch, touchInside, noTouch, noTouch, touchInside,
	}
	for i, in := range inputs {
		b.Update(in, at(i*100))
		if b.Indicator() {
			t.Fatalf("indicator on at step %d", i)
		}
	}
	b.SetIndicator(true)
	if b.Indicator() {
		t.Error("SetIndicator latched a non-latching button")
	}
}

func TestSetIndicator(t *testing.T) {
	icon := new(iconRecorder)
	b := newTestButton(t, true, icon, nil)

	b.SetIndicator(true)
	if !b.Indicator() {
		t.Error("indicator off after SetIndicator(true)")
	}
	b.SetIndicator(false)
	if b.Indicator() {
		t.Error("indicator on after SetIndicator(false)")
	}
	want := []int{IconIndicator, IconNormal}
	if len(icon.sets) != len(want) || icon.sets[0] != want[0] || icon.sets[1] != want[1] {
		t.Errorf("icon sets %v, want %v", icon.sets, want)
	}
}

func TestHitRegionInclusive(t *testing.T) {
	b := newTestButton(t, false, nil, nil)
	tests := []struct {
		pos image.Point
		hit bool
	}{
		{image.Pt(0, 0), true},
		{image.Pt(80, 80), true}, // bounds are inclusive
		{image.Pt(81, 80), false},
		{image.Pt(40, 81), false},
		{image.Pt(300, 200), false},
	}
	for _, test := range tests {
		sample := []gt911.TouchPoint{
			{Pos: image.Pt(300, 239), Size: 1}, // a second, unrelated contact
			{Pos: test.pos, Size: 5},
		}
		if got := b.hit(sample); got != test.hit {
			t.Errorf("hit(%v) = %v, want %v", test.pos, got, test.hit)
		}
	}
}

func TestNewButtonValidation(t *testing.T) {
	if _, err := NewButton(ButtonConfig{Name: "bad", Size: 0}); err == nil {
		t.Error("no error for degenerate geometry")
	}
	b, err := NewButton(ButtonConfig{Name: "ok", Size: 80})
	if err != nil {
		t.Fatal(err)
	}
	if b.delay != DefaultDebounceDelay {
		t.Errorf("delay = %v, want default %v", b.delay, DefaultDebounceDelay)
	}
}
