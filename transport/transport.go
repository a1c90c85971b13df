package transport

import (
	"errors"
	"fmt"
	"math"

	"go-groove/debug"
	"go-groove/sequencer"
)

// State is the transport lifecycle: Idle -> CountingIn -> Playing -> Idle.
type State int

const (
	Idle State = iota
	CountingIn
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingIn:
		return "counting-in"
	case Playing:
		return "playing"
	}
	return "?"
}

// ErrRunning is returned by Start when playback is already active.
var ErrRunning = errors.New("transport is already running")

// PatternSource is what the transport reads while playing. Implementations
// must not change while Tick runs.
type PatternSource interface {
	TotalSteps() int
	StepsPerBar() int
	HitsAt(step int) []sequencer.Track
}

// Observer receives transport notifications. Calls happen on the goroutine
// that called Start, Tick or Stop.
type Observer interface {
	StateChanged(State)
	StepChanged(step int)
}

// Status is a copy of the transport state.
type Status struct {
	State                 State
	CurrentStep           int
	NextScheduledStep     int
	NextScheduledStepTime float64
	StartTime             float64 // device time of the first pattern step
}

// Option configures a Transport.
type Option func(*Transport)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// Transport schedules pattern hits ahead of the device clock. It is driven
// by calling Tick on a fixed cadence; it never sleeps and owns no
// goroutines. A Transport is not safe for concurrent use.
type Transport struct {
	out       Device
	metronome *Metronome
	observer  Observer

	settings    Settings
	state       State
	currentStep int
	startStep   int

	nextScheduledStep     int
	nextScheduledStepTime float64
	transportStartTime    float64
	stepSeconds           float64
	lookahead             float64
	uiInterval            float64
	lastStepNotify        float64
}

func New(out Device, opts ...Option) *Transport {
	t := &Transport{
		out:       out,
		metronome: NewMetronome(out),
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) State() State          { return t.state }
func (t *Transport) CurrentStep() int      { return t.currentStep }
func (t *Transport) Settings() Settings    { return t.settings }
func (t *Transport) Metronome() *Metronome { return t.metronome }

func (t *Transport) Running() bool { return t.state != Idle }

// Status returns the scheduling state.
func (t *Transport) Status() Status {
	return Status{
		State:                 t.state,
		CurrentStep:           t.currentStep,
		NextScheduledStep:     t.nextScheduledStep,
		NextScheduledStepTime: t.nextScheduledStepTime,
		StartTime:             t.transportStartTime,
	}
}

// SetCurrentStep moves the resume point while idle.
func (t *Transport) SetCurrentStep(step int) {
	if t.state != Idle {
		return
	}
	t.currentStep = max(step, 0)
}

// Start opens the device and begins playback from the current step. On
// failure the transport stays Idle and nothing is scheduled.
func (t *Transport) Start(src PatternSource, s Settings) error {
	if t.state != Idle {
		return ErrRunning
	}
	s = s.normalized()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("cannot start transport: %w", err)
	}
	total := src.TotalSteps()
	if total <= 0 {
		return errors.New("cannot start transport: empty pattern")
	}
	if err := t.out.Open(); err != nil {
		debug.Log("transport", "open failed: %v", err)
		return fmt.Errorf("cannot start transport: %w", err)
	}

	t.settings = s
	t.stepSeconds = s.StepSeconds()
	t.lookahead = s.Lookahead.Seconds()
	t.uiInterval = s.UIInterval.Seconds()
	t.startStep = min(max(t.currentStep, 0), total-1)
	t.currentStep = t.startStep

	begin := t.out.Now() + s.LeadIn.Seconds()
	if s.CountIn {
		beat := s.BeatSeconds()
		for i := 0; i < CountInClicks; i++ {
			click := ClickBeat
			if i == 0 {
				click = ClickBar
			}
			t.out.Schedule(Event{Kind: EventCountIn, Step: i, Time: begin + float64(i)*beat, Click: click})
		}
		t.transportStartTime = begin + CountInClicks*beat
		t.state = CountingIn
	} else {
		t.transportStartTime = begin
		t.state = Playing
	}
	t.nextScheduledStep = t.startStep
	t.nextScheduledStepTime = t.transportStartTime
	t.lastStepNotify = math.Inf(-1)

	if s.Metronome {
		t.metronome.Start(t.transportStartTime, s)
	}
	debug.Log("transport", "start step=%d bpm=%.1f sig=%s countIn=%v at=%.3f",
		t.startStep, s.BPM, s.TimeSignature, s.CountIn, t.transportStartTime)
	t.notifyState()
	return nil
}

// Tick is the scheduling poll. It queues every step whose time falls inside
// the lookahead window, at most MaxStepsPerTick of them, and returns how
// many steps it scheduled.
func (t *Transport) Tick(src PatternSource) int {
	if t.state == Idle {
		return 0
	}
	now := t.out.Now()
	if t.state == CountingIn && now >= t.transportStartTime {
		t.state = Playing
		t.notifyState()
	}

	total := src.TotalSteps()
	if total <= 0 {
		return 0
	}
	horizon := now + t.lookahead
	n := 0
	for t.nextScheduledStepTime <= horizon && n < t.settings.MaxStepsPerTick {
		step := t.nextScheduledStep
		if step >= total {
			step = 0
		}
		for _, track := range src.HitsAt(step) {
			t.out.Schedule(Event{Kind: EventHit, Track: track, Step: step, Time: t.nextScheduledStepTime})
		}
		t.nextScheduledStep = (step + 1) % total
		t.nextScheduledStepTime += t.stepSeconds
		n++
	}
	if n == t.settings.MaxStepsPerTick {
		debug.LogEvery(16, "transport", "tick guard hit, now=%.3f next=%.3f", now, t.nextScheduledStepTime)
	}
	t.metronome.Tick(now)
	t.updateCurrentStep(now, src)
	return n
}

// updateCurrentStep derives the displayed step from the clock. It is
// published at most every UIInterval unless a bar line was crossed.
func (t *Transport) updateCurrentStep(now float64, src PatternSource) {
	if now < t.transportStartTime || t.stepSeconds <= 0 {
		return
	}
	total := src.TotalSteps()
	elapsed := int((now - t.transportStartTime) / t.stepSeconds)
	step := (t.startStep + elapsed) % total
	if step == t.currentStep {
		return
	}
	spb := max(src.StepsPerBar(), 1)
	newBar := step/spb != t.currentStep/spb
	if !newBar && now-t.lastStepNotify < t.uiInterval {
		return
	}
	t.currentStep = step
	t.lastStepNotify = now
	if t.observer != nil {
		t.observer.StepChanged(step)
	}
}

// Stop cancels pending events, stops the metronome and freezes the current
// step as the resume point. Stopping an idle transport does nothing.
func (t *Transport) Stop() {
	if t.state == Idle {
		return
	}
	t.out.CancelPending()
	t.metronome.Stop()
	t.state = Idle
	t.nextScheduledStep = 0
	t.nextScheduledStepTime = 0
	t.transportStartTime = 0
	debug.Log("transport", "stop at step %d", t.currentStep)
	t.notifyState()
}

func (t *Transport) notifyState() {
	if t.observer != nil {
		t.observer.StateChanged(t.state)
	}
}
