// Package session owns a timeline and its transport and serializes edits
// with the scheduling loop.
package session

import (
	"io"
	"sync"

	"go-groove/debug"
	"go-groove/sequencer"
	"go-groove/transport"
)

// Session is the single point of control for one open timeline. Every edit
// and every scheduler tick runs under the same mutex, so playback never
// reads a half-applied edit.
type Session struct {
	mu        sync.Mutex
	timeline  *sequencer.Timeline
	out       transport.Device
	transport *transport.Transport
	timer     transport.Timer
	settings  transport.Settings

	onChange func()

	// UpdateChan receives a value whenever the view should be redrawn.
	UpdateChan chan struct{}
}

// New creates a stopped session. settings seeds tempo, count-in and
// metronome; the time signature always follows the timeline.
func New(tl *sequencer.Timeline, out transport.Device, timer transport.Timer, settings transport.Settings) *Session {
	s := &Session{
		timeline:   tl,
		out:        out,
		timer:      timer,
		settings:   settings.WithTimeSignature(tl.TimeSignature()),
		UpdateChan: make(chan struct{}, 1),
	}
	s.transport = transport.New(out, transport.WithObserver(observer{s}))
	return s
}

// SetOnChange registers a callback run after every successful edit. It runs
// without the session lock held.
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// observer forwards transport notifications. It is called with s.mu held.
type observer struct{ s *Session }

func (o observer) StateChanged(st transport.State) {
	debug.Log("session", "transport %s", st)
	o.s.notifyUpdate()
}

func (o observer) StepChanged(int) { o.s.notifyUpdate() }

func (s *Session) notifyUpdate() {
	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}

// Play starts playback from the resume point.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	if s.transport.Running() {
		return nil
	}
	s.settings = s.settings.WithTimeSignature(s.timeline.TimeSignature())
	if err := s.transport.Start(s.timeline, s.settings); err != nil {
		return err
	}
	s.transport.Tick(s.timeline)
	s.timer.Start(s.settings.Cadence, s.tick)
	return nil
}

// tick is the timer callback.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Tick(s.timeline)
}

// Stop halts playback. It is safe to call at any time.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.timer.Stop()
	s.transport.Stop()
}

// Toggle starts a stopped session and stops a running one.
func (s *Session) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport.Running() {
		s.stopLocked()
		return nil
	}
	return s.startLocked()
}

// restartLocked applies new timing while playing, resuming from the
// current step.
func (s *Session) restartLocked() error {
	if !s.transport.Running() {
		return nil
	}
	s.stopLocked()
	return s.startLocked()
}

// regridLocked moves the resume point onto a grid that used to have
// fromSPB steps per bar and restarts playback there if it was running.
func (s *Session) regridLocked(fromSPB int) error {
	running := s.transport.Running()
	s.stopLocked()
	step := sequencer.RescaleStep(s.transport.CurrentStep(), fromSPB, s.timeline.StepsPerBar())
	s.transport.SetCurrentStep(step)
	if !running {
		return nil
	}
	return s.startLocked()
}

// Edit runs fn against the timeline under the session lock. A change of
// time signature keeps the resume point in the same place in its bar and
// restarts a running transport on the new grid.
func (s *Session) Edit(fn func(tl *sequencer.Timeline) error) error {
	s.mu.Lock()
	sig := s.timeline.TimeSignature()
	spb := s.timeline.StepsPerBar()
	err := fn(s.timeline)
	if err == nil && s.timeline.TimeSignature() != sig {
		err = s.regridLocked(spb)
	}
	onChange := s.onChange
	s.notifyUpdate()
	s.mu.Unlock()

	if err == nil && onChange != nil {
		onChange()
	}
	return err
}

// View runs fn against the timeline for reading.
func (s *Session) View(fn func(tl *sequencer.Timeline)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.timeline)
}

// Load replaces the timeline. Playback stops.
func (s *Session) Load(tl *sequencer.Timeline) {
	s.mu.Lock()
	s.stopLocked()
	s.timeline = tl
	s.transport.SetCurrentStep(0)
	s.notifyUpdate()
	s.mu.Unlock()
}

// Settings returns the current playback settings.
func (s *Session) Settings() transport.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the playback settings. A running transport restarts
// with the new values.
func (s *Session) SetSettings(settings transport.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings = settings.WithTimeSignature(s.timeline.TimeSignature())
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settings = settings
	s.notifyUpdate()
	return s.restartLocked()
}

// UpdateSettings edits a copy of the settings and applies it.
func (s *Session) UpdateSettings(fn func(*transport.Settings)) error {
	settings := s.Settings()
	fn(&settings)
	return s.SetSettings(settings)
}

// Status reports the transport state.
func (s *Session) Status() transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Status()
}

// Seek moves the resume point while stopped.
func (s *Session) Seek(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.SetCurrentStep(step)
	s.notifyUpdate()
}

// Close stops playback and releases the output.
func (s *Session) Close() error {
	s.Stop()
	if c, ok := s.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
