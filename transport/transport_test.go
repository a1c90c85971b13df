package transport

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"go-groove/sequencer"
)

type recordingDevice struct {
	now       float64
	openErr   error
	opens     int
	events    []Event
	cancelled int
}

func (d *recordingDevice) Now() float64 { return d.now }

func (d *recordingDevice) Open() error {
	d.opens++
	return d.openErr
}

func (d *recordingDevice) Schedule(ev Event) { d.events = append(d.events, ev) }

func (d *recordingDevice) CancelPending() {
	kept := d.events[:0]
	for _, ev := range d.events {
		if ev.Time <= d.now {
			kept = append(kept, ev)
		} else {
			d.cancelled++
		}
	}
	d.events = kept
}

func (d *recordingDevice) kind(k EventKind) []Event {
	var out []Event
	for _, ev := range d.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

type recordingObserver struct {
	states []State
	steps  []int
}

func (o *recordingObserver) StateChanged(s State) { o.states = append(o.states, s) }
func (o *recordingObserver) StepChanged(step int) { o.steps = append(o.steps, step) }

func testTimeline(t *testing.T, bars int) *sequencer.Timeline {
	t.Helper()
	tl, err := sequencer.NewTimeline(sequencer.Common, bars)
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

// exactSettings uses binary-exact timing so event times compare with ==.
func exactSettings() Settings {
	s := DefaultSettings()
	s.BPM = 120
	s.LeadIn = 125 * time.Millisecond
	s.Lookahead = 250 * time.Millisecond
	s.Cadence = 25 * time.Millisecond
	return s
}

func TestStartCountIn(t *testing.T) {
	dev := &recordingDevice{now: 10}
	tl := testTimeline(t, 1)
	tl.SetHit(sequencer.Kick, 0, true)
	obs := &recordingObserver{}
	tr := New(dev, WithObserver(obs))

	s := DefaultSettings().WithBPM(90)
	s.CountIn = true
	if err := tr.Start(tl, s); err != nil {
		t.Fatal(err)
	}
	if tr.State() != CountingIn {
		t.Fatalf("state = %s", tr.State())
	}
	for dev.now < 14 {
		tr.Tick(tl)
		dev.now += s.Cadence.Seconds()
	}
	if tr.State() != Playing {
		t.Fatalf("state after count-in = %s", tr.State())
	}
	if !reflect.DeepEqual(obs.states, []State{CountingIn, Playing}) {
		t.Fatalf("state changes = %v", obs.states)
	}

	events := append([]Event(nil), dev.events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	firstHit := -1
	for i, ev := range events {
		if ev.Kind == EventHit {
			firstHit = i
			break
		}
	}
	if firstHit != CountInClicks {
		t.Fatalf("%d events before the first hit, want %d: %+v", firstHit, CountInClicks, events)
	}
	for i := 0; i < CountInClicks; i++ {
		ev := events[i]
		if ev.Kind != EventCountIn || ev.Step != i {
			t.Fatalf("event %d = %+v", i, ev)
		}
		if i > 0 {
			if gap := ev.Time - events[i-1].Time; math.Abs(gap-0.667) > 0.001 {
				t.Fatalf("click gap %d = %.4f, want 0.667", i, gap)
			}
		}
	}
	if math.Abs(events[0].Time-10.1) > 1e-9 {
		t.Fatalf("first click at %.4f, want 10.1", events[0].Time)
	}
	if gap := events[firstHit].Time - events[CountInClicks-1].Time; math.Abs(gap-0.667) > 0.001 {
		t.Fatalf("first hit %.4f after the last click, want one beat", gap)
	}
	if len(dev.kind(EventCountIn)) != CountInClicks {
		t.Fatalf("%d count-in clicks", len(dev.kind(EventCountIn)))
	}
}

func TestStartWithoutCountIn(t *testing.T) {
	dev := &recordingDevice{}
	tl := testTimeline(t, 1)
	tl.SetHit(sequencer.Kick, 0, true)
	tl.SetHit(sequencer.Snare, 2, true)
	tl.SetHit(sequencer.ClosedHat, 2, true)
	tr := New(dev)
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	if tr.State() != Playing {
		t.Fatalf("state = %s", tr.State())
	}
	if st := tr.Status(); st.StartTime != 0.125 || st.NextScheduledStep != 0 || st.NextScheduledStepTime != 0.125 {
		t.Fatalf("status = %+v", st)
	}

	// Window [0, 0.25] holds steps at 0.125, 0.1875 and 0.25.
	if n := tr.Tick(tl); n != 3 {
		t.Fatalf("scheduled %d steps, want 3", n)
	}
	want := []Event{
		{Kind: EventHit, Track: sequencer.Kick, Step: 0, Time: 0.125},
		{Kind: EventHit, Track: sequencer.Snare, Step: 2, Time: 0.25},
		{Kind: EventHit, Track: sequencer.ClosedHat, Step: 2, Time: 0.25},
	}
	if !reflect.DeepEqual(dev.events, want) {
		t.Fatalf("events = %+v", dev.events)
	}
	if n := tr.Tick(tl); n != 0 {
		t.Fatalf("second tick at the same time scheduled %d", n)
	}
	dev.now = 0.125
	if n := tr.Tick(tl); n != 2 {
		t.Fatalf("scheduled %d steps, want 2", n)
	}
	if st := tr.Status(); st.NextScheduledStep != 5 || st.NextScheduledStepTime != 0.4375 {
		t.Fatalf("status = %+v", st)
	}
}

func TestTickWrapsAndGuards(t *testing.T) {
	dev := &recordingDevice{}
	tl := testTimeline(t, 1)
	tl.SetHit(sequencer.Ride, 31, true)
	tl.SetHit(sequencer.Ride, 0, true)
	s := exactSettings()
	s.MaxStepsPerTick = 40
	tr := New(dev)
	if err := tr.Start(tl, s); err != nil {
		t.Fatal(err)
	}
	dev.now = 100
	if n := tr.Tick(tl); n != 40 {
		t.Fatalf("guard let %d steps through", n)
	}
	var steps []int
	for _, ev := range dev.events {
		steps = append(steps, ev.Step)
	}
	if !reflect.DeepEqual(steps, []int{0, 31, 0}) {
		t.Fatalf("hit steps = %v, want wrap from 31 to 0", steps)
	}
	if st := tr.Status(); st.NextScheduledStep != 8 {
		t.Fatalf("next step = %d, want 8", st.NextScheduledStep)
	}
}

func TestStartFailure(t *testing.T) {
	openErr := errors.New("no audio device")
	dev := &recordingDevice{openErr: openErr}
	obs := &recordingObserver{}
	tr := New(dev, WithObserver(obs))
	tl := testTimeline(t, 1)
	s := exactSettings()
	s.CountIn = true
	s.Metronome = true

	err := tr.Start(tl, s)
	if !errors.Is(err, openErr) {
		t.Fatalf("got %v, want the device error", err)
	}
	if tr.State() != Idle || tr.Metronome().Running() {
		t.Fatal("failed start left the transport running")
	}
	if len(dev.events) != 0 || len(obs.states) != 0 {
		t.Fatal("failed start scheduled or notified")
	}
	if st := tr.Status(); st != (Status{}) {
		t.Fatalf("failed start left state behind: %+v", st)
	}
	if n := tr.Tick(tl); n != 0 {
		t.Fatal("idle transport scheduled steps")
	}
}

func TestStartRejections(t *testing.T) {
	dev := &recordingDevice{}
	tr := New(dev)
	tl := testTimeline(t, 1)
	bad := exactSettings()
	bad.BPM = 5
	if err := tr.Start(tl, bad); err == nil {
		t.Fatal("out-of-range tempo accepted")
	}
	if dev.opens != 0 {
		t.Fatal("device opened for invalid settings")
	}
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	if err := tr.Start(tl, exactSettings()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second start: %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	dev := &recordingDevice{}
	obs := &recordingObserver{}
	tr := New(dev, WithObserver(obs))
	tl := testTimeline(t, 1)
	tl.SetHit(sequencer.Kick, 4, true)
	s := exactSettings()
	s.CountIn = true
	s.Metronome = true
	if err := tr.Start(tl, s); err != nil {
		t.Fatal(err)
	}
	tr.Tick(tl)
	if len(dev.events) == 0 {
		t.Fatal("nothing scheduled")
	}

	tr.Stop()
	once := tr.Status()
	if once.State != Idle || tr.Metronome().Running() {
		t.Fatalf("stop left %+v", once)
	}
	if len(dev.events) != 0 || dev.cancelled == 0 {
		t.Fatalf("pending count-in clicks not cancelled: %+v", dev.events)
	}
	tr.Stop()
	if twice := tr.Status(); twice != once {
		t.Fatalf("second stop changed state: %+v != %+v", twice, once)
	}
	if !reflect.DeepEqual(obs.states, []State{CountingIn, Idle}) {
		t.Fatalf("state changes = %v", obs.states)
	}
	if n := tr.Tick(tl); n != 0 {
		t.Fatal("stopped transport scheduled steps")
	}
}

func TestCurrentStepThrottle(t *testing.T) {
	dev := &recordingDevice{}
	obs := &recordingObserver{}
	tr := New(dev, WithObserver(obs))
	tl := testTimeline(t, 2)
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	at := func(step int) float64 { return 0.125 + float64(step)*0.0625 }
	ticks := []struct {
		now  float64
		want int
	}{
		{0.05, 0},       // before the first step
		{at(3), 3},      // first publish
		{at(4), 3},      // 62.5 ms later: throttled
		{at(6), 6},      // 187.5 ms after the publish
		{at(30), 30},    // last publish in bar 0
		{at(32), 32},    // bar line crossed within the interval
		{at(33), 32},    // throttled again
		{at(64 + 2), 2}, // wrapped into bar 0
	}
	for _, tt := range ticks {
		dev.now = tt.now
		tr.Tick(tl)
		if got := tr.CurrentStep(); got != tt.want {
			t.Fatalf("at %.4f current step = %d, want %d", tt.now, got, tt.want)
		}
	}
	if !reflect.DeepEqual(obs.steps, []int{3, 6, 30, 32, 2}) {
		t.Fatalf("published steps = %v", obs.steps)
	}
}

func TestStopFreezesResumePoint(t *testing.T) {
	dev := &recordingDevice{}
	tr := New(dev)
	tl := testTimeline(t, 1)
	for s := 0; s < 32; s++ {
		tl.SetHit(sequencer.ClosedHat, s, true)
	}
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	dev.now = 0.125 + 10*0.0625
	tr.Tick(tl)
	tr.Stop()
	if tr.CurrentStep() != 10 {
		t.Fatalf("resume point = %d, want 10", tr.CurrentStep())
	}

	dev.events = nil
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	tr.Tick(tl)
	if len(dev.events) == 0 || dev.events[0].Step != 10 {
		t.Fatalf("restart began at %+v, want step 10", dev.events)
	}
	if dev.events[0].Time != dev.now+0.125 {
		t.Fatalf("restart first hit at %v", dev.events[0].Time)
	}

	tr.Stop()
	tr.SetCurrentStep(99)
	dev.events = nil
	if err := tr.Start(tl, exactSettings()); err != nil {
		t.Fatal(err)
	}
	if tr.CurrentStep() != 31 {
		t.Fatalf("start step = %d, want it clamped to 31", tr.CurrentStep())
	}
}

func TestMetronomeInPhase(t *testing.T) {
	dev := &recordingDevice{}
	tr := New(dev)
	tl := testTimeline(t, 1)
	s := exactSettings()
	s.CountIn = true
	s.Metronome = true
	s.Subdivision = 2
	if err := tr.Start(tl, s); err != nil {
		t.Fatal(err)
	}
	start := tr.Status().StartTime
	for dev.now = 0; dev.now < 8; dev.now += 0.025 {
		tr.Tick(tl)
	}
	clicks := dev.kind(EventClick)
	if len(clicks) < 16 {
		t.Fatalf("only %d clicks", len(clicks))
	}
	// Eighth-note clicks land on every fourth 32nd step.
	step := s.StepSeconds()
	for i, c := range clicks {
		if c.Step != i {
			t.Fatalf("click %d has index %d", i, c.Step)
		}
		if want := start + float64(4*i)*step; math.Abs(c.Time-want) > 1e-9 {
			t.Fatalf("click %d at %.6f, want %.6f", i, c.Time, want)
		}
		if c.Time < start {
			t.Fatal("metronome clicked during the count-in")
		}
	}
	kinds := []ClickKind{ClickBar, ClickSubdivision, ClickBeat, ClickSubdivision, ClickBeat, ClickSubdivision, ClickBeat, ClickSubdivision, ClickBar}
	for i, k := range kinds {
		if clicks[i].Click != k {
			t.Fatalf("click %d is %s, want %s", i, clicks[i].Click, k)
		}
	}

	tr.Stop()
	n := len(dev.events)
	dev.now += 1
	tr.Tick(tl)
	if len(dev.events) != n {
		t.Fatal("metronome kept clicking after stop")
	}
}
