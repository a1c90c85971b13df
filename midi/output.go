// Package midi sends transport events to an external drum machine and
// reads pad hits from a MIDI controller.
package midi

import (
	"errors"
	"io"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-groove/debug"
	"go-groove/sequencer"
	"go-groove/transport"
)

// GM percussion notes used for metronome clicks.
var clickNotes = map[transport.ClickKind]uint8{
	transport.ClickBar:         76, // hi wood block
	transport.ClickBeat:        77, // low wood block
	transport.ClickSubdivision: 77,
}

var clickVelocity = map[transport.ClickKind]uint8{
	transport.ClickBar:         127,
	transport.ClickBeat:        100,
	transport.ClickSubdivision: 64,
}

const (
	hitVelocity = 100
	defaultGate = 30 * time.Millisecond
)

// Option configures an Output.
type Option func(*Output)

// WithChannel sets the zero-based MIDI channel.
func WithChannel(ch uint8) Option {
	return func(o *Output) { o.channel = ch & 0x0f }
}

// WithKit selects the track to note mapping.
func WithKit(kit sequencer.DrumKit) Option {
	return func(o *Output) { o.kit = kit }
}

// WithSender replaces the port with a send function.
func WithSender(send func(gomidi.Message) error) Option {
	return func(o *Output) { o.send = send }
}

// Output is a transport.Device on a MIDI port. Events are kept in a time
// ordered queue and sent by a dispatch goroutine when due; the clock is
// the wall clock since the output was created.
type Output struct {
	portName string
	channel  uint8
	kit      sequencer.DrumKit
	gate     time.Duration
	clock    *transport.WallClock

	mu      sync.Mutex
	send    func(gomidi.Message) error
	port    io.Closer // nil when sending through WithSender
	queue   eventQueue
	seq     uint64
	running bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewOutput(portName string, opts ...Option) *Output {
	o := &Output{
		portName: portName,
		channel:  9,
		kit:      sequencer.GetKit(sequencer.DefaultKit),
		gate:     defaultGate,
		clock:    transport.NewWallClock(),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open connects to the port and starts dispatching.
func (o *Output) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}
	if o.send == nil {
		send, port, err := openSender(o.portName)
		if err != nil {
			return err
		}
		o.send = send
		o.port = port
	}
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	o.running = true
	go o.dispatchLoop(o.stop, o.done)
	debug.Log("midi", "output open port=%q ch=%d kit=%s", o.portName, o.channel+1, o.kit.Name)
	return nil
}

func (o *Output) Now() float64 { return o.clock.Now() }

// Schedule queues the note-on and note-off for ev.
func (o *Output) Schedule(ev transport.Event) {
	note, velocity, ok := o.noteFor(ev)
	if !ok {
		return
	}
	at := o.clock.Time(ev.Time)
	o.mu.Lock()
	o.push(Event{At: at, Type: NoteOn, Channel: o.channel, Note: note, Velocity: velocity})
	o.push(Event{At: at.Add(o.gate), Type: NoteOff, Channel: o.channel, Note: note})
	o.mu.Unlock()
	o.interrupt()
}

func (o *Output) push(ev Event) {
	o.seq++
	ev.seq = o.seq
	o.queue.push(ev)
}

func (o *Output) noteFor(ev transport.Event) (note, velocity uint8, ok bool) {
	switch ev.Kind {
	case transport.EventHit:
		if !ev.Track.Valid() {
			return 0, 0, false
		}
		return o.kit.Notes[ev.Track], hitVelocity, true
	case transport.EventCountIn, transport.EventClick:
		return clickNotes[ev.Click], clickVelocity[ev.Click], true
	}
	return 0, 0, false
}

// CancelPending drops notes that have not started. Their note-offs stay
// queued.
func (o *Output) CancelPending() {
	o.mu.Lock()
	n := o.queue.dropNoteOns()
	o.mu.Unlock()
	if n > 0 {
		debug.Log("midi", "cancelled %d pending notes", n)
	}
	o.interrupt()
}

// Pending returns the number of queued messages.
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// interrupt wakes the dispatch loop to re-check the queue head.
func (o *Output) interrupt() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Output) dispatchLoop(stop, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		o.mu.Lock()
		next, ok := o.queue.peek()
		o.mu.Unlock()

		wait := time.Hour
		if ok {
			wait = time.Until(next.At)
		}
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-stop:
				return
			case <-o.wake:
				continue
			case <-timer.C:
			}
		}

		o.mu.Lock()
		next, ok = o.queue.peek()
		if !ok || next.At.After(time.Now()) {
			o.mu.Unlock()
			continue
		}
		ev := o.queue.pop()
		send := o.send
		o.mu.Unlock()

		if err := send(message(ev)); err != nil {
			debug.LogEvery(16, "midi", "send failed: %v", err)
		}
	}
}

func message(ev Event) gomidi.Message {
	if ev.Type == NoteOff {
		return gomidi.NoteOff(ev.Channel, ev.Note)
	}
	return gomidi.NoteOn(ev.Channel, ev.Note, ev.Velocity)
}

// Close stops dispatching, flushes pending note-offs and releases the port.
func (o *Output) Close() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	close(o.stop)
	done := o.done
	o.mu.Unlock()
	<-done

	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for len(o.queue) > 0 {
		ev := o.queue.pop()
		if ev.Type == NoteOff {
			if err := o.send(message(ev)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if o.port != nil {
		if err := o.port.Close(); err != nil {
			errs = append(errs, err)
		}
		o.port = nil
		o.send = nil
	}
	return errors.Join(errs...)
}
