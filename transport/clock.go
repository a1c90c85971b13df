package transport

import (
	"sync"
	"time"

	"go-groove/sequencer"
)

// Clock reads the output's hardware clock in seconds. Every scheduled event
// time is expressed on this clock.
type Clock interface {
	Now() float64
}

// Device is a sound output that plays events at clock timestamps.
type Device interface {
	Clock
	// Open prepares the output. It is called on every start and must be
	// cheap when the output is already open.
	Open() error
	// Schedule queues ev for playback at ev.Time.
	Schedule(ev Event)
	// CancelPending drops every queued event that has not sounded yet.
	CancelPending()
}

// EventKind tells a device what to play.
type EventKind int

const (
	EventHit     EventKind = iota // a pattern hit on Track
	EventCountIn                  // one of the count-in clicks
	EventClick                    // a metronome tick
)

func (k EventKind) String() string {
	switch k {
	case EventHit:
		return "hit"
	case EventCountIn:
		return "count-in"
	case EventClick:
		return "click"
	}
	return "?"
}

// Event is one timestamped trigger.
type Event struct {
	Kind  EventKind
	Track sequencer.Track // EventHit only
	Step  int             // pattern step for hits, click index otherwise
	Time  float64         // seconds on the device clock
	Click ClickKind       // EventClick and EventCountIn
}

// Timer calls fn every interval until stopped.
type Timer interface {
	Start(interval time.Duration, fn func())
	Stop()
}

// TickerTimer is a Timer backed by time.Ticker.
type TickerTimer struct {
	mu   sync.Mutex
	stop chan struct{}
}

func (t *TickerTimer) Start(interval time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop returns without waiting for a running callback.
func (t *TickerTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// WallClock measures seconds since it was created. It backs outputs with
// no hardware clock of their own.
type WallClock struct {
	t0 time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{t0: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.t0).Seconds()
}

// Time converts a clock reading back to wall time.
func (c *WallClock) Time(seconds float64) time.Time {
	return c.t0.Add(time.Duration(seconds * float64(time.Second)))
}
