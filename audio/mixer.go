package audio

import (
	"sort"
	"sync"

	"go-groove/debug"
	"go-groove/transport"
)

type pending struct {
	frame int64
	ev    transport.Event
}

// Mixer renders scheduled events into a stereo stream. Event times are
// converted to frame positions, so a sound starts on its exact sample no
// matter when Schedule was called, as long as that frame has not been
// rendered yet.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	gain       float32
	frame      int64 // next frame to render
	queue      []pending
	active     []*voice
	seed       uint32
	late       int
}

func NewMixer(sampleRate int, gain float64) *Mixer {
	return &Mixer{sampleRate: sampleRate, gain: float32(gain), seed: 0x9e3779b9}
}

// Frame returns how many frames have been rendered.
func (m *Mixer) Frame() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Late returns how many events arrived after their frame was rendered.
func (m *Mixer) Late() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.late
}

// Schedule queues ev at ev.Time seconds from the start of the stream.
// Late events start on the next rendered frame.
func (m *Mixer) Schedule(ev transport.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := int64(ev.Time*float64(m.sampleRate) + 0.5)
	if f < m.frame {
		m.late++
		debug.LogEvery(8, "audio", "late %s by %d frames", ev.Kind, m.frame-f)
		f = m.frame
	}
	i := sort.Search(len(m.queue), func(i int) bool { return m.queue[i].frame > f })
	m.queue = append(m.queue, pending{})
	copy(m.queue[i+1:], m.queue[i:])
	m.queue[i] = pending{frame: f, ev: ev}
}

// Cancel drops every queued event that has not started and returns how
// many were dropped. Sounds already ringing decay naturally.
func (m *Mixer) Cancel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	m.queue = m.queue[:0]
	return n
}

// reset rewinds the stream to frame zero for a new player.
func (m *Mixer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = 0
	m.queue = m.queue[:0]
	m.active = nil
}

// Pending returns the number of queued events.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Process renders len(dst)/2 stereo frames.
func (m *Mixer) Process(dst []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i+1 < len(dst); i += 2 {
		for len(m.queue) > 0 && m.queue[0].frame <= m.frame {
			m.seed = m.seed*1664525 + 1013904223
			m.active = append(m.active, newVoice(toneFor(m.queue[0].ev), m.sampleRate, m.seed))
			m.queue = m.queue[1:]
		}
		var s float32
		for _, v := range m.active {
			s += v.next()
		}
		s *= m.gain
		s = min(max(s, -1), 1)
		dst[i], dst[i+1] = s, s
		m.frame++

		if len(m.active) > 0 && m.frame%256 == 0 {
			m.reap()
		}
	}
	m.reap()
}

func (m *Mixer) reap() {
	live := m.active[:0]
	for _, v := range m.active {
		if !v.done() {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = live
}
