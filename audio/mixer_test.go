package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"go-groove/sequencer"
	"go-groove/transport"
)

const testRate = 1000

func firstSound(buf []float32) int {
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != 0 {
			return i / 2
		}
	}
	return -1
}

func TestMixerStartsOnFrame(t *testing.T) {
	m := NewMixer(testRate, 1)
	m.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Kick, Time: 0.25})
	buf := make([]float32, 2*100)
	m.Process(buf)
	if f := firstSound(buf); f != -1 {
		t.Fatalf("sound at frame %d before its time", f)
	}
	buf = make([]float32, 2*400)
	m.Process(buf)
	// Frames 100..499 are rendered; the kick starts at frame 250, whose
	// first sample is sin(phase) after one step, so it is non-zero.
	if f := firstSound(buf); f != 150 {
		t.Fatalf("first sound at buffer frame %d, want 150", f)
	}
	if buf[300] != buf[301] {
		t.Fatal("channels differ")
	}
	if m.Frame() != 500 {
		t.Fatalf("Frame = %d", m.Frame())
	}
}

func TestMixerLateAndCancel(t *testing.T) {
	m := NewMixer(testRate, 1)
	m.Process(make([]float32, 2*50))
	m.Schedule(transport.Event{Kind: transport.EventClick, Click: transport.ClickBar, Time: 0.01})
	if m.Late() != 1 {
		t.Fatalf("Late = %d", m.Late())
	}
	buf := make([]float32, 2*10)
	m.Process(buf)
	if firstSound(buf) != 0 {
		t.Fatal("late event did not start immediately")
	}

	m.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Snare, Time: 1})
	m.Schedule(transport.Event{Kind: transport.EventCountIn, Click: transport.ClickBeat, Time: 0.5})
	if m.Pending() != 2 {
		t.Fatalf("Pending = %d", m.Pending())
	}
	if n := m.Cancel(); n != 2 || m.Pending() != 0 {
		t.Fatalf("Cancel = %d", n)
	}
	buf = make([]float32, 2*2000)
	m.Process(buf)
	for i := 2 * 1000; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("cancelled event sounded at sample %d", i)
		}
	}
}

func TestMixerOrdersQueue(t *testing.T) {
	m := NewMixer(testRate, 1)
	for _, at := range []float64{0.3, 0.1, 0.2, 0.1} {
		m.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Rimshot, Time: at})
	}
	for i := 1; i < len(m.queue); i++ {
		if m.queue[i-1].frame > m.queue[i].frame {
			t.Fatalf("queue out of order: %+v", m.queue)
		}
	}
}

func TestMixerClipsAndReaps(t *testing.T) {
	m := NewMixer(testRate, 4)
	for tr := 0; tr < sequencer.NumTracks; tr++ {
		m.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Track(tr), Time: 0})
	}
	buf := make([]float32, 2*3000)
	m.Process(buf)
	for i, s := range buf {
		if s > 1 || s < -1 || math.IsNaN(float64(s)) {
			t.Fatalf("sample %d = %v", i, s)
		}
	}
	if len(m.active) != 0 {
		t.Fatalf("%d voices still active after every tone ended", len(m.active))
	}
}

func TestStreamReader(t *testing.T) {
	m := NewMixer(testRate, 1)
	m.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Kick, Time: 0})
	r := NewStreamReader(m)
	p := make([]byte, 8*16+3)
	n, err := r.Read(p)
	if err != nil || n != 8*16 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	left := math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))
	right := math.Float32frombits(binary.LittleEndian.Uint32(p[12:]))
	if left == 0 || left != right {
		t.Fatalf("frame 1 = %v / %v", left, right)
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatal("partial frame read")
	}
}

func TestOutputBeforeOpen(t *testing.T) {
	o := NewOutput(WithSampleRate(44100), WithGain(0.5))
	if o.Now() != 0 {
		t.Fatal("clock runs before open")
	}
	o.Schedule(transport.Event{Kind: transport.EventHit, Track: sequencer.Snare, Time: 1})
	if o.Mixer().Pending() != 1 {
		t.Fatal("event not queued")
	}
	o.CancelPending()
	if o.Mixer().Pending() != 0 {
		t.Fatal("event not cancelled")
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
}
