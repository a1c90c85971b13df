package audio

import (
	"math"

	"go-groove/sequencer"
	"go-groove/transport"
)

// tone describes one synthesized drum sound: a pitched sine that glides
// from freq to endFreq, mixed with noise, under an exponential decay.
type tone struct {
	freq    float64
	endFreq float64
	noise   float64 // 0 = pure tone, 1 = pure noise
	bright  bool    // high-pass the noise
	decay   float64 // seconds to fall to 1/e
	length  float64 // seconds rendered
	level   float64
}

var drumTones = [sequencer.NumTracks]tone{
	sequencer.Kick:      {freq: 150, endFreq: 45, decay: 0.12, length: 0.5, level: 1},
	sequencer.Snare:     {freq: 190, endFreq: 160, noise: 0.65, decay: 0.07, length: 0.3, level: 0.8},
	sequencer.ClosedHat: {noise: 1, bright: true, decay: 0.015, length: 0.08, level: 0.45},
	sequencer.OpenHat:   {noise: 1, bright: true, decay: 0.12, length: 0.5, level: 0.45},
	sequencer.PedalHat:  {noise: 1, bright: true, decay: 0.025, length: 0.1, level: 0.35},
	sequencer.HighTom:   {freq: 240, endFreq: 180, noise: 0.1, decay: 0.12, length: 0.45, level: 0.7},
	sequencer.MidTom:    {freq: 180, endFreq: 130, noise: 0.1, decay: 0.14, length: 0.5, level: 0.7},
	sequencer.FloorTom:  {freq: 120, endFreq: 85, noise: 0.1, decay: 0.18, length: 0.6, level: 0.75},
	sequencer.Crash:     {noise: 1, bright: true, decay: 0.5, length: 1.8, level: 0.4},
	sequencer.Ride:      {freq: 620, endFreq: 600, noise: 0.7, bright: true, decay: 0.3, length: 1.2, level: 0.35},
	sequencer.Rimshot:   {freq: 480, endFreq: 420, noise: 0.3, decay: 0.01, length: 0.05, level: 0.6},
	sequencer.Clap:      {noise: 1, decay: 0.05, length: 0.25, level: 0.6},
	sequencer.Cowbell:   {freq: 560, endFreq: 560, noise: 0, decay: 0.08, length: 0.35, level: 0.45},
}

var clickTones = map[transport.ClickKind]tone{
	transport.ClickBar:         {freq: 1760, endFreq: 1760, decay: 0.012, length: 0.05, level: 0.6},
	transport.ClickBeat:        {freq: 1320, endFreq: 1320, decay: 0.01, length: 0.04, level: 0.45},
	transport.ClickSubdivision: {freq: 990, endFreq: 990, decay: 0.008, length: 0.03, level: 0.25},
}

// toneFor picks the sound of an event.
func toneFor(ev transport.Event) tone {
	switch ev.Kind {
	case transport.EventHit:
		if ev.Track.Valid() {
			return drumTones[ev.Track]
		}
	case transport.EventCountIn, transport.EventClick:
		if t, ok := clickTones[ev.Click]; ok {
			return t
		}
	}
	return clickTones[transport.ClickBeat]
}

// voice renders one tone sample by sample.
type voice struct {
	tone       tone
	sampleRate float64
	pos        int
	frames     int
	phase      float64
	noise      uint32
	lastNoise  float64
}

func newVoice(t tone, sampleRate int, seed uint32) *voice {
	return &voice{
		tone:       t,
		sampleRate: float64(sampleRate),
		frames:     int(t.length * float64(sampleRate)),
		noise:      seed | 1,
	}
}

func (v *voice) done() bool { return v.pos >= v.frames }

// white returns the next xorshift noise sample in [-1, 1).
func (v *voice) white() float64 {
	v.noise ^= v.noise << 13
	v.noise ^= v.noise >> 17
	v.noise ^= v.noise << 5
	return float64(v.noise)/float64(1<<31) - 1
}

func (v *voice) next() float32 {
	if v.done() {
		return 0
	}
	t := float64(v.pos) / v.sampleRate
	v.pos++
	env := math.Exp(-t/v.tone.decay) * v.tone.level

	var s float64
	if v.tone.noise < 1 && v.tone.freq > 0 {
		progress := t / v.tone.length
		freq := v.tone.freq + (v.tone.endFreq-v.tone.freq)*progress
		v.phase += 2 * math.Pi * freq / v.sampleRate
		s += math.Sin(v.phase) * (1 - v.tone.noise)
	}
	if v.tone.noise > 0 {
		n := v.white()
		if v.tone.bright {
			n, v.lastNoise = n-v.lastNoise, n
			n *= 0.5
		}
		s += n * v.tone.noise
	}
	return float32(s * env)
}
