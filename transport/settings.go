package transport

import (
	"fmt"
	"time"

	"go-groove/sequencer"
)

// Tempo limits.
const (
	MinBPM = 20
	MaxBPM = 300
)

// CountInClicks is the fixed length of the count-in.
const CountInClicks = 4

// Settings is the immutable playback configuration handed to the transport
// and the metronome when playback starts. Changing a setting means starting
// again with a new value.
type Settings struct {
	BPM           float64
	TimeSignature sequencer.TimeSignature
	CountIn       bool
	Metronome     bool
	Subdivision   int // metronome ticks per beat

	LeadIn          time.Duration // delay before the first scheduled event
	Lookahead       time.Duration // scheduling window ahead of the clock
	Cadence         time.Duration // how often Tick is called
	UIInterval      time.Duration // minimum gap between step notifications
	MaxStepsPerTick int           // iteration guard for one Tick
}

// DefaultSettings returns 120 BPM 4/4 with count-in and metronome off.
func DefaultSettings() Settings {
	return Settings{
		BPM:             120,
		TimeSignature:   sequencer.Common,
		Subdivision:     1,
		LeadIn:          100 * time.Millisecond,
		Lookahead:       240 * time.Millisecond,
		Cadence:         24 * time.Millisecond,
		UIInterval:      180 * time.Millisecond,
		MaxStepsPerTick: 256,
	}
}

// ClampBPM limits a tempo to the supported range.
func ClampBPM(bpm float64) float64 {
	return min(max(bpm, MinBPM), MaxBPM)
}

// WithBPM returns a copy with a clamped tempo.
func (s Settings) WithBPM(bpm float64) Settings {
	s.BPM = ClampBPM(bpm)
	return s
}

// WithTimeSignature returns a copy with another meter.
func (s Settings) WithTimeSignature(ts sequencer.TimeSignature) Settings {
	s.TimeSignature = ts
	return s
}

// Validate rejects settings the scheduler cannot run with.
func (s Settings) Validate() error {
	if s.BPM < MinBPM || s.BPM > MaxBPM {
		return fmt.Errorf("tempo %.1f outside %d..%d BPM", s.BPM, MinBPM, MaxBPM)
	}
	if sequencer.StepsPerBar(s.TimeSignature) == 0 {
		return fmt.Errorf("unsupported time signature %s", s.TimeSignature)
	}
	if s.Lookahead <= 0 || s.Cadence <= 0 {
		return fmt.Errorf("lookahead and cadence must be positive")
	}
	if s.Cadence >= s.Lookahead {
		return fmt.Errorf("cadence %v must be shorter than lookahead %v", s.Cadence, s.Lookahead)
	}
	return nil
}

// normalized fills zero-valued optional fields with defaults.
func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.Subdivision < 1 {
		s.Subdivision = 1
	}
	if s.LeadIn < 0 {
		s.LeadIn = 0
	}
	if s.Lookahead == 0 {
		s.Lookahead = d.Lookahead
	}
	if s.Cadence == 0 {
		s.Cadence = d.Cadence
	}
	if s.UIInterval <= 0 {
		s.UIInterval = d.UIInterval
	}
	if s.MaxStepsPerTick <= 0 {
		s.MaxStepsPerTick = d.MaxStepsPerTick
	}
	return s
}

// BeatSeconds is one quarter note, the count-in click spacing.
func (s Settings) BeatSeconds() float64 { return 60 / s.BPM }

// StepSeconds is one grid step.
func (s Settings) StepSeconds() float64 {
	return sequencer.StepSeconds(s.BPM, s.TimeSignature)
}

// MeterBeatSeconds is one beat of the meter: a quarter in 4/4, an eighth
// in 6/8.
func (s Settings) MeterBeatSeconds() float64 {
	return 60 / s.BPM * 4 / float64(s.TimeSignature.Unit)
}
