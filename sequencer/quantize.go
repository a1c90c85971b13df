package sequencer

import (
	"fmt"
	"strconv"
	"strings"
)

// StepsPerWhole is the grid resolution: one step is a 32nd note.
const StepsPerWhole = 32

// TimeSignature is a meter like 4/4 or 6/8.
type TimeSignature struct {
	Beats int // numerator
	Unit  int // denominator
}

var (
	Common   = TimeSignature{Beats: 4, Unit: 4}
	Waltz    = TimeSignature{Beats: 3, Unit: 4}
	SixEight = TimeSignature{Beats: 6, Unit: 8}
)

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.Unit)
}

// Supported reports whether the signature maps onto a whole number of
// 32nd-note steps.
func (ts TimeSignature) Supported() bool {
	switch ts.Unit {
	case 2, 4, 8, 16:
	default:
		return false
	}
	return ts.Beats >= 1 && ts.Beats <= 16
}

// StepsPerBar returns the number of grid steps in one bar, or 0 when the
// signature is not supported.
func StepsPerBar(ts TimeSignature) int {
	if !ts.Supported() {
		return 0
	}
	return ts.Beats * StepsPerWhole / ts.Unit
}

// ParseTimeSignature parses "N/D".
func ParseTimeSignature(s string) (TimeSignature, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TimeSignature{}, fmt.Errorf("invalid time signature %q (expected N/D)", s)
	}
	beats, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("invalid time signature %q: %w", s, err)
	}
	unit, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("invalid time signature %q: %w", s, err)
	}
	ts := TimeSignature{Beats: beats, Unit: unit}
	if !ts.Supported() {
		return TimeSignature{}, fmt.Errorf("unsupported time signature %s", ts)
	}
	return ts, nil
}

// BarSeconds is the length of one bar in seconds. BPM counts quarter notes.
func BarSeconds(bpm float64, ts TimeSignature) float64 {
	if bpm <= 0 || !ts.Supported() {
		return 0
	}
	return 60 / bpm * float64(ts.Beats) * 4 / float64(ts.Unit)
}

// StepSeconds is the length of one grid step in seconds.
func StepSeconds(bpm float64, ts TimeSignature) float64 {
	spb := StepsPerBar(ts)
	if spb == 0 {
		return 0
	}
	return BarSeconds(bpm, ts) / float64(spb)
}
