package sequencer

import (
	"errors"
	"fmt"
	"sort"
)

// NoteLength is a note duration in steps.
type NoteLength int

const (
	ThirtySecond NoteLength = 1
	Sixteenth    NoteLength = 2
	Eighth       NoteLength = 4
	Quarter      NoteLength = 8
)

// DefaultLength applies to every hit without an override.
const DefaultLength = ThirtySecond

// noteLengths is ordered largest first.
var noteLengths = [...]NoteLength{Quarter, Eighth, Sixteenth, ThirtySecond}

func (l NoteLength) Valid() bool {
	switch l {
	case ThirtySecond, Sixteenth, Eighth, Quarter:
		return true
	}
	return false
}

func (l NoteLength) String() string {
	switch l {
	case ThirtySecond:
		return "32nd"
	case Sixteenth:
		return "16th"
	case Eighth:
		return "8th"
	case Quarter:
		return "quarter"
	}
	return fmt.Sprintf("%d steps", int(l))
}

// Next cycles 1 → 2 → 4 → 8 → 1.
func (l NoteLength) Next() NoteLength {
	switch l {
	case ThirtySecond:
		return Sixteenth
	case Sixteenth:
		return Eighth
	case Eighth:
		return Quarter
	}
	return ThirtySecond
}

// Rejection reasons for SetOverride.
var (
	ErrInvalidLength  = errors.New("length must be 1, 2, 4 or 8 steps")
	ErrStepOutOfRange = errors.New("step out of range")
	ErrNoHit          = errors.New("no hit for this voice at step")
	ErrCrossesBar     = errors.New("duration crosses the bar line")
	ErrOverlapsHit    = errors.New("duration overlaps another hit in the same voice")
)

// OverrideError describes a rejected override request.
type OverrideError struct {
	Voice  Voice
	Step   int
	Length NoteLength
	Reason error
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("override %s@%d=%d rejected: %v", e.Voice, e.Step, int(e.Length), e.Reason)
}

func (e *OverrideError) Unwrap() error { return e.Reason }

// Override is one explicit duration assignment.
type Override struct {
	Voice  Voice
	Step   int
	Length NoteLength
}

type overrideKey struct {
	voice Voice
	step  int
}

// Span is a resolved note: a voice hit starting at Step lasting Length steps.
type Span struct {
	Voice  Voice
	Step   int
	Length NoteLength
}

// End is the exclusive end step.
func (s Span) End() int { return s.Step + int(s.Length) }

// Durations resolves note lengths per voice on top of a Pattern. It is the
// only owner of override state.
type Durations struct {
	pattern   *Pattern
	overrides map[overrideKey]NoteLength
}

func NewDurations(p *Pattern) *Durations {
	return &Durations{
		pattern:   p,
		overrides: make(map[overrideKey]NoteLength),
	}
}

// SetOverride assigns an explicit length to the voice hit at step. Invalid
// requests fail closed and leave state unchanged.
func (d *Durations) SetOverride(v Voice, step int, length NoteLength) error {
	if err := d.check(v, step, length); err != nil {
		return &OverrideError{Voice: v, Step: step, Length: length, Reason: err}
	}
	d.overrides[overrideKey{v, step}] = length
	return nil
}

func (d *Durations) check(v Voice, step int, length NoteLength) error {
	if !length.Valid() {
		return ErrInvalidLength
	}
	if !v.Valid() || !d.pattern.InRange(step) {
		return ErrStepOutOfRange
	}
	if !d.pattern.VoiceHitAt(v, step) {
		return ErrNoHit
	}
	if step+int(length) > d.pattern.BarEnd(step) {
		return ErrCrossesBar
	}
	if d.pattern.VoiceHitInRange(v, step+1, step+int(length)) {
		return ErrOverlapsHit
	}
	return nil
}

// ClearOverride removes an override; it reports whether one existed.
func (d *Durations) ClearOverride(v Voice, step int) bool {
	k := overrideKey{v, step}
	if _, ok := d.overrides[k]; !ok {
		return false
	}
	delete(d.overrides, k)
	return true
}

// Override returns the stored override, if any.
func (d *Durations) Override(v Voice, step int) (NoteLength, bool) {
	l, ok := d.overrides[overrideKey{v, step}]
	return l, ok
}

// EffectiveLength is the stored override or DefaultLength.
func (d *Durations) EffectiveLength(v Voice, step int) NoteLength {
	if l, ok := d.overrides[overrideKey{v, step}]; ok {
		return l
	}
	return DefaultLength
}

// ClampToBar shrinks length to the largest note length that still ends at
// or before barEnd. It never returns less than one step.
func ClampToBar(step int, length NoteLength, barEnd int) NoteLength {
	for _, l := range noteLengths {
		if l <= length && step+int(l) <= barEnd {
			return l
		}
	}
	return ThirtySecond
}

// Cleanup re-establishes the override invariants after the pattern changed.
// Overrides whose anchor lost its voice hit are removed; overrides that now
// cover a later hit of the same voice are shortened, or removed when only the
// default length fits. It returns the number of overrides changed.
func (d *Durations) Cleanup() int {
	changed := 0
	for k, l := range d.overrides {
		if !d.pattern.InRange(k.step) || !d.pattern.VoiceHitAt(k.voice, k.step) {
			delete(d.overrides, k)
			changed++
			continue
		}
		fit := d.largestFit(k.voice, k.step, l)
		if fit == l {
			continue
		}
		changed++
		if fit == DefaultLength {
			delete(d.overrides, k)
		} else {
			d.overrides[k] = fit
		}
	}
	return changed
}

// largestFit returns the longest length not above limit that passes check.
func (d *Durations) largestFit(v Voice, step int, limit NoteLength) NoteLength {
	for _, l := range noteLengths {
		if l <= limit && d.check(v, step, l) == nil {
			return l
		}
	}
	return ThirtySecond
}

// SpanAt returns the resolved note starting at step in voice v.
func (d *Durations) SpanAt(v Voice, step int) (Span, bool) {
	if !d.pattern.VoiceHitAt(v, step) {
		return Span{}, false
	}
	l := ClampToBar(step, d.EffectiveLength(v, step), d.pattern.BarEnd(step))
	return Span{Voice: v, Step: step, Length: l}, true
}

// Spans returns all resolved notes of voice v in [from, to), ordered.
func (d *Durations) Spans(v Voice, from, to int) []Span {
	from, to = max(from, 0), min(to, d.pattern.TotalSteps())
	var out []Span
	for s := from; s < to; s++ {
		if sp, ok := d.SpanAt(v, s); ok {
			out = append(out, sp)
		}
	}
	return out
}

// SameLengthAt reports whether both voices start a note at step with equal
// resolved length. Renderers use it to draw a single merged event.
func (d *Durations) SameLengthAt(step int) (NoteLength, bool) {
	hand, ok := d.SpanAt(Hand, step)
	if !ok {
		return 0, false
	}
	foot, ok := d.SpanAt(Foot, step)
	if !ok || foot.Length != hand.Length {
		return 0, false
	}
	return hand.Length, true
}

// Overrides lists every override ordered by step, then voice.
func (d *Durations) Overrides() []Override {
	out := make([]Override, 0, len(d.overrides))
	for k, l := range d.overrides {
		out = append(out, Override{Voice: k.voice, Step: k.step, Length: l})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		return out[i].Voice < out[j].Voice
	})
	return out
}

// ClearRange removes overrides of voice v anchored in [from, to) and returns
// how many were removed.
func (d *Durations) ClearRange(v Voice, from, to int) int {
	n := 0
	for k := range d.overrides {
		if k.voice == v && k.step >= from && k.step < to {
			delete(d.overrides, k)
			n++
		}
	}
	return n
}

// rebind points the resolver at a new pattern and drops overrides that are
// no longer valid there.
func (d *Durations) rebind(p *Pattern) {
	d.pattern = p
	d.Cleanup()
}

func (d *Durations) clone(p *Pattern) *Durations {
	c := NewDurations(p)
	for k, l := range d.overrides {
		c.overrides[k] = l
	}
	return c
}
