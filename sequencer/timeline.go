package sequencer

import (
	"fmt"
)

// MaxBars bounds the timeline length.
const MaxBars = 64

const maxUndo = 64

// Timeline is the editing aggregate: the time signature, the hit pattern and
// the duration overrides. It keeps the override invariants after every edit.
//
// A Timeline is not safe for concurrent use; the owning session serializes
// edits and playback reads.
type Timeline struct {
	sig       TimeSignature
	pattern   *Pattern
	durations *Durations

	undoStack []timelineState
	redoStack []timelineState
}

type timelineState struct {
	sig       TimeSignature
	pattern   *Pattern
	durations *Durations
}

// NewTimeline creates an empty timeline of bars bars.
func NewTimeline(sig TimeSignature, bars int) (*Timeline, error) {
	spb := StepsPerBar(sig)
	if spb == 0 {
		return nil, fmt.Errorf("unsupported time signature %s", sig)
	}
	if bars < 1 || bars > MaxBars {
		return nil, fmt.Errorf("bar count %d out of range 1..%d", bars, MaxBars)
	}
	p := NewPattern(spb, bars)
	return &Timeline{sig: sig, pattern: p, durations: NewDurations(p)}, nil
}

func (tl *Timeline) TimeSignature() TimeSignature { return tl.sig }
func (tl *Timeline) StepsPerBar() int             { return tl.pattern.StepsPerBar() }
func (tl *Timeline) TotalBars() int               { return tl.pattern.TotalBars() }
func (tl *Timeline) TotalSteps() int              { return tl.pattern.TotalSteps() }

// Pattern exposes the hit grid for reading. Mutate only through Timeline.
func (tl *Timeline) Pattern() *Pattern { return tl.pattern }

// Durations exposes the resolver for reading. Mutate only through Timeline.
func (tl *Timeline) Durations() *Durations { return tl.durations }

// Hit reads one cell.
func (tl *Timeline) Hit(track Track, step int) bool { return tl.pattern.Hit(track, step) }

// HitsAt lists the tracks sounding at step.
func (tl *Timeline) HitsAt(step int) []Track { return tl.pattern.HitsAt(step) }

// SetHit writes one cell and cleans up overrides.
func (tl *Timeline) SetHit(track Track, step int, active bool) error {
	if !track.Valid() || !tl.pattern.InRange(step) {
		return fmt.Errorf("set %s@%d: %w", track, step, ErrStepOutOfRange)
	}
	if tl.pattern.Hit(track, step) == active {
		return nil
	}
	tl.saveUndo()
	tl.pattern.SetHit(track, step, active)
	tl.durations.Cleanup()
	return nil
}

// ToggleHit flips one cell and returns its new value.
func (tl *Timeline) ToggleHit(track Track, step int) (bool, error) {
	on := !tl.pattern.Hit(track, step)
	if err := tl.SetHit(track, step, on); err != nil {
		return false, err
	}
	return on, nil
}

// SetOverride assigns a note length; see Durations.SetOverride.
func (tl *Timeline) SetOverride(v Voice, step int, length NoteLength) error {
	if err := tl.durations.check(v, step, length); err != nil {
		return &OverrideError{Voice: v, Step: step, Length: length, Reason: err}
	}
	tl.saveUndo()
	return tl.durations.SetOverride(v, step, length)
}

// ClearOverride returns the note at step to the default length.
func (tl *Timeline) ClearOverride(v Voice, step int) bool {
	if _, ok := tl.durations.Override(v, step); !ok {
		return false
	}
	tl.saveUndo()
	return tl.durations.ClearOverride(v, step)
}

// CycleOverride steps the note length at step through 1, 2, 4, 8, skipping
// lengths that would be rejected. It returns the new length.
func (tl *Timeline) CycleOverride(v Voice, step int) (NoteLength, error) {
	if !tl.pattern.VoiceHitAt(v, step) {
		return 0, &OverrideError{Voice: v, Step: step, Reason: ErrNoHit}
	}
	cur := tl.durations.EffectiveLength(v, step)
	for l := cur.Next(); l != cur; l = l.Next() {
		if l == DefaultLength {
			tl.ClearOverride(v, step)
			return l, nil
		}
		if tl.durations.check(v, step, l) == nil {
			return l, tl.SetOverride(v, step, l)
		}
	}
	return cur, nil
}

// SetTimeSignature re-derives the grid resolution and re-samples the
// pattern into it.
func (tl *Timeline) SetTimeSignature(sig TimeSignature) error {
	spb := StepsPerBar(sig)
	if spb == 0 {
		return fmt.Errorf("unsupported time signature %s", sig)
	}
	if sig == tl.sig {
		return nil
	}
	tl.saveUndo()
	tl.sig = sig
	tl.resize(spb, tl.pattern.TotalBars())
	return nil
}

// SetBars changes the number of bars. Hits in removed bars are lost.
func (tl *Timeline) SetBars(bars int) error {
	if bars < 1 || bars > MaxBars {
		return fmt.Errorf("bar count %d out of range 1..%d", bars, MaxBars)
	}
	if bars == tl.pattern.TotalBars() {
		return nil
	}
	tl.saveUndo()
	tl.resize(tl.pattern.StepsPerBar(), bars)
	return nil
}

// resize re-samples hits and moves overrides along with their anchors.
// Overrides that no longer hold after the move are dropped.
func (tl *Timeline) resize(stepsPerBar, bars int) {
	oldSPB := tl.pattern.StepsPerBar()
	old := tl.durations.Overrides()
	tl.pattern.Resize(stepsPerBar, bars)
	tl.durations = NewDurations(tl.pattern)
	for _, o := range old {
		bar := o.Step / oldSPB
		if bar >= bars {
			continue
		}
		step := bar*stepsPerBar + rescaleStep(o.Step%oldSPB, oldSPB, stepsPerBar)
		length := snapLength(int(o.Length) * stepsPerBar / oldSPB)
		_ = tl.durations.SetOverride(o.Voice, step, length)
	}
}

// snapLength rounds a step count down to a note length.
func snapLength(steps int) NoteLength {
	for _, l := range noteLengths {
		if int(l) <= steps {
			return l
		}
	}
	return ThirtySecond
}

// Clear removes every hit and override.
func (tl *Timeline) Clear() {
	if tl.pattern.CountHits() == 0 {
		return
	}
	tl.saveUndo()
	tl.pattern = NewPattern(tl.pattern.StepsPerBar(), tl.pattern.TotalBars())
	tl.durations = NewDurations(tl.pattern)
}

// Decompose returns the notation tokens of voice v in bar.
func (tl *Timeline) Decompose(v Voice, bar int) []Token {
	return Decompose(tl.pattern, tl.durations, v, bar)
}

// Undo

func (tl *Timeline) capture() timelineState {
	p := tl.pattern.Clone()
	return timelineState{sig: tl.sig, pattern: p, durations: tl.durations.clone(p)}
}

func (tl *Timeline) restore(s timelineState) {
	tl.sig = s.sig
	tl.pattern = s.pattern
	tl.durations = s.durations
	tl.durations.rebind(tl.pattern)
}

func (tl *Timeline) saveUndo() {
	if len(tl.undoStack) >= maxUndo {
		tl.undoStack = tl.undoStack[1:]
	}
	tl.undoStack = append(tl.undoStack, tl.capture())
	tl.redoStack = tl.redoStack[:0]
}

// CanUndo reports whether Undo would change anything.
func (tl *Timeline) CanUndo() bool { return len(tl.undoStack) > 0 }

// CanRedo reports whether Redo would change anything.
func (tl *Timeline) CanRedo() bool { return len(tl.redoStack) > 0 }

// Undo reverts the last edit.
func (tl *Timeline) Undo() bool {
	if len(tl.undoStack) == 0 {
		return false
	}
	if len(tl.redoStack) >= maxUndo {
		tl.redoStack = tl.redoStack[1:]
	}
	tl.redoStack = append(tl.redoStack, tl.capture())
	tl.restore(tl.undoStack[len(tl.undoStack)-1])
	tl.undoStack = tl.undoStack[:len(tl.undoStack)-1]
	return true
}

// Redo re-applies the last undone edit.
func (tl *Timeline) Redo() bool {
	if len(tl.redoStack) == 0 {
		return false
	}
	if len(tl.undoStack) >= maxUndo {
		tl.undoStack = tl.undoStack[1:]
	}
	tl.undoStack = append(tl.undoStack, tl.capture())
	tl.restore(tl.redoStack[len(tl.redoStack)-1])
	tl.redoStack = tl.redoStack[:len(tl.redoStack)-1]
	return true
}
