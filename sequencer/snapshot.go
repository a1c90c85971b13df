package sequencer

import (
	"fmt"
	"sort"
)

// Snapshot is the pure serialized form of a timeline. Pattern lists the hit
// steps of every track that has hits.
type Snapshot struct {
	TimeSignature string           `json:"timeSignature" yaml:"timeSignature"`
	StepsPerBar   int              `json:"stepsPerBar" yaml:"stepsPerBar"`
	TotalBars     int              `json:"totalBars" yaml:"totalBars"`
	Pattern       map[string][]int `json:"pattern" yaml:"pattern"`
	Overrides     []OverrideState  `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// OverrideState is one serialized override.
type OverrideState struct {
	Voice  string `json:"voice" yaml:"voice"`
	Step   int    `json:"step" yaml:"step"`
	Length int    `json:"length" yaml:"length"`
}

// Normalization reports what FromSnapshot had to repair.
type Normalization struct {
	Resampled        bool // stepsPerBar disagreed with the time signature
	DroppedHits      int  // hits outside the grid or on unknown tracks
	DroppedOverrides int  // overrides that broke an invariant
}

// Clean reports whether the snapshot was accepted as-is.
func (n Normalization) Clean() bool {
	return !n.Resampled && n.DroppedHits == 0 && n.DroppedOverrides == 0
}

func (n Normalization) String() string {
	if n.Clean() {
		return "clean"
	}
	return fmt.Sprintf("resampled=%v droppedHits=%d droppedOverrides=%d", n.Resampled, n.DroppedHits, n.DroppedOverrides)
}

// Snapshot serializes the timeline.
func (tl *Timeline) Snapshot() Snapshot {
	s := Snapshot{
		TimeSignature: tl.sig.String(),
		StepsPerBar:   tl.pattern.StepsPerBar(),
		TotalBars:     tl.pattern.TotalBars(),
		Pattern:       make(map[string][]int),
	}
	for t := 0; t < NumTracks; t++ {
		var steps []int
		for step, on := range tl.pattern.hits[t] {
			if on {
				steps = append(steps, step)
			}
		}
		if len(steps) > 0 {
			s.Pattern[Track(t).String()] = steps
		}
	}
	for _, o := range tl.durations.Overrides() {
		s.Overrides = append(s.Overrides, OverrideState{Voice: o.Voice.String(), Step: o.Step, Length: int(o.Length)})
	}
	return s
}

// maxStepsPerBar is the widest bar any supported signature produces.
const maxStepsPerBar = StepsPerWhole * 16

// FromSnapshot rebuilds a timeline from serialized or imported data. Only
// the time signature must be valid. A grid stored at another resolution is
// re-sampled, hits outside the grid or on unknown tracks are dropped, and
// overrides go through the resolver so invalid ones are dropped.
func FromSnapshot(s Snapshot) (*Timeline, Normalization, error) {
	var n Normalization
	sig, err := ParseTimeSignature(s.TimeSignature)
	if err != nil {
		return nil, n, err
	}
	bars := min(max(s.TotalBars, 1), MaxBars)
	tl, err := NewTimeline(sig, bars)
	if err != nil {
		return nil, n, err
	}
	stored := s.StepsPerBar
	if stored <= 0 {
		stored = tl.StepsPerBar()
	}
	// A grid finer than the widest supported bar cannot be mapped back;
	// its hits and overrides are dropped rather than allocated.
	usable := stored <= maxStepsPerBar
	if !usable {
		stored = tl.StepsPerBar()
	}
	grid := NewPattern(stored, bars)
	names := make([]string, 0, len(s.Pattern))
	for name := range s.Pattern {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t, ok := ParseTrack(name)
		for _, step := range s.Pattern[name] {
			if !usable || !ok || !grid.SetHit(t, step, true) {
				n.DroppedHits++
			}
		}
	}
	if !usable || stored != tl.StepsPerBar() {
		n.Resampled = true
	}
	durations := NewDurations(grid)
	for _, o := range s.Overrides {
		v, ok := ParseVoice(o.Voice)
		if !usable || !ok || durations.SetOverride(v, o.Step, NoteLength(o.Length)) != nil {
			n.DroppedOverrides++
		}
	}
	tl.pattern = grid
	tl.durations = durations
	if n.Resampled {
		before := len(durations.overrides)
		tl.resize(StepsPerBar(sig), bars)
		n.DroppedOverrides += before - len(tl.durations.overrides)
	}
	return tl, n, nil
}
