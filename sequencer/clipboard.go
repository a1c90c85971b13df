package sequencer

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrPasteOutOfRange is returned when no cell of a paste lands on the grid.
var ErrPasteOutOfRange = errors.New("paste lies outside the grid")

// Point addresses one grid cell.
type Point struct {
	Track int
	Step  int
}

// Selection is a rectangle spanned by two corners in any order.
type Selection struct {
	From, To Point
}

// Rect is a normalized, inclusive rectangle.
type Rect struct {
	TopLeft, BottomRight Point
}

// Size is a rectangle extent in tracks and steps.
type Size struct {
	Tracks int
	Steps  int
}

// Range normalizes the selection.
func (s Selection) Range() Rect {
	return Rect{
		TopLeft:     Point{Track: min(s.From.Track, s.To.Track), Step: min(s.From.Step, s.To.Step)},
		BottomRight: Point{Track: max(s.From.Track, s.To.Track), Step: max(s.From.Step, s.To.Step)},
	}
}

func (r Rect) Contains(p Point) bool {
	return r.TopLeft.Track <= p.Track && p.Track <= r.BottomRight.Track &&
		r.TopLeft.Step <= p.Step && p.Step <= r.BottomRight.Step
}

func (r Rect) Tracks() int { return r.BottomRight.Track - r.TopLeft.Track + 1 }
func (r Rect) Steps() int  { return r.BottomRight.Step - r.TopLeft.Step + 1 }

// Limit clips the rectangle to a tracks×steps grid.
func (r *Rect) Limit(tracks, steps int) {
	r.TopLeft.Track = max(r.TopLeft.Track, 0)
	r.TopLeft.Step = max(r.TopLeft.Step, 0)
	r.BottomRight.Track = min(r.BottomRight.Track, tracks-1)
	r.BottomRight.Step = min(r.BottomRight.Step, steps-1)
}

// Empty reports whether a limited rectangle has no cells.
func (r Rect) Empty() bool {
	return r.BottomRight.Track < r.TopLeft.Track || r.BottomRight.Step < r.TopLeft.Step
}

// Clip is a copied block of the grid. Hits is indexed [track][step]
// relative to the copy origin; override steps are offsets too.
type Clip struct {
	Hits      [][]bool       `yaml:"hits,flow"`
	Overrides []ClipOverride `yaml:"overrides,omitempty"`
}

// ClipOverride is an override stored relative to the clip origin.
type ClipOverride struct {
	Voice  Voice      `yaml:"voice"`
	Offset int        `yaml:"offset"`
	Length NoteLength `yaml:"length"`
}

// Size returns the clip extent.
func (c Clip) Size() Size {
	if len(c.Hits) == 0 {
		return Size{}
	}
	return Size{Tracks: len(c.Hits), Steps: len(c.Hits[0])}
}

// Empty reports whether the clip holds no cells.
func (c Clip) Empty() bool {
	s := c.Size()
	return s.Tracks == 0 || s.Steps == 0
}

// Marshal encodes the clip as YAML text for a system clipboard.
func (c Clip) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// UnmarshalClip decodes clip text; ragged rows are padded with rests.
func UnmarshalClip(data []byte) (Clip, error) {
	var c Clip
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Clip{}, fmt.Errorf("could not decode clip: %w", err)
	}
	width := 0
	for _, row := range c.Hits {
		width = max(width, len(row))
	}
	if width == 0 {
		return Clip{}, errors.New("clip has no cells")
	}
	for i, row := range c.Hits {
		for len(row) < width {
			row = append(row, false)
		}
		c.Hits[i] = row
	}
	return c, nil
}

func (tl *Timeline) limitedRange(sel Selection) Rect {
	r := sel.Range()
	r.Limit(NumTracks, tl.TotalSteps())
	return r
}

// selectedVoices reports which voices have a track inside [t0, t1].
func selectedVoices(t0, t1 int) map[Voice]bool {
	voices := make(map[Voice]bool, 2)
	for t := max(t0, 0); t <= t1 && t < NumTracks; t++ {
		voices[Track(t).Voice()] = true
	}
	return voices
}

// Copy captures the selected cells and the overrides anchored in the
// selected steps of every voice that has a selected track.
func (tl *Timeline) Copy(sel Selection) Clip {
	r := tl.limitedRange(sel)
	if r.Empty() {
		return Clip{}
	}
	c := Clip{Hits: make([][]bool, r.Tracks())}
	for i := range c.Hits {
		t := Track(r.TopLeft.Track + i)
		row := make([]bool, r.Steps())
		for j := range row {
			row[j] = tl.pattern.Hit(t, r.TopLeft.Step+j)
		}
		c.Hits[i] = row
	}
	voices := selectedVoices(r.TopLeft.Track, r.BottomRight.Track)
	for _, o := range tl.durations.Overrides() {
		if !voices[o.Voice] || o.Step < r.TopLeft.Step || o.Step > r.BottomRight.Step {
			continue
		}
		c.Overrides = append(c.Overrides, ClipOverride{
			Voice:  o.Voice,
			Offset: o.Step - r.TopLeft.Step,
			Length: o.Length,
		})
	}
	return c
}

// Paste writes the clip with its origin at anchor, clipped to the grid, and
// returns the size actually applied. Overrides of the affected voices inside
// the pasted steps are replaced by the clip's; clip overrides that would
// break an invariant at the destination are dropped.
func (tl *Timeline) Paste(anchor Point, c Clip) (Size, error) {
	if c.Empty() {
		return Size{}, ErrPasteOutOfRange
	}
	size := c.Size()
	r := Rect{
		TopLeft:     anchor,
		BottomRight: Point{Track: anchor.Track + size.Tracks - 1, Step: anchor.Step + size.Steps - 1},
	}
	r.Limit(NumTracks, tl.TotalSteps())
	if r.Empty() {
		return Size{}, ErrPasteOutOfRange
	}
	tl.saveUndo()
	for t := r.TopLeft.Track; t <= r.BottomRight.Track; t++ {
		row := c.Hits[t-anchor.Track]
		for s := r.TopLeft.Step; s <= r.BottomRight.Step; s++ {
			j := s - anchor.Step
			tl.pattern.SetHit(Track(t), s, j < len(row) && row[j])
		}
	}
	voices := selectedVoices(r.TopLeft.Track, r.BottomRight.Track)
	for v := range voices {
		tl.durations.ClearRange(v, r.TopLeft.Step, r.BottomRight.Step+1)
	}
	tl.durations.Cleanup()
	for _, o := range c.Overrides {
		step := anchor.Step + o.Offset
		if !voices[o.Voice] || step < r.TopLeft.Step || step > r.BottomRight.Step {
			continue
		}
		_ = tl.durations.SetOverride(o.Voice, step, o.Length)
	}
	return Size{Tracks: r.Tracks(), Steps: r.Steps()}, nil
}

// Delete clears the selected cells and the overrides anchored in the
// selected steps of the affected voices. It returns the number of hits
// removed.
func (tl *Timeline) Delete(sel Selection) int {
	r := tl.limitedRange(sel)
	if r.Empty() {
		return 0
	}
	removed := 0
	for t := r.TopLeft.Track; t <= r.BottomRight.Track; t++ {
		for s := r.TopLeft.Step; s <= r.BottomRight.Step; s++ {
			if tl.pattern.Hit(Track(t), s) {
				removed++
			}
		}
	}
	voices := selectedVoices(r.TopLeft.Track, r.BottomRight.Track)
	hasOverrides := false
	for _, o := range tl.durations.Overrides() {
		if voices[o.Voice] && r.TopLeft.Step <= o.Step && o.Step <= r.BottomRight.Step {
			hasOverrides = true
			break
		}
	}
	if removed == 0 && !hasOverrides {
		return 0
	}
	tl.saveUndo()
	for t := r.TopLeft.Track; t <= r.BottomRight.Track; t++ {
		for s := r.TopLeft.Step; s <= r.BottomRight.Step; s++ {
			tl.pattern.SetHit(Track(t), s, false)
		}
	}
	for v := range voices {
		tl.durations.ClearRange(v, r.TopLeft.Step, r.BottomRight.Step+1)
	}
	tl.durations.Cleanup()
	return removed
}
