package sequencer

// Pattern holds one boolean hit lane per track over the whole timeline.
// Steps are absolute: bar b covers [b*StepsPerBar, (b+1)*StepsPerBar).
type Pattern struct {
	stepsPerBar int
	totalBars   int
	hits        [NumTracks][]bool
}

// NewPattern creates an empty pattern. Non-positive sizes are raised to 1.
func NewPattern(stepsPerBar, totalBars int) *Pattern {
	p := &Pattern{
		stepsPerBar: max(stepsPerBar, 1),
		totalBars:   max(totalBars, 1),
	}
	for t := range p.hits {
		p.hits[t] = make([]bool, p.TotalSteps())
	}
	return p
}

func (p *Pattern) StepsPerBar() int { return p.stepsPerBar }
func (p *Pattern) TotalBars() int   { return p.totalBars }
func (p *Pattern) TotalSteps() int  { return p.stepsPerBar * p.totalBars }

// InRange reports whether step is a valid absolute step.
func (p *Pattern) InRange(step int) bool {
	return step >= 0 && step < p.TotalSteps()
}

// Hit reads one cell; out-of-range cells read as empty.
func (p *Pattern) Hit(track Track, step int) bool {
	if !track.Valid() || !p.InRange(step) {
		return false
	}
	return p.hits[track][step]
}

// SetHit writes one cell and reports whether the cell was addressable.
// Callers must run Durations.Cleanup afterwards.
func (p *Pattern) SetHit(track Track, step int, active bool) bool {
	if !track.Valid() || !p.InRange(step) {
		return false
	}
	p.hits[track][step] = active
	return true
}

// HitsAt returns every track with a hit at step, in track order.
func (p *Pattern) HitsAt(step int) []Track {
	if !p.InRange(step) {
		return nil
	}
	var out []Track
	for t := 0; t < NumTracks; t++ {
		if p.hits[t][step] {
			out = append(out, Track(t))
		}
	}
	return out
}

// VoiceHitAt reports whether any track of voice v has a hit at step.
func (p *Pattern) VoiceHitAt(v Voice, step int) bool {
	if !p.InRange(step) {
		return false
	}
	for t := 0; t < NumTracks; t++ {
		if Track(t).Voice() == v && p.hits[t][step] {
			return true
		}
	}
	return false
}

// VoiceHitInRange reports whether voice v has a hit start in [from, to).
func (p *Pattern) VoiceHitInRange(v Voice, from, to int) bool {
	from, to = max(from, 0), min(to, p.TotalSteps())
	for s := from; s < to; s++ {
		if p.VoiceHitAt(v, s) {
			return true
		}
	}
	return false
}

// AnyHitInRange reports whether any track has a hit start in [from, to).
func (p *Pattern) AnyHitInRange(from, to int) bool {
	from, to = max(from, 0), min(to, p.TotalSteps())
	for s := from; s < to; s++ {
		for t := 0; t < NumTracks; t++ {
			if p.hits[t][s] {
				return true
			}
		}
	}
	return false
}

// CountHits returns the number of active cells.
func (p *Pattern) CountHits() int {
	n := 0
	for t := range p.hits {
		for _, on := range p.hits[t] {
			if on {
				n++
			}
		}
	}
	return n
}

// BarOf returns the bar index containing step.
func (p *Pattern) BarOf(step int) int {
	if step < 0 {
		return 0
	}
	return step / p.stepsPerBar
}

// BarStart returns the first step of the bar containing step.
func (p *Pattern) BarStart(step int) int {
	return p.BarOf(step) * p.stepsPerBar
}

// BarEnd returns the exclusive end step of the bar containing step.
func (p *Pattern) BarEnd(step int) int {
	return p.BarStart(step) + p.stepsPerBar
}

// Resize changes the grid shape. Hits keep their relative position inside
// their bar, rounded to the nearest new step; bars beyond the new length are
// dropped and new bars start empty.
func (p *Pattern) Resize(stepsPerBar, totalBars int) {
	stepsPerBar, totalBars = max(stepsPerBar, 1), max(totalBars, 1)
	if stepsPerBar == p.stepsPerBar && totalBars == p.totalBars {
		return
	}
	total := stepsPerBar * totalBars
	for t := range p.hits {
		lane := make([]bool, total)
		for s, on := range p.hits[t] {
			if !on {
				continue
			}
			bar := s / p.stepsPerBar
			if bar >= totalBars {
				continue
			}
			pos := rescaleStep(s%p.stepsPerBar, p.stepsPerBar, stepsPerBar)
			lane[bar*stepsPerBar+pos] = true
		}
		p.hits[t] = lane
	}
	p.stepsPerBar = stepsPerBar
	p.totalBars = totalBars
}

// RescaleStep maps an absolute step on a grid of from steps per bar onto
// the same bar of a grid with to steps per bar.
func RescaleStep(step, from, to int) int {
	if from <= 0 || to <= 0 || from == to {
		return step
	}
	return step/from*to + rescaleStep(step%from, from, to)
}

// rescaleStep maps a position within a bar of size from onto a bar of size
// to, rounding half up and staying inside the bar.
func rescaleStep(pos, from, to int) int {
	if from == to {
		return pos
	}
	scaled := (2*pos*to + from) / (2 * from)
	return min(scaled, to-1)
}

// Clone returns a deep copy.
func (p *Pattern) Clone() *Pattern {
	c := &Pattern{stepsPerBar: p.stepsPerBar, totalBars: p.totalBars}
	for t := range p.hits {
		c.hits[t] = append([]bool(nil), p.hits[t]...)
	}
	return c
}
