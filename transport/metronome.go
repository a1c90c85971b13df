package transport

// ClickKind classifies a metronome tick.
type ClickKind int

const (
	ClickBar         ClickKind = iota // first beat of a bar
	ClickBeat                         // any other beat
	ClickSubdivision                  // between beats
)

func (k ClickKind) String() string {
	switch k {
	case ClickBar:
		return "bar"
	case ClickBeat:
		return "beat"
	case ClickSubdivision:
		return "sub"
	}
	return "?"
}

// Classify places tick index i in a bar of beatsPerBar beats divided into
// subdivisions ticks each.
func Classify(i, subdivisions, beatsPerBar int) ClickKind {
	subdivisions, beatsPerBar = max(subdivisions, 1), max(beatsPerBar, 1)
	if i%subdivisions != 0 {
		return ClickSubdivision
	}
	if (i/subdivisions)%beatsPerBar == 0 {
		return ClickBar
	}
	return ClickBeat
}

// Metronome generates clicks on the transport's clock. It shares the
// transport's origin, cadence and lookahead, so the two stay in phase
// without talking to each other between ticks.
type Metronome struct {
	out Device

	running             bool
	beatsPerBar         int
	subdivisionsPerBeat int
	secondsPerTick      float64
	lookahead           float64
	guard               int
	nextTickTime        float64
	tickIndex           int
}

func NewMetronome(out Device) *Metronome {
	return &Metronome{out: out}
}

// Start begins ticking at origin on the device clock.
func (m *Metronome) Start(origin float64, s Settings) {
	s = s.normalized()
	m.beatsPerBar = max(s.TimeSignature.Beats, 1)
	m.subdivisionsPerBeat = s.Subdivision
	m.secondsPerTick = s.MeterBeatSeconds() / float64(s.Subdivision)
	m.lookahead = s.Lookahead.Seconds()
	m.guard = s.MaxStepsPerTick
	m.nextTickTime = origin
	m.tickIndex = 0
	m.running = m.secondsPerTick > 0
}

// Tick schedules every click due before now plus the lookahead and returns
// how many were scheduled.
func (m *Metronome) Tick(now float64) int {
	if !m.running {
		return 0
	}
	n := 0
	for m.nextTickTime <= now+m.lookahead && n < m.guard {
		m.out.Schedule(Event{
			Kind:  EventClick,
			Step:  m.tickIndex,
			Time:  m.nextTickTime,
			Click: Classify(m.tickIndex, m.subdivisionsPerBeat, m.beatsPerBar),
		})
		m.tickIndex++
		m.nextTickTime += m.secondsPerTick
		n++
	}
	return n
}

// Stop halts tick generation. Queued clicks are cancelled with the rest of
// the device queue by the transport.
func (m *Metronome) Stop() {
	m.running = false
	m.tickIndex = 0
	m.nextTickTime = 0
}

func (m *Metronome) Running() bool { return m.running }
