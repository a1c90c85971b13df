package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-groove/debug"
	"go-groove/midi"
	"go-groove/project"
	"go-groove/sequencer"
	"go-groove/session"
	"go-groove/theme"
	"go-groove/transport"
	"go-groove/widgets"
)

const labelWidth = 13 // "%-12s "

// meters cycled by the time signature key.
var meters = []sequencer.TimeSignature{sequencer.Common, sequencer.Waltz, sequencer.SixEight}

// layoutBounds holds cached layout info
type layoutBounds struct {
	gridTop   int
	beatSteps int
	barStart  int
}

type Model struct {
	Session *session.Session
	Theme   *theme.Theme

	store    *project.Store
	project  string
	autosave func(func())
	saved    chan SavedMsg
	pads     <-chan midi.PadHit

	cursor   sequencer.Point
	mark     sequencer.Point
	marking  bool
	clip     sequencer.Clip
	status   string
	showHelp bool
	quitting bool
	bounds   *layoutBounds
}

type UpdateMsg struct{}

// PadMsg is a hit from the pad controller.
type PadMsg midi.PadHit

// SavedMsg reports a finished project save.
type SavedMsg struct {
	Filename string
	Err      error
}

type Option func(*Model)

// WithProject saves to store under name on demand and, when delay is
// positive, automatically after edits settle.
func WithProject(store *project.Store, name string, delay time.Duration) Option {
	return func(m *Model) {
		m.store = store
		m.project = name
		if delay > 0 {
			m.autosave = debounce.New(delay)
		}
	}
}

// WithPads records hits from a pad controller.
func WithPads(pads <-chan midi.PadHit) Option {
	return func(m *Model) { m.pads = pads }
}

func NewModel(sess *session.Session, th *theme.Theme, opts ...Option) Model {
	m := Model{
		Session: sess,
		Theme:   th,
		saved:   make(chan SavedMsg, 4),
		bounds:  &layoutBounds{},
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.autosave != nil {
		store, name, saved := m.store, m.project, m.saved
		sess.SetOnChange(func() {
			m.autosave(func() {
				filename, err := save(sess, store, name, "autosave")
				select {
				case saved <- SavedMsg{Filename: filename, Err: err}:
				default:
				}
			})
		})
	}
	return m
}

func save(sess *session.Session, store *project.Store, name, label string) (string, error) {
	bpm := sess.Settings().BPM
	var filename string
	var err error
	sess.View(func(tl *sequencer.Timeline) {
		filename, err = store.Save(name, label, tl, bpm)
	})
	if err != nil {
		debug.Warn("tui", "save failed: %v", err)
	}
	return filename, err
}

func ListenForUpdates(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		<-sess.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForPads(pads <-chan midi.PadHit) tea.Cmd {
	return func() tea.Msg {
		hit, ok := <-pads
		if !ok {
			return nil
		}
		return PadMsg(hit)
	}
}

func listenForSaves(saved <-chan SavedMsg) tea.Cmd {
	return func() tea.Msg { return <-saved }
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Session), listenForSaves(m.saved)}
	if m.pads != nil {
		cmds = append(cmds, ListenForPads(m.pads))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if p, ok := m.hitTest(msg.X, msg.Y); ok {
				m.cursor = p
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Session)

	case PadMsg:
		m.recordPad(midi.PadHit(msg))
		return m, ListenForPads(m.pads)

	case SavedMsg:
		if msg.Err != nil {
			m.status = "save failed: " + msg.Err.Error()
		} else {
			m.status = "saved " + msg.Filename
		}
		return m, listenForSaves(m.saved)
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	m.status = ""
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Session.Stop()
		return m, tea.Quit

	case "p":
		if err := m.Session.Toggle(); err != nil {
			m.status = err.Error()
		}

	case "g":
		m.Session.Seek(m.cursor.Step)

	case "h", "left":
		m.move(0, -1)
	case "l", "right":
		m.move(0, 1)
	case "k", "up":
		m.move(-1, 0)
	case "j", "down":
		m.move(1, 0)
	case "H":
		m.move(0, -m.beatSteps())
	case "L":
		m.move(0, m.beatSteps())
	case "[":
		m.move(0, -m.stepsPerBar())
	case "]":
		m.move(0, m.stepsPerBar())

	case " ":
		m.edit(func(tl *sequencer.Timeline) error {
			_, err := tl.ToggleHit(sequencer.Track(m.cursor.Track), m.cursor.Step)
			return err
		})

	case "d":
		track := sequencer.Track(m.cursor.Track)
		m.edit(func(tl *sequencer.Timeline) error {
			l, err := tl.CycleOverride(track.Voice(), m.cursor.Step)
			if err == nil {
				m.status = fmt.Sprintf("%s note at %d: %s", track.Voice(), m.cursor.Step+1, l)
			}
			return err
		})

	case "v":
		if m.marking {
			m.marking = false
		} else {
			m.mark, m.marking = m.cursor, true
		}
	case "esc":
		m.marking = false

	case "y":
		sel := m.selection()
		m.Session.View(func(tl *sequencer.Timeline) { m.clip = tl.Copy(sel) })
		size := m.clip.Size()
		m.status = fmt.Sprintf("copied %d×%d", size.Tracks, size.Steps)
		m.marking = false

	case "x":
		sel := m.selection()
		m.edit(func(tl *sequencer.Timeline) error {
			m.status = fmt.Sprintf("deleted %d hits", tl.Delete(sel))
			return nil
		})
		m.marking = false

	case "P":
		if m.clip.Empty() {
			m.status = "clipboard is empty"
			break
		}
		m.edit(func(tl *sequencer.Timeline) error {
			size, err := tl.Paste(m.cursor, m.clip)
			if err == nil {
				m.status = fmt.Sprintf("pasted %d×%d", size.Tracks, size.Steps)
			}
			return err
		})

	case "u":
		m.edit(func(tl *sequencer.Timeline) error {
			if !tl.Undo() {
				m.status = "nothing to undo"
			}
			return nil
		})
		m.clampCursor()
	case "ctrl+r":
		m.edit(func(tl *sequencer.Timeline) error {
			if !tl.Redo() {
				m.status = "nothing to redo"
			}
			return nil
		})
		m.clampCursor()

	case "C":
		m.edit(func(tl *sequencer.Timeline) error {
			tl.Clear()
			return nil
		})

	case "t":
		m.edit(func(tl *sequencer.Timeline) error {
			next := meters[0]
			for i, ts := range meters {
				if ts == tl.TimeSignature() {
					next = meters[(i+1)%len(meters)]
				}
			}
			return tl.SetTimeSignature(next)
		})
		m.clampCursor()

	case ">", ".":
		m.edit(func(tl *sequencer.Timeline) error { return tl.SetBars(tl.TotalBars() + 1) })
	case "<", ",":
		m.edit(func(tl *sequencer.Timeline) error { return tl.SetBars(tl.TotalBars() - 1) })
		m.clampCursor()

	case "+", "=":
		m.settings(func(s *transport.Settings) { *s = s.WithBPM(s.BPM + 5) })
	case "-", "_":
		m.settings(func(s *transport.Settings) { *s = s.WithBPM(s.BPM - 5) })
	case "c":
		m.settings(func(s *transport.Settings) { s.CountIn = !s.CountIn })
	case "m":
		m.settings(func(s *transport.Settings) { s.Metronome = !s.Metronome })
	case "M":
		m.settings(func(s *transport.Settings) { s.Subdivision = s.Subdivision%4 + 1 })

	case "s":
		if m.store == nil {
			m.status = "no project store"
			break
		}
		filename, err := save(m.Session, m.store, m.project, "")
		if err != nil {
			m.status = "save failed: " + err.Error()
		} else {
			m.status = "saved " + filename
		}

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

// edit applies fn through the session and reports rejections.
func (m *Model) edit(fn func(tl *sequencer.Timeline) error) {
	if err := m.Session.Edit(fn); err != nil {
		var oe *sequencer.OverrideError
		if errors.As(err, &oe) {
			m.status = oe.Error()
			return
		}
		m.status = err.Error()
	}
}

func (m *Model) settings(fn func(*transport.Settings)) {
	if err := m.Session.UpdateSettings(fn); err != nil {
		m.status = err.Error()
	}
}

// recordPad writes a pad hit at the playing step, or at the cursor when
// stopped.
func (m *Model) recordPad(hit midi.PadHit) {
	st := m.Session.Status()
	step := m.cursor.Step
	if st.State == transport.Playing {
		step = st.CurrentStep
	}
	m.edit(func(tl *sequencer.Timeline) error {
		return tl.SetHit(hit.Track, step, true)
	})
	if st.State != transport.Playing {
		m.cursor.Track = int(hit.Track)
	}
}

func (m *Model) move(dTrack, dStep int) {
	total := 0
	m.Session.View(func(tl *sequencer.Timeline) { total = tl.TotalSteps() })
	m.cursor.Track = min(max(m.cursor.Track+dTrack, 0), sequencer.NumTracks-1)
	m.cursor.Step = min(max(m.cursor.Step+dStep, 0), total-1)
}

func (m *Model) clampCursor() { m.move(0, 0) }

func (m Model) stepsPerBar() int {
	spb := 0
	m.Session.View(func(tl *sequencer.Timeline) { spb = tl.StepsPerBar() })
	return spb
}

func (m Model) beatSteps() int {
	var n int
	m.Session.View(func(tl *sequencer.Timeline) { n = tl.StepsPerBar() / tl.TimeSignature().Beats })
	return n
}

// selection is the marked rectangle, or the cursor cell.
func (m Model) selection() sequencer.Selection {
	if m.marking {
		return sequencer.Selection{From: m.mark, To: m.cursor}
	}
	return sequencer.Selection{From: m.cursor, To: m.cursor}
}

// hitTest maps a click to a grid cell.
func (m Model) hitTest(x, y int) (sequencer.Point, bool) {
	b := m.bounds
	row := y - b.gridTop
	col := x - labelWidth
	if b.beatSteps == 0 || row < 0 || row >= sequencer.NumTracks || col < 0 {
		return sequencer.Point{}, false
	}
	group, within := col/(b.beatSteps+1), col%(b.beatSteps+1)
	if within == b.beatSteps {
		return sequencer.Point{}, false
	}
	step := group*b.beatSteps + within
	if step >= m.stepsPerBar() {
		return sequencer.Point{}, false
	}
	return sequencer.Point{Track: row, Step: b.barStart + step}, true
}

// frame is what View needs from the timeline, read under one lock.
type frame struct {
	sig      sequencer.TimeSignature
	bars     int
	spb      int
	bar      int
	hits     [sequencer.NumTracks][]bool
	sustain  [sequencer.NumTracks][]bool
	notation [2][]sequencer.Token
}

func (m Model) frame() frame {
	var f frame
	m.Session.View(func(tl *sequencer.Timeline) {
		f.sig = tl.TimeSignature()
		f.bars = tl.TotalBars()
		f.spb = tl.StepsPerBar()
		f.bar = min(m.cursor.Step/f.spb, f.bars-1)
		start := f.bar * f.spb
		for t := 0; t < sequencer.NumTracks; t++ {
			f.hits[t] = make([]bool, f.spb)
			f.sustain[t] = make([]bool, f.spb)
			for s := 0; s < f.spb; s++ {
				f.hits[t][s] = tl.Hit(sequencer.Track(t), start+s)
			}
		}
		for _, v := range sequencer.Voices {
			for _, span := range tl.Durations().Spans(v, start, start+f.spb) {
				for _, t := range sequencer.TracksOf(v) {
					if !tl.Hit(t, span.Step) {
						continue
					}
					for s := span.Step + 1; s < span.End(); s++ {
						f.sustain[t][s-start] = true
					}
				}
			}
			f.notation[v] = tl.Decompose(v, f.bar)
		}
	})
	return f
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	f := m.frame()
	st := m.Session.Status()
	settings := m.Session.Settings()
	sym := m.Theme.Symbols
	beatSteps := f.spb / f.sig.Beats
	start := f.bar * f.spb

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())
	selectStyle := lipgloss.NewStyle().Background(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	state := "STOP"
	switch st.State {
	case transport.CountingIn:
		state = "COUNT"
	case transport.Playing:
		state = "PLAY"
	}
	flags := ""
	if settings.CountIn {
		flags += " count-in"
	}
	if settings.Metronome {
		flags += fmt.Sprintf(" click/%d", settings.Subdivision)
	}
	name := m.project
	if name == "" {
		name = "untitled"
	}
	header := headerStyle.Render(fmt.Sprintf("go-groove  %s  %s  %3.0fbpm  %s  bar %d/%d  step %02d%s",
		name, state, settings.BPM, f.sig, f.bar+1, f.bars, st.CurrentStep+1, flags))

	var sel sequencer.Rect
	if m.marking {
		sel = m.selection().Range()
	}

	var grid strings.Builder
	for t := 0; t < sequencer.NumTracks; t++ {
		grid.WriteString(dimStyle.Render(fmt.Sprintf("%-12s ", sequencer.Track(t))))
		for s := 0; s < f.spb; s++ {
			if s > 0 && s%beatSteps == 0 {
				grid.WriteString(dimStyle.Render(string(sym.BeatLine)))
			}
			step := start + s
			isCursor := t == m.cursor.Track && step == m.cursor.Step
			isPlayhead := st.State == transport.Playing && step == st.CurrentStep

			var char rune
			style := dimStyle
			switch {
			case isPlayhead && isCursor:
				char, style = sym.CursorPlayhead, playStyle
			case isPlayhead:
				char, style = sym.StepPlayhead, playStyle
			case f.hits[t][s] && isCursor:
				char, style = sym.CursorActive, cursorStyle
			case f.hits[t][s]:
				char, style = sym.StepActive, activeStyle
			case isCursor:
				char, style = sym.CursorEmpty, cursorStyle
			case f.sustain[t][s]:
				char, style = sym.StepSustain, activeStyle
			default:
				char = sym.StepEmpty
			}
			if m.marking && sel.Contains(sequencer.Point{Track: t, Step: step}) {
				style = style.Inherit(selectStyle)
			}
			grid.WriteString(style.Render(string(char)))
		}
		grid.WriteString("\n")
	}

	var notation strings.Builder
	for _, v := range sequencer.Voices {
		notation.WriteString(dimStyle.Render(fmt.Sprintf("%-12s ", v)))
		notation.WriteString(widgets.NotationRow(m.Theme, f.notation[v], beatSteps))
		notation.WriteString("\n")
	}

	// Layout bounds for mouse hits
	m.bounds.gridTop = 1 + lipgloss.Height(header) + 1
	m.bounds.beatSteps = beatSteps
	m.bounds.barStart = start

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(grid.String())
	out.WriteString("\n")
	out.WriteString(notation.String())
	out.WriteString("\n")
	if m.status != "" {
		out.WriteString(statusStyle.Render(m.status))
		out.WriteString("\n")
	}
	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(keyHelp))
	} else {
		out.WriteString(dimStyle.Render("hjkl:move  space:hit  d:length  v:mark  y/x/P:copy/delete/paste  p:play  ?:help  q:quit"))
	}
	return out.String()
}

var keyHelp = []widgets.KeySection{
	{Title: "Grid", Keys: []widgets.KeyBinding{
		{Key: "h j k l", Desc: "move cursor"},
		{Key: "H / L", Desc: "previous/next beat"},
		{Key: "[ / ]", Desc: "previous/next bar"},
		{Key: "space", Desc: "toggle hit"},
		{Key: "d", Desc: "cycle note length of the voice"},
		{Key: "C", Desc: "clear pattern"},
		{Key: "u / ctrl+r", Desc: "undo/redo"},
	}},
	{Title: "Selection", Keys: []widgets.KeyBinding{
		{Key: "v", Desc: "start/end selection"},
		{Key: "y", Desc: "copy"},
		{Key: "x", Desc: "delete"},
		{Key: "P", Desc: "paste at cursor"},
	}},
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "play/stop"},
		{Key: "g", Desc: "start from cursor"},
		{Key: "+ / -", Desc: "tempo"},
		{Key: "c", Desc: "count-in on/off"},
		{Key: "m / M", Desc: "metronome on/off, subdivision"},
		{Key: "t", Desc: "time signature 4/4, 3/4, 6/8"},
		{Key: "< / >", Desc: "remove/add bar"},
		{Key: "s", Desc: "save project"},
	}},
}
