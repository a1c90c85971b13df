package theme

import (
	"github.com/charmbracelet/lipgloss"

	"go-groove/sequencer"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Grid states (no cursor)
	StepEmpty    rune // · no hit
	StepActive   rune // ● hit
	StepSustain  rune // ─ inside an override span
	StepPlayhead rune // ▶ current playing

	// Grid states (with cursor)
	CursorEmpty    rune // ○ cursor on empty
	CursorActive   rune // ◉ cursor on hit
	CursorPlayhead rune // ▷ cursor on playhead

	BeatLine rune // │ between beats

	// Notation strip
	HandHead rune // x
	FootHead rune // o
	Spacer   rune // ~ carried over from an earlier note
	Rests    map[sequencer.NoteLength]rune
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepActive:   '●',
			StepSustain:  '─',
			StepPlayhead: '▶',

			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',

			BeatLine: '│',

			HandHead: 'x',
			FootHead: 'o',
			Spacer:   '~',
			Rests: map[sequencer.NoteLength]rune{
				sequencer.Quarter:      'Q',
				sequencer.Eighth:       'E',
				sequencer.Sixteenth:    'S',
				sequencer.ThirtySecond: 'T',
			},
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}

// RestSymbol returns the glyph for a rest of length steps.
func (t *Theme) RestSymbol(length int) rune {
	if r, ok := t.Symbols.Rests[sequencer.NoteLength(length)]; ok {
		return r
	}
	return t.Symbols.Rests[sequencer.ThirtySecond]
}
