package widgets

import (
	"strconv"
	"strings"
	"unicode"

	"go-groove/sequencer"
	"go-groove/theme"
)

// NotationRow renders the tokens of one voice as a line of cells aligned
// with the step grid: a note head followed by its sustain, a rest glyph
// followed by blanks, or spacer marks.
func NotationRow(th *theme.Theme, tokens []sequencer.Token, beatSteps int) string {
	var b strings.Builder
	col := 0
	cell := func(r rune) {
		if col > 0 && beatSteps > 0 && col%beatSteps == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		col++
	}
	for _, tok := range tokens {
		for i := 0; i < tok.Length; i++ {
			switch {
			case tok.Kind == sequencer.TokenSpacer:
				cell(th.Symbols.Spacer)
			case tok.Kind == sequencer.TokenRest && i == 0:
				cell(th.RestSymbol(tok.Length))
			case tok.Kind == sequencer.TokenRest:
				cell(' ')
			case i == 0:
				cell(noteHead(th, tok))
			default:
				cell(th.Symbols.StepSustain)
			}
		}
	}
	return b.String()
}

func noteHead(th *theme.Theme, tok sequencer.Token) rune {
	head := th.Symbols.HandHead
	if tok.Voice == sequencer.Foot {
		head = th.Symbols.FootHead
	}
	if tok.Merged {
		return unicode.ToUpper(head)
	}
	return head
}

// SummarizeTokens writes tokens as short text like "n8 r8 r16", used by the
// notate command.
func SummarizeTokens(tokens []sequencer.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		var prefix string
		switch tok.Kind {
		case sequencer.TokenNote:
			prefix = "n"
			if tok.Merged {
				prefix = "N"
			}
		case sequencer.TokenRest:
			prefix = "r"
		case sequencer.TokenSpacer:
			prefix = "s"
		}
		parts = append(parts, prefix+strconv.Itoa(tok.Length))
	}
	return strings.Join(parts, " ")
}
