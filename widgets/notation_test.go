package widgets

import (
	"testing"

	"go-groove/sequencer"
	"go-groove/theme"
)

func TestNotationRow(t *testing.T) {
	th := theme.New(theme.Default())
	tokens := []sequencer.Token{
		{Kind: sequencer.TokenSpacer, Voice: sequencer.Hand, Step: 0, Length: 2},
		{Kind: sequencer.TokenNote, Voice: sequencer.Hand, Step: 2, Length: 2},
		{Kind: sequencer.TokenRest, Voice: sequencer.Hand, Step: 4, Length: 4},
		{Kind: sequencer.TokenNote, Voice: sequencer.Foot, Step: 8, Length: 1, Merged: true},
	}
	got := NotationRow(th, tokens, 8)
	want := "~~x─E    O"
	if got != want {
		t.Errorf("NotationRow = %q, want %q", got, want)
	}
}

func TestSummarizeTokens(t *testing.T) {
	tokens := []sequencer.Token{
		{Kind: sequencer.TokenNote, Length: 8},
		{Kind: sequencer.TokenRest, Length: 16},
		{Kind: sequencer.TokenSpacer, Length: 2},
		{Kind: sequencer.TokenNote, Length: 4, Merged: true},
	}
	if got := SummarizeTokens(tokens); got != "n8 r16 s2 N4" {
		t.Errorf("SummarizeTokens = %q", got)
	}
}
