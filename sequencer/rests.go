package sequencer

import "fmt"

// TokenKind classifies a notation token.
type TokenKind int

const (
	TokenNote TokenKind = iota
	TokenRest
	// TokenSpacer marks steps still sounding from a note that began before
	// the decomposed range. Renderers draw it with zero duration.
	TokenSpacer
)

func (k TokenKind) String() string {
	switch k {
	case TokenNote:
		return "note"
	case TokenRest:
		return "rest"
	case TokenSpacer:
		return "spacer"
	}
	return "?"
}

func (k TokenKind) MarshalText() ([]byte, error) {
	if k < TokenNote || k > TokenSpacer {
		return nil, fmt.Errorf("invalid token kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *TokenKind) UnmarshalText(text []byte) error {
	for kind := TokenNote; kind <= TokenSpacer; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown token kind %q", text)
}

// Token is one notation event of a voice. Length counts the grid steps the
// token covers, so the lengths of a decomposition always add up to the range.
type Token struct {
	Kind   TokenKind `json:"kind" yaml:"kind"`
	Voice  Voice     `json:"voice" yaml:"voice"`
	Step   int       `json:"step" yaml:"step"`
	Length int       `json:"length" yaml:"length"`
	Tracks []Track   `json:"tracks,omitempty" yaml:"tracks,omitempty,flow"`
	// Merged is set on notes where the other voice starts a note of the
	// same length at the same step.
	Merged bool `json:"merged,omitempty" yaml:"merged,omitempty"`
}

// End is the exclusive end step.
func (t Token) End() int { return t.Step + t.Length }

// Decompose returns the gap-free token sequence of voice v for one bar.
func Decompose(p *Pattern, d *Durations, v Voice, bar int) []Token {
	if bar < 0 || bar >= p.TotalBars() {
		return nil
	}
	start := bar * p.StepsPerBar()
	return DecomposeRange(p, d, v, start, start+p.StepsPerBar())
}

// DecomposeRange decomposes [from, to) for voice v. The range must not
// cross a bar line; it is clipped to the bar containing from.
//
// Rests are chosen greedily, largest first, and never extend over a hit of
// any track so that no hit is hidden behind a rest.
func DecomposeRange(p *Pattern, d *Durations, v Voice, from, to int) []Token {
	if !p.InRange(from) {
		return nil
	}
	to = min(to, p.BarEnd(from))
	if to <= from {
		return nil
	}
	var out []Token
	step := from
	if end := coveredUntil(p, d, v, from); end > from {
		end = min(end, to)
		out = append(out, Token{Kind: TokenSpacer, Voice: v, Step: from, Length: end - from})
		step = end
	}
	for step < to {
		if span, ok := d.SpanAt(v, step); ok {
			length := min(int(span.Length), to-step)
			_, merged := d.SameLengthAt(step)
			out = append(out, Token{
				Kind:   TokenNote,
				Voice:  v,
				Step:   step,
				Length: length,
				Tracks: voiceTracksAt(p, v, step),
				Merged: merged,
			})
			step += length
			continue
		}
		length := restLength(p, step, to)
		out = append(out, Token{Kind: TokenRest, Voice: v, Step: step, Length: length})
		step += length
	}
	return out
}

// restLength picks the largest rest starting at step that fits before to
// and does not cover a hit start of any track after step.
func restLength(p *Pattern, step, to int) int {
	for _, l := range noteLengths {
		end := step + int(l)
		if end > to {
			continue
		}
		if !p.AnyHitInRange(step+1, end) {
			return int(l)
		}
	}
	return 1
}

// coveredUntil returns the exclusive end of a voice note that started
// before step in the same bar and is still sounding at step, or step when
// there is none.
func coveredUntil(p *Pattern, d *Durations, v Voice, step int) int {
	barStart := p.BarStart(step)
	for s := step - 1; s >= barStart && s > step-int(Quarter); s-- {
		if span, ok := d.SpanAt(v, s); ok {
			if span.End() > step {
				return span.End()
			}
			return step
		}
	}
	return step
}

func voiceTracksAt(p *Pattern, v Voice, step int) []Track {
	var out []Track
	for _, t := range p.HitsAt(step) {
		if t.Voice() == v {
			out = append(out, t)
		}
	}
	return out
}
