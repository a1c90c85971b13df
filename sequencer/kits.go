package sequencer

import (
	"fmt"
	"strings"
)

// Track is a drum sound lane in the grid.
type Track int

const (
	Kick Track = iota
	Snare
	ClosedHat
	OpenHat
	PedalHat
	HighTom
	MidTom
	FloorTom
	Crash
	Ride
	Rimshot
	Clap
	Cowbell
	NumTracks int = iota
)

var trackNames = [NumTracks]string{
	"kick", "snare", "hihat-closed", "hihat-open", "hihat-pedal",
	"tom-high", "tom-mid", "tom-floor", "crash", "ride",
	"rimshot", "clap", "cowbell",
}

func (t Track) String() string {
	if !t.Valid() {
		return fmt.Sprintf("track(%d)", int(t))
	}
	return trackNames[t]
}

func (t Track) Valid() bool {
	return t >= 0 && int(t) < NumTracks
}

// ParseTrack looks up a track by its name.
func ParseTrack(name string) (Track, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range trackNames {
		if n == name {
			return Track(i), true
		}
	}
	return 0, false
}

// AllTracks returns every track in grid order.
func AllTracks() []Track {
	out := make([]Track, NumTracks)
	for i := range out {
		out[i] = Track(i)
	}
	return out
}

// Voice is a notation line. Every track is written in exactly one voice.
type Voice int

const (
	Hand Voice = iota
	Foot
)

// Voices lists both voices, hand first.
var Voices = [2]Voice{Hand, Foot}

func (v Voice) String() string {
	switch v {
	case Hand:
		return "hand"
	case Foot:
		return "foot"
	}
	return fmt.Sprintf("voice(%d)", int(v))
}

func (v Voice) Valid() bool {
	return v == Hand || v == Foot
}

// ParseVoice accepts "hand" or "foot".
func ParseVoice(name string) (Voice, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hand":
		return Hand, true
	case "foot":
		return Foot, true
	}
	return 0, false
}

// Voice returns the notation voice of the track.
func (t Track) Voice() Voice {
	switch t {
	case Kick, PedalHat:
		return Foot
	}
	return Hand
}

// TracksOf returns the tracks written in voice v.
func TracksOf(v Voice) []Track {
	var out []Track
	for i := 0; i < NumTracks; i++ {
		if Track(i).Voice() == v {
			out = append(out, Track(i))
		}
	}
	return out
}

// DrumKit maps tracks to MIDI notes
type DrumKit struct {
	Name  string
	Notes [NumTracks]uint8
}

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name: "General MIDI",
		Notes: [NumTracks]uint8{
			36, // Kick
			38, // Snare
			42, // Closed HH
			46, // Open HH
			44, // Pedal HH
			50, // High Tom
			47, // Mid Tom
			41, // Floor Tom
			49, // Crash
			51, // Ride
			37, // Rimshot
			39, // Clap
			56, // Cowbell
		},
	},
	"rd8": {
		Name: "Behringer RD-8",
		Notes: [NumTracks]uint8{
			36, // Kick (BD)
			40, // Snare (SD) - note: RD-8 uses 40, not 38!
			42, // Closed HH (CH)
			46, // Open HH (OH)
			42, // no pedal hat, closed instead
			50, // High Tom (HT)
			48, // Mid Tom (MT)
			45, // Low Tom (LT)
			49, // Crash (CY)
			51, // Ride (RC)
			37, // Rimshot (RS)
			39, // Clap (CP)
			56, // Cowbell (CB)
		},
	},
	"tr8s": {
		Name: "Roland TR-8S",
		Notes: [NumTracks]uint8{
			36, // Kick
			38, // Snare
			42, // Closed HH
			46, // Open HH
			44, // Pedal HH
			45, // High Tom
			43, // Mid Tom
			41, // Low Tom
			49, // Crash
			51, // Ride
			37, // Rimshot
			39, // Clap
			56, // Cowbell
		},
	},
}

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits["gm"]
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

func (t Track) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid track %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Track) UnmarshalText(text []byte) error {
	tr, ok := ParseTrack(string(text))
	if !ok {
		return fmt.Errorf("unknown track %q", text)
	}
	*t = tr
	return nil
}

func (v Voice) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid voice %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *Voice) UnmarshalText(text []byte) error {
	vv, ok := ParseVoice(string(text))
	if !ok {
		return fmt.Errorf("unknown voice %q", text)
	}
	*v = vv
	return nil
}
