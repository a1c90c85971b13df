package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-groove/debug"
	"go-groove/sequencer"
)

// PadHit is a note-on from a pad controller mapped to a track.
type PadHit struct {
	Track    sequencer.Track
	Velocity uint8
}

// TrackForNote finds the first track the kit plays with note.
func TrackForNote(kit sequencer.DrumKit, note uint8) (sequencer.Track, bool) {
	for i, n := range kit.Notes {
		if n == note {
			return sequencer.Track(i), true
		}
	}
	return 0, false
}

// PadInput listens to a MIDI input and reports pad hits on a channel.
type PadInput struct {
	kit  sequencer.DrumKit
	hits chan PadHit
	stop func()
}

// OpenPadInput starts listening on the named input port.
func OpenPadInput(portName string, kit sequencer.DrumKit) (*PadInput, error) {
	in, err := findIn(portName)
	if err != nil {
		return nil, err
	}
	p := &PadInput{kit: kit, hits: make(chan PadHit, 64)}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		p.handle(msg)
	})
	if err != nil {
		return nil, err
	}
	p.stop = stop
	debug.Log("midi", "pad input open port=%q", portName)
	return p, nil
}

func (p *PadInput) handle(msg gomidi.Message) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}
	t, ok := TrackForNote(p.kit, note)
	if !ok {
		debug.Log("midi", "unmapped pad note %d", note)
		return
	}
	select {
	case p.hits <- PadHit{Track: t, Velocity: velocity}:
	default:
	}
}

// Hits returns the channel of incoming pad hits.
func (p *PadInput) Hits() <-chan PadHit { return p.hits }

func (p *PadInput) Close() error {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	return nil
}
