package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go-groove/sequencer"
	"go-groove/transport"
)

// OutputKind selects the sound output.
type OutputKind string

const (
	OutputSynth OutputKind = "synth" // built-in drum synth on the audio device
	OutputMIDI  OutputKind = "midi"  // notes to an external drum machine
)

// AudioConfig configures the built-in synth output.
type AudioConfig struct {
	Output     OutputKind `json:"output"`
	SampleRate int        `json:"sampleRate,omitempty"`
	Gain       float64    `json:"gain,omitempty"`
	BufferMs   int        `json:"bufferMs,omitempty"` // player buffer, 0 for the driver default
}

// MIDIConfig configures the MIDI output and the optional pad input.
type MIDIConfig struct {
	PortName  string `json:"portName,omitempty"`
	Channel   int    `json:"channel,omitempty"` // 1-16
	Kit       string `json:"kit,omitempty"`
	InputPort string `json:"inputPort,omitempty"`
}

// TransportConfig stores the playback defaults.
type TransportConfig struct {
	BPM           float64 `json:"bpm"`
	TimeSignature string  `json:"timeSignature"`
	Bars          int     `json:"bars"`
	CountIn       bool    `json:"countIn"`
	Metronome     bool    `json:"metronome"`
	Subdivision   int     `json:"subdivision,omitempty"`
	LeadInMs      int     `json:"leadInMs,omitempty"`
	LookaheadMs   int     `json:"lookaheadMs,omitempty"`
	CadenceMs     int     `json:"cadenceMs,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastProject string `json:"lastProject,omitempty"`
	Palette     string `json:"palette,omitempty"` // path to a GIMP .gpl file
	AutosaveMs  int    `json:"autosaveMs,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Audio     AudioConfig     `json:"audio"`
	MIDI      MIDIConfig      `json:"midi,omitempty"`
	Transport TransportConfig `json:"transport"`
	UI        UIConfig        `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Output:     OutputSynth,
			SampleRate: 48000,
			Gain:       0.8,
		},
		MIDI: MIDIConfig{
			Channel: 10,
			Kit:     sequencer.DefaultKit,
		},
		Transport: TransportConfig{
			BPM:           120,
			TimeSignature: sequencer.Common.String(),
			Bars:          1,
			Subdivision:   1,
			LeadInMs:      100,
			LookaheadMs:   240,
			CadenceMs:     24,
		},
		UI: UIConfig{
			AutosaveMs: 1500,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-groove"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// Fields missing from the file keep their defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that would otherwise be replaced silently.
func (c *Config) Validate() error {
	if c.MIDI.Kit != "" && !slices.Contains(sequencer.KitNames(), c.MIDI.Kit) {
		return fmt.Errorf("unknown kit %q (available: %s)", c.MIDI.Kit, strings.Join(sequencer.KitNames(), ", "))
	}
	switch c.Audio.Output {
	case OutputSynth, OutputMIDI, "":
	default:
		return fmt.Errorf("unknown output %q", c.Audio.Output)
	}
	if c.Audio.BufferMs < 0 {
		return fmt.Errorf("negative audio buffer %dms", c.Audio.BufferMs)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// TimeSignature parses the configured meter, falling back to 4/4.
func (c *Config) TimeSignature() sequencer.TimeSignature {
	ts, err := sequencer.ParseTimeSignature(c.Transport.TimeSignature)
	if err != nil {
		return sequencer.Common
	}
	return ts
}

// TransportSettings builds the playback settings snapshot.
func (c *Config) TransportSettings() transport.Settings {
	s := transport.DefaultSettings()
	t := c.Transport
	s = s.WithBPM(t.BPM).WithTimeSignature(c.TimeSignature())
	s.CountIn = t.CountIn
	s.Metronome = t.Metronome
	if t.Subdivision > 0 {
		s.Subdivision = t.Subdivision
	}
	if t.LeadInMs > 0 {
		s.LeadIn = time.Duration(t.LeadInMs) * time.Millisecond
	}
	if t.LookaheadMs > 0 {
		s.Lookahead = time.Duration(t.LookaheadMs) * time.Millisecond
	}
	if t.CadenceMs > 0 {
		s.Cadence = time.Duration(t.CadenceMs) * time.Millisecond
	}
	return s
}

// SetTransportSettings stores tempo and metronome choices back.
func (c *Config) SetTransportSettings(s transport.Settings) {
	c.Transport.BPM = s.BPM
	c.Transport.TimeSignature = s.TimeSignature.String()
	c.Transport.CountIn = s.CountIn
	c.Transport.Metronome = s.Metronome
	c.Transport.Subdivision = s.Subdivision
}

// AudioBuffer returns the synth player buffer, zero for the default.
func (c *Config) AudioBuffer() time.Duration {
	if c.Audio.BufferMs <= 0 {
		return 0
	}
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// Kit returns the configured drum kit.
func (c *Config) Kit() sequencer.DrumKit {
	return sequencer.GetKit(c.MIDI.Kit)
}

// MIDIChannel returns the zero-based MIDI channel.
func (c *Config) MIDIChannel() uint8 {
	ch := c.MIDI.Channel
	if ch < 1 || ch > 16 {
		ch = 10
	}
	return uint8(ch - 1)
}

// Autosave returns the editor autosave delay.
func (c *Config) Autosave() time.Duration {
	if c.UI.AutosaveMs <= 0 {
		return 0
	}
	return time.Duration(c.UI.AutosaveMs) * time.Millisecond
}
