package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-groove/audio"
	"go-groove/config"
	"go-groove/debug"
	"go-groove/midi"
	"go-groove/sequencer"
	"go-groove/session"
	"go-groove/transport"
)

var (
	debugLog   bool
	outputFlag string
)

var rootCmd = &cobra.Command{
	Use:   "groove",
	Short: "Drum step sequencer",
	Long: `groove programs percussion patterns on a 32nd-note grid and plays them
back through the built-in drum synth or an external MIDI drum machine.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugLog {
			return debug.Enable()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log to ~/.config/go-groove/debug.log")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "sound output: synth or midi (default from config)")
}

func Execute() {
	err := rootCmd.Execute()
	midi.CloseDriver()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openOutput builds the configured sound output.
func openOutput(cfg *config.Config) (transport.Device, error) {
	kind := cfg.Audio.Output
	if outputFlag != "" {
		kind = config.OutputKind(outputFlag)
	}
	switch kind {
	case config.OutputSynth, "":
		return audio.NewOutput(
			audio.WithSampleRate(cfg.Audio.SampleRate),
			audio.WithGain(cfg.Audio.Gain),
			audio.WithBufferSize(cfg.AudioBuffer()),
		), nil
	case config.OutputMIDI:
		return midi.NewOutput(cfg.MIDI.PortName,
			midi.WithChannel(cfg.MIDIChannel()),
			midi.WithKit(cfg.Kit()),
		), nil
	}
	return nil, fmt.Errorf("unknown output %q", kind)
}

// newSession wires a timeline to the configured output. A positive bpm
// stored with the pattern overrides the configured tempo.
func newSession(cfg *config.Config, tl *sequencer.Timeline, bpm float64) (*session.Session, error) {
	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	settings := cfg.TransportSettings()
	if bpm > 0 {
		settings = settings.WithBPM(bpm)
	}
	return session.New(tl, out, &transport.TickerTimer{}, settings), nil
}

func reportNormalization(path string, n sequencer.Normalization) {
	if !n.Clean() {
		fmt.Fprintf(os.Stderr, "%s: repaired on load (%s)\n", path, n)
	}
}
