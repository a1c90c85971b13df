package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-groove/config"
	"go-groove/midi"
	"go-groove/sequencer"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Lists MIDI ports and drum kits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		printKits(os.Stdout, cfg.MIDI.Kit)

		ports, err := midi.ListPorts(3 * time.Second)
		if err != nil {
			return fmt.Errorf("%w (on macOS: sudo killall coreaudiod midiserver)", err)
		}
		fmt.Println("\n=== MIDI Input Ports ===")
		for i, name := range ports.In {
			fmt.Printf("  %d: %s\n", i, name)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, name := range ports.Out {
			fmt.Printf("  %d: %s\n", i, name)
		}
		return nil
	},
}

// printKits lists the kits and the note map of the selected one.
func printKits(w io.Writer, selected string) {
	fmt.Fprintln(w, "=== Drum Kits ===")
	for _, name := range sequencer.KitNames() {
		mark := " "
		if name == selected {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %-5s %s\n", mark, name, sequencer.GetKit(name).Name)
	}
	kit := sequencer.GetKit(selected)
	fmt.Fprintf(w, "\n=== %s Notes ===\n", kit.Name)
	for _, tr := range sequencer.AllTracks() {
		fmt.Fprintf(w, "  %-12s %3d\n", tr, kit.Notes[tr])
	}
}
