package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-groove/config"
	"go-groove/debug"
	"go-groove/midi"
	"go-groove/project"
	"go-groove/sequencer"
	"go-groove/theme"
	"go-groove/tui"
)

func init() {
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit [project]",
	Short: "Opens the pattern editor",
	Long: `Opens the pattern editor on the newest save of a project, or on a new
empty pattern. Without a name the last edited project is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		name := cfg.UI.LastProject
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			name = "untitled"
		}

		store, err := project.DefaultStore()
		if err != nil {
			return err
		}
		tl, bpm, err := openProject(cfg, store, name)
		if err != nil {
			return err
		}

		sess, err := newSession(cfg, tl, bpm)
		if err != nil {
			return err
		}
		defer sess.Close()

		palette, err := theme.Load(cfg.UI.Palette)
		if err != nil {
			return err
		}
		opts := []tui.Option{tui.WithProject(store, name, cfg.Autosave())}
		if cfg.MIDI.InputPort != "" {
			pads, err := midi.OpenPadInput(cfg.MIDI.InputPort, cfg.Kit())
			if err != nil {
				debug.Warn("edit", "pad input unavailable: %v", err)
			} else {
				defer pads.Close()
				opts = append(opts, tui.WithPads(pads.Hits()))
			}
		}

		m := tui.NewModel(sess, theme.New(palette), opts...)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
		if _, err := p.Run(); err != nil {
			return err
		}

		cfg.UI.LastProject = name
		cfg.SetTransportSettings(sess.Settings())
		sess.View(func(tl *sequencer.Timeline) { cfg.Transport.Bars = tl.TotalBars() })
		return cfg.Save()
	},
}

// openProject loads the newest save, or creates an empty timeline with the
// configured meter and length.
func openProject(cfg *config.Config, store *project.Store, name string) (*sequencer.Timeline, float64, error) {
	tl, f, norm, err := store.Load(name, "")
	if err == nil {
		reportNormalization(name, norm)
		return tl, f.BPM, nil
	}
	if !errors.Is(err, project.ErrNoSaves) {
		return nil, 0, err
	}
	bars := min(max(cfg.Transport.Bars, 1), sequencer.MaxBars)
	tl, err = sequencer.NewTimeline(cfg.TimeSignature(), bars)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot create project %s: %w", name, err)
	}
	return tl, 0, nil
}
