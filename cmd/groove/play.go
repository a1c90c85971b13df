package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"go-groove/config"
	"go-groove/project"
	"go-groove/transport"
)

var (
	playBPM       float64
	playCountIn   bool
	playMetronome bool
	playFor       time.Duration
)

func init() {
	playCmd.Flags().Float64Var(&playBPM, "bpm", 0, "tempo (default from the file, then config)")
	playCmd.Flags().BoolVar(&playCountIn, "count-in", false, "click one bar before the pattern")
	playCmd.Flags().BoolVar(&playMetronome, "metronome", false, "click along with the pattern")
	playCmd.Flags().DurationVar(&playFor, "for", 0, "stop after this long (default: until interrupted)")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Plays a saved pattern",
	Long:  `Plays a saved pattern in a loop until interrupted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tl, f, norm, err := project.ReadFile(args[0])
		if err != nil {
			return err
		}
		reportNormalization(args[0], norm)

		bpm := f.BPM
		if playBPM > 0 {
			bpm = playBPM
		}
		sess, err := newSession(cfg, tl, bpm)
		if err != nil {
			return err
		}
		defer sess.Close()

		err = sess.UpdateSettings(func(s *transport.Settings) {
			if cmd.Flags().Changed("count-in") {
				s.CountIn = playCountIn
			}
			if cmd.Flags().Changed("metronome") {
				s.Metronome = playMetronome
			}
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if playFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, playFor)
			defer cancel()
		}

		if err := sess.Play(); err != nil {
			return err
		}
		s := sess.Settings()
		fmt.Printf("playing %s  %s  %.0f bpm  %d bars  (ctrl+c to stop)\n",
			args[0], s.TimeSignature, s.BPM, tl.TotalBars())
		<-ctx.Done()
		sess.Stop()
		return nil
	},
}
