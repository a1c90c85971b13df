package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go-groove/project"
	"go-groove/sequencer"
	"go-groove/widgets"
)

var notateYAML bool

func init() {
	notateCmd.Flags().BoolVar(&notateYAML, "yaml", false, "print the tokens as YAML")
	rootCmd.AddCommand(notateCmd)
}

// barNotation is one bar of the YAML output.
type barNotation struct {
	Bar  int               `yaml:"bar"`
	Hand []sequencer.Token `yaml:"hand"`
	Foot []sequencer.Token `yaml:"foot"`
}

var notateCmd = &cobra.Command{
	Use:   "notate <file>",
	Short: "Prints the notes and rests of a pattern",
	Long: `Prints the notes and rests of every bar for the hand and foot voices.
Lengths are in 32nd-note steps; n is a note, r a rest and s a spacer
continuing a note from earlier in the bar. N marks a note that starts
together with a same-length note in the other voice.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tl, _, norm, err := project.ReadFile(args[0])
		if err != nil {
			return err
		}
		reportNormalization(args[0], norm)

		bars := make([]barNotation, tl.TotalBars())
		for i := range bars {
			bars[i] = barNotation{
				Bar:  i + 1,
				Hand: tl.Decompose(sequencer.Hand, i),
				Foot: tl.Decompose(sequencer.Foot, i),
			}
		}

		if notateYAML {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(bars)
		}

		fmt.Printf("%s, %d steps per bar\n", tl.TimeSignature(), tl.StepsPerBar())
		for _, b := range bars {
			fmt.Printf("bar %d\n", b.Bar)
			fmt.Printf("  hand  %s\n", widgets.SummarizeTokens(b.Hand))
			fmt.Printf("  foot  %s\n", widgets.SummarizeTokens(b.Foot))
		}
		return nil
	},
}
