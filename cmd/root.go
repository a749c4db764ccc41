package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-perform/debug"
)

var debugLog bool

var rootCmd = &cobra.Command{
	Use:   "go-perform",
	Short: "A live MIDI pattern sequencer",
	Long: `go-perform is a terminal MIDI pattern sequencer and transport engine.

It plays looped patterns against an internal clock, slaves to incoming
MIDI clock (Start/Stop/Continue/Song Position), and records incoming
notes into armed patterns.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugLog {
			if err := debug.Enable(""); err != nil {
				fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log under ~/.config/go-perform")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer debug.Disable()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
