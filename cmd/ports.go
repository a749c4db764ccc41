package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI ports",
	Run:   runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) {
	// Port enumeration can hang when the OS MIDI service is wedged, so
	// run it off to the side with a deadline.
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		fmt.Println("=== MIDI Input Ports ===")
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("timeout enumerating ports; the system MIDI service may be hung")
	}
}
