package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go-perform/config"
	"go-perform/transport"
)

var playSeconds int

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the transport headless for a fixed duration",
	Long: `Start playback without the TUI, for a fixed number of seconds or
until interrupted. Useful for driving downstream gear with the clock
output, or for testing a port.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVarP(&playSeconds, "seconds", "t", 0, "stop after this many seconds (0 = until interrupt)")
	playCmd.Flags().StringVarP(&outPort, "out", "o", "", "MIDI output port (substring match, overrides config)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if outPort != "" {
		cfg.Ports.Output = outPort
	}

	bus := openBus(cfg)
	defer bus.Close()

	set := demoPlaySet(bus, cfg)
	engine, err := transport.New(bus, set, cfg)
	if err != nil {
		return err
	}

	engine.Launch()
	defer engine.Finish()
	engine.Play()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	if playSeconds > 0 {
		select {
		case <-time.After(time.Duration(playSeconds) * time.Second):
		case <-interrupt:
		}
	} else {
		<-interrupt
	}

	engine.Stop()
	engine.Panic()
	fmt.Printf("stopped at tick %d, %d overruns\n", engine.Tick(), engine.Overruns())
	for _, e := range engine.Errors() {
		fmt.Fprintln(os.Stderr, e)
	}
	return nil
}
