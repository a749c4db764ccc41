package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-perform/config"
	"go-perform/control"
	"go-perform/debug"
	"go-perform/midi"
	"go-perform/pattern"
	"go-perform/synth"
	"go-perform/theme"
	"go-perform/transport"
	"go-perform/tui"
)

var (
	outPort     string
	paletteFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sequencer TUI",
	Long: `Start the transport engine and the terminal interface.

Playback goes to the configured MIDI output port. When no port is
available, a built-in synthesizer plays the notes instead.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&outPort, "out", "o", "", "MIDI output port (substring match, overrides config)")
	runCmd.Flags().StringVar(&paletteFile, "palette", "", "GIMP palette file for the UI theme")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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
	dispatch := control.NewDispatcher()
	engine.SetDispatcher(dispatch)
	if p := set.Find(0); p != nil {
		engine.SetRecordTarget(p)
	}

	engine.Launch()
	defer engine.Finish()

	pal := theme.Default()
	if paletteFile != "" {
		loaded, err := theme.LoadGPL(paletteFile)
		if err != nil {
			return fmt.Errorf("load palette: %w", err)
		}
		pal = loaded
	}

	m := tui.NewModel(engine, dispatch, theme.New(pal), cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	engine.SaveTo(cfg)
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "save config: %v\n", err)
	}
	for _, e := range engine.Errors() {
		fmt.Fprintln(os.Stderr, e)
	}
	return nil
}

// openBus opens the configured MIDI output, falling back to the software
// synth when no port can be opened.
func openBus(cfg *config.Config) midi.Bus {
	bus, err := midi.OpenRtBus(cfg.Ports.Output, cfg.Transport.PPQN, cfg.Ports.ClockOut)
	if err == nil {
		fmt.Printf("output: %s\n", bus.OutPort())
		return bus
	}
	debug.Log("main", "no MIDI output (%v), using built-in synth", err)

	syn, serr := synth.Open()
	if serr != nil {
		fmt.Fprintf(os.Stderr, "no MIDI output (%v) and no audio (%v); running silent\n", err, serr)
		return midi.NewNullBus()
	}
	fmt.Println("output: built-in synth")
	return syn
}

// demoPlaySet seeds a few empty patterns so the grid has something to show
// and record into.
func demoPlaySet(bus midi.Bus, cfg *config.Config) *pattern.PlaySet {
	set := pattern.NewPlaySet()
	barLen := transport.BarLength(cfg.Transport.PPQN, cfg.Transport.BeatsPerBar, cfg.Transport.BeatWidth)
	names := []string{"drums", "bass", "keys", "lead"}
	for i, name := range names {
		p := pattern.New(i, uint8(i), barLen)
		p.SetName(name)
		p.SetSender(bus)
		p.AddTrigger(0, barLen*4, 0)
		set.Add(p)
	}
	return set
}
