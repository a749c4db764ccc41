package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-perform/config"
	"go-perform/control"
	"go-perform/theme"
	"go-perform/transport"
	"go-perform/widgets"
)

// stripCols is the width of the trigger timeline per pattern row.
const stripCols = 32

// slotCount is the number of pattern slots on screen, matching keys 1-8.
const slotCount = 8

type Model struct {
	Engine   *transport.Engine
	Dispatch *control.Dispatcher
	Theme    *theme.Theme
	Config   *config.Config

	updates  chan transport.Notification
	quitting bool
	showHelp bool
	status   string
}

type UpdateMsg transport.Notification

type tickMsg time.Time

func NewModel(engine *transport.Engine, dispatch *control.Dispatcher, th *theme.Theme, cfg *config.Config) Model {
	m := Model{
		Engine:   engine,
		Dispatch: dispatch,
		Theme:    th,
		Config:   cfg,
		updates:  make(chan transport.Notification, 16),
	}
	engine.Subscribe(func(n transport.Notification) {
		select {
		case m.updates <- n:
		default: // UI lags, drop; the refresh tick catches up
		}
	})
	return m
}

func listenForUpdates(updates chan transport.Notification) tea.Cmd {
	return func() tea.Msg {
		return UpdateMsg(<-updates)
	}
}

// refresh drives the playhead redraw; the output worker never notifies
// per-tick.
func refresh() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForUpdates(m.updates),
		refresh(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit

		case "?":
			m.showHelp = !m.showHelp
			return m, nil

		case "1", "2", "3", "4", "5", "6", "7", "8":
			idx := int(key[0] - '1')
			if p := m.Engine.PlaySet().Find(idx); p != nil {
				p.ToggleArmed()
			}

		case "!", "@", "#", "$", "%", "^", "&", "*":
			idx := strings.IndexByte("!@#$%^&*", key[0])
			if p := m.Engine.PlaySet().Find(idx); p != nil {
				p.ToggleQueued(m.Engine.Tick())
			}

		default:
			if !m.Dispatch.HandleKey(key) {
				m.status = fmt.Sprintf("unbound key %q", key)
			}
		}

	case UpdateMsg:
		return m, listenForUpdates(m.updates)

	case tickMsg:
		return m, refresh()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.helpView()
	}

	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.headerLine())
	out.WriteString("\n\n")

	for i := 0; i < slotCount; i++ {
		out.WriteString(m.patternLine(i))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("space:play  .:pause  esc:stop  1-8:mute  shift+1-8:queue  r:rec  s:song  l:loop  +/-:tempo  u/U:undo  ?:help  q:quit"))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}

	return out.String()
}

// helpView replaces the grid while open: key bindings grouped by concern,
// then the slot-symbol legend.
func (m Model) helpView() string {
	sections := []widgets.KeySection{
		{Title: "Transport", Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "start / stop playback"},
			{Key: ".", Desc: "pause, keeping the position"},
			{Key: "esc", Desc: "stop and rewind"},
			{Key: "+/-", Desc: "tempo up / down"},
			{Key: "s", Desc: "toggle song mode"},
			{Key: "l", Desc: "toggle looping"},
		}},
		{Title: "Patterns", Keys: []widgets.KeyBinding{
			{Key: "1-8", Desc: "arm / mute slot"},
			{Key: "shift+1-8", Desc: "queue the flip at the next boundary"},
			{Key: "r", Desc: "toggle recording on the target pattern"},
			{Key: "u / U", Desc: "undo / redo trigger edits"},
		}},
		{Title: "Other", Keys: []widgets.KeyBinding{
			{Key: "?", Desc: "close this help"},
			{Key: "q", Desc: "quit"},
		}},
	}

	sym := m.Theme.Symbols
	pal := m.Theme.Palette
	legend := []string{
		"Slot symbols",
		widgets.RenderLegendItem(sym.SlotArmed, pal.Lookup(theme.RoleActive), "armed", "plays while the transport runs"),
		widgets.RenderLegendItem(sym.SlotMuted, pal.Lookup(theme.RoleMuted), "muted", "present but silent"),
		widgets.RenderLegendItem(sym.SlotQueued, pal.Lookup(theme.RoleAccent), "queued", "flips at the next pattern boundary"),
		widgets.RenderLegendItem(sym.SlotOneShot, pal.Lookup(theme.RoleAccent), "one-shot", "plays a single pass, then mutes"),
		widgets.RenderLegendItem(sym.SlotRecord, pal.Lookup(theme.RoleWarning), "recording", "captures incoming input"),
		widgets.RenderLegendItem(sym.SlotEmpty, pal.Lookup(theme.RoleMuted), "empty", "no pattern in the slot"),
	}

	return "\n" + widgets.RenderKeyHelp(sections) + "\n\n" + strings.Join(legend, "\n") + "\n"
}

func (m Model) headerLine() string {
	accent := lipgloss.NewStyle().Foreground(m.Theme.Accent())

	state := lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render("STOP")
	switch {
	case m.Engine.Running():
		state = lipgloss.NewStyle().Foreground(m.Theme.Success()).Render("PLAY")
	case m.Engine.PatternPlaying():
		state = accent.Render("WAIT") // playing flag set, worker not advancing yet
	}

	source := "int"
	if m.Engine.UseMIDIClock() {
		source = "midi"
	}

	mode := "live"
	if m.Engine.SongMode() {
		mode = "song"
	}

	loop := ""
	if m.Engine.Looping() {
		l, r := m.Engine.LoopTicks()
		loop = fmt.Sprintf("  loop %d-%d", l, r)
	}

	line := accent.Render("go-perform") + "  " + state + "  " +
		accent.Render(fmt.Sprintf("%s  %6.1fbpm  clk:%s  %s%s",
			m.position(), m.Engine.BPM(), source, mode, loop))
	if n := m.Engine.Overruns(); n > 0 {
		warn := lipgloss.NewStyle().Foreground(m.Theme.Warning())
		line += warn.Render(fmt.Sprintf("  %d overruns", n))
	}
	return line
}

// position renders the transport tick as bar:beat:tick.
func (m Model) position() string {
	tick := m.Engine.Tick()
	ppqn := m.Engine.PPQN()
	bar := transport.BarLength(ppqn, m.Config.Transport.BeatsPerBar, m.Config.Transport.BeatWidth)
	beat := bar / int64(m.Config.Transport.BeatsPerBar)
	return fmt.Sprintf("%03d:%d:%03d", tick/bar+1, (tick%bar)/beat+1, tick%beat)
}

func (m Model) patternLine(id int) string {
	p := m.Engine.PlaySet().Find(id)
	sym := m.Theme.Symbols
	if p == nil {
		cell := widgets.RenderCell(sym.SlotEmpty, m.Theme.Palette.Lookup(theme.RoleMuted))
		return fmt.Sprintf(" %d %s", id+1, cell)
	}

	slot := sym.SlotMuted
	switch {
	case p.Recording():
		slot = sym.SlotRecord
	case p.OneShot():
		slot = sym.SlotOneShot
	case p.Queued():
		slot = sym.SlotQueued
	case p.Armed():
		slot = sym.SlotArmed
	}

	color := m.Theme.Palette.Lookup(theme.RoleMuted)
	if p.Armed() || p.Recording() {
		color = m.Theme.Palette.Lookup(theme.RoleActive)
	}

	nameStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	if p.Recording() {
		nameStyle = lipgloss.NewStyle().Foreground(m.Theme.Active())
	}

	strip := m.triggerStrip(p.ID())
	return fmt.Sprintf(" %d %s %s %s",
		p.ID()+1, widgets.RenderCell(slot, color), nameStyle.Width(12).Render(p.Name()), strip)
}

// triggerStrip samples the pattern's song-mode triggers across the loop
// span into a fixed-width timeline, with the playhead column marked.
func (m Model) triggerStrip(id int) string {
	p := m.Engine.PlaySet().Find(id)
	if p == nil {
		return ""
	}
	_, right := m.Engine.LoopTicks()
	if right <= 0 {
		return ""
	}
	span := right / stripCols
	if span <= 0 {
		span = 1
	}
	states := make([]bool, stripCols)
	for i := range states {
		states[i] = p.TriggerState(int64(i) * span)
	}
	mark := -1
	if m.Engine.Running() {
		if col := m.Engine.Tick() / span; col >= 0 && col < stripCols {
			mark = int(col)
		}
	}
	sym := m.Theme.Symbols
	return widgets.RenderStrip(states, sym.TriggerOn, sym.TriggerOff, sym.PlayheadMark, mark)
}
