package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-perform/config"
	"go-perform/control"
	"go-perform/midi"
	"go-perform/pattern"
	"go-perform/theme"
	"go-perform/transport"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	set := pattern.NewPlaySet()
	p := pattern.New(0, 0, 192)
	p.SetName("drums")
	set.Add(p)
	e, err := transport.New(midi.NewNullBus(), set, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(e, control.NewDispatcher(), theme.New(theme.Default()), cfg)
}

func press(m Model, r rune) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return next.(Model)
}

func TestViewShowsTransportAndSlots(t *testing.T) {
	m := newTestModel(t)
	out := m.View()

	for _, want := range []string{"go-perform", "STOP", "120.0bpm", "drums"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	// one pattern in slot 1, the other seven slots render as empty
	if got := strings.Count(out, "·"); got != slotCount-1 {
		t.Errorf("empty slot symbol rendered %d times, want %d:\n%s", got, slotCount-1, out)
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t)
	m = press(m, '?')

	out := m.View()
	for _, want := range []string{"Transport", "shift+1-8", "Slot symbols", "one-shot"} {
		if !strings.Contains(out, want) {
			t.Errorf("help view missing %q:\n%s", want, out)
		}
	}

	m = press(m, '?')
	if strings.Contains(m.View(), "Slot symbols") {
		t.Error("help still shown after second toggle")
	}
}

func TestDigitKeyTogglesArmed(t *testing.T) {
	m := newTestModel(t)
	p := m.Engine.PlaySet().Find(0)
	if p.Armed() {
		t.Fatal("pattern armed before any key")
	}

	m = press(m, '1')
	if !p.Armed() {
		t.Error("key 1 did not arm slot 1")
	}

	m = press(m, '1')
	if p.Armed() {
		t.Error("second press did not mute slot 1")
	}
}
