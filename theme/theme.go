package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Pattern grid states
	SlotEmpty    rune // · no pattern in slot
	SlotMuted    rune // □ pattern present, muted
	SlotArmed    rune // ■ pattern armed
	SlotQueued   rune // ◇ arm/mute flip pending
	SlotOneShot  rune // ◆ single pass pending
	SlotRecord   rune // ● recording into this pattern
	TriggerOn    rune // ▮ song-mode trigger segment
	TriggerOff   rune // ▯ gap between triggers
	PlayheadMark rune // ▶
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			SlotEmpty:    '·',
			SlotMuted:    '□',
			SlotArmed:    '■',
			SlotQueued:   '◇',
			SlotOneShot:  '◆',
			SlotRecord:   '●',
			TriggerOn:    '▮',
			TriggerOff:   '▯',
			PlayheadMark: '▶',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Style helpers

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
