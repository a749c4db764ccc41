// Package widgets holds small stateless render helpers shared by the TUI.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderCell renders a single colored grid cell.
func RenderCell(sym rune, color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(sym))
}

// RenderStrip renders a horizontal on/off strip (trigger timeline, meter).
// on/off are the two symbols, mark is an optional playhead column (-1 none).
func RenderStrip(states []bool, on, off, playhead rune, mark int) string {
	var out strings.Builder
	for i, s := range states {
		switch {
		case i == mark:
			out.WriteRune(playhead)
		case s:
			out.WriteRune(on)
		default:
			out.WriteRune(off)
		}
	}
	return out.String()
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(sym rune, color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderCell(sym, color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
