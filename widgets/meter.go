package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MeterStyle holds the glyphs and colors of a value meter
type MeterStyle struct {
	Full, Empty, Mark rune
	Color             func(norm float64) lipgloss.Color
	EmptyColor        lipgloss.Color
}

// RenderMeter renders norm (0-1) as a bar of width cells. mark, when in
// 0-1, draws the default position on an empty cell.
func RenderMeter(norm, mark float64, width int, st MeterStyle) string {
	if width <= 0 {
		return ""
	}
	norm = math.Max(0, math.Min(1, norm))
	filled := int(math.Round(norm * float64(width)))
	markAt := -1
	if mark >= 0 && mark <= 1 {
		markAt = int(math.Round(mark * float64(width-1)))
	}

	empty := lipgloss.NewStyle().Foreground(st.EmptyColor)
	var out strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			cell := lipgloss.NewStyle().Foreground(st.Color(float64(i) / float64(width)))
			out.WriteString(cell.Render(string(st.Full)))
		case i == markAt:
			out.WriteString(empty.Render(string(st.Mark)))
		default:
			out.WriteString(empty.Render(string(st.Empty)))
		}
	}
	return out.String()
}

// Normalize maps v within [min, max] to 0-1; constant ranges map to 0
func Normalize(v, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (v - min) / (max - min)
}

// RenderStreak renders detection progress as n of total dots
func RenderStreak(n, total int) string {
	if n > total {
		n = total
	}
	return strings.Repeat("•", n) + strings.Repeat("·", total-n)
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
