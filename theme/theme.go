package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-zctrl/ccmode"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Value meters
	MeterFull  rune // █ filled cell
	MeterEmpty rune // ░ empty cell
	MeterMark  rune // │ default position

	// Toggles
	On  rune // ● on
	Off rune // ○ off

	// CC mode badges
	Detecting rune // ? detection running
	Absolute  rune // = absolute
	Relative  rune // ± relative

	Cursor rune // ▶ selected row
	Learn  rune // ◎ armed for MIDI learn
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			MeterFull:  '█',
			MeterEmpty: '░',
			MeterMark:  '│',

			On:  '●',
			Off: '○',

			Detecting: '?',
			Absolute:  '=',
			Relative:  '±',

			Cursor: '▶',
			Learn:  '◎',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

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

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// ModeBadge returns the glyph and color for a binding's CC mode
func (t *Theme) ModeBadge(m ccmode.Mode) (rune, lipgloss.Color) {
	switch {
	case m == ccmode.Absolute:
		return t.Symbols.Absolute, t.FG()
	case m.Relative():
		return t.Symbols.Relative, t.Success()
	}
	return t.Symbols.Detecting, t.Warning()
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
