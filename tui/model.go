package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-zctrl/ccmode"
	"go-zctrl/dispatch"
	"go-zctrl/midi"
	"go-zctrl/rig"
	"go-zctrl/theme"
	"go-zctrl/widgets"
)

const meterWidth = 24

type Model struct {
	Manager   *rig.Manager
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme

	cursor   int
	showHelp bool
	status   string
	quitting bool
	surfaces []string
}

type UpdateMsg struct{}

func NewModel(manager *rig.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
	}
}

func ListenForUpdates(manager *rig.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Manager)
}

// selected returns the symbol under the cursor
func (m Model) selected() string {
	params := m.Manager.Params()
	if len(params) == 0 {
		return ""
	}
	return params[clamp(m.cursor, 0, len(params)-1)].Symbol
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		if m.DeviceMgr != nil {
			var ids []string
			for id := range m.DeviceMgr.Controllers() {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			m.surfaces = ids
		}
		return m, ListenForUpdates(m.Manager)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	sym := m.selected()
	report := func(info rig.ParamInfo, err error) {
		if err != nil {
			m.status = err.Error()
			return
		}
		m.status = fmt.Sprintf("%s = %s", info.Symbol, info.Label)
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = min(len(m.Manager.Params())-1, m.cursor+1)

	case "left", "h":
		report(m.Manager.Nudge(sym, -1, false))
	case "right", "l":
		report(m.Manager.Nudge(sym, 1, false))
	case "[":
		report(m.Manager.Nudge(sym, -1, true))
	case "]":
		report(m.Manager.Nudge(sym, 1, true))
	case " ", "space":
		report(m.Manager.Toggle(sym))
	case "r":
		report(m.Manager.Reset(sym))

	case "m":
		n, err := m.Manager.ResetModes(sym)
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("%s: detecting on %d bindings", sym, n)
		}

	case "n", "N":
		if m.Manager.Registry().Learning() != nil {
			m.Manager.Registry().CancelLearn()
			m.status = "learn cancelled"
			break
		}
		if err := m.Manager.Learn(sym, key == "n"); err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("move a control to bind %s", sym)
		}

	case "s":
		info, err := m.Manager.SaveSnapshot("")
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = "saved " + info.Filename
		}
	case "o":
		n, err := m.Manager.LoadSnapshot("")
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("restored %d parameters", n)
		}

	case "u":
		n, err := m.Manager.Unbind(sym)
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("%s: removed %d bindings", sym, n)
		}
	case "x":
		info, err := m.Manager.Info(sym)
		if err == nil {
			info, err = m.Manager.SetReadonly(sym, !info.Readonly)
		}
		switch {
		case err != nil:
			m.status = err.Error()
		case info.Readonly:
			m.status = sym + " locked"
		default:
			m.status = sym + " unlocked"
		}

	case "w":
		if err := m.Manager.SaveConfig(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "bindings written to config"
		}

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(th.FG())
	cursorStyle := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	statusStyle := lipgloss.NewStyle().
		Foreground(th.FG()).
		Background(th.Muted()).
		Padding(0, 1)

	surfaces := "no surfaces"
	if len(m.surfaces) > 0 {
		surfaces = strings.Join(m.surfaces, ", ")
	}
	header := headerStyle.Render(fmt.Sprintf("go-zctrl  %s", surfaces))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.paramsView(fgStyle, dimStyle, cursorStyle))
	out.WriteString("\n")
	out.WriteString(m.bindingsView(dimStyle))

	if m.showHelp {
		out.WriteString("\n\n")
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpSections)))
	}

	// Help line
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("j/k:select  h/l:nudge  [/]:fine  space:toggle  r:reset  m:detect  n:learn  ?:help  q:quit"))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	return out.String()
}

func (m Model) paramsView(fg, dim, cur lipgloss.Style) string {
	th := m.Theme
	learning := m.Manager.Registry().Learning()
	meter := widgets.MeterStyle{
		Full:       th.Symbols.MeterFull,
		Empty:      th.Symbols.MeterEmpty,
		Mark:       th.Symbols.MeterMark,
		Color:      th.Color,
		EmptyColor: th.Muted(),
	}

	var lines []string
	for i, p := range m.Manager.Params() {
		marker := " "
		if i == m.cursor {
			marker = cur.Render(string(th.Symbols.Cursor))
		}
		if learning != nil && learning.Symbol() == p.Symbol {
			marker = cur.Render(string(th.Symbols.Learn))
		}

		var gauge string
		if p.Toggle {
			glyph := th.Symbols.Off
			if p.Value == p.Max {
				glyph = th.Symbols.On
			}
			gauge = fg.Render(string(glyph)) + strings.Repeat(" ", meterWidth-1)
		} else {
			norm := float64(p.MIDI) / 127
			mark := float64(-1)
			if !p.Log {
				mark = widgets.Normalize(p.Default, p.Min, p.Max)
			}
			gauge = widgets.RenderMeter(norm, mark, meterWidth, meter)
		}

		lock := ""
		if p.Readonly {
			lock = dim.Render(" locked")
		}
		lines = append(lines, fmt.Sprintf("%s %-12s %s %s %s%s",
			marker,
			fg.Render(truncate(p.Name, 12)),
			gauge,
			fg.Render(fmt.Sprintf("%-10s", truncate(p.Label, 10))),
			dim.Render(fmt.Sprintf("%3d", p.MIDI)),
			lock,
		))
	}
	return strings.Join(lines, "\n")
}

func (m Model) bindingsView(dim lipgloss.Style) string {
	var lines []string
	for _, b := range m.Manager.Registry().Bindings() {
		lines = append(lines, m.bindingLine(b, dim))
	}
	if len(lines) == 0 {
		return dim.Render("no bindings")
	}
	return strings.Join(lines, "\n")
}

func (m Model) bindingLine(b dispatch.BindingInfo, dim lipgloss.Style) string {
	glyph, color := m.Theme.ModeBadge(b.Mode)
	badge := lipgloss.NewStyle().Foreground(color).Render(string(glyph))

	detail := b.Mode.String()
	if b.Mode == ccmode.Unknown && b.Candidate != ccmode.Unknown {
		detail = fmt.Sprintf("%s? %s", b.Candidate, widgets.RenderStreak(b.Streak, ccmode.DetectSteps))
	}
	return fmt.Sprintf("  %s %s", badge, dim.Render(fmt.Sprintf("%-22s → %-10s %s", b.Key, b.Symbol, detail)))
}

var helpSections = []widgets.KeySection{
	{Title: "Edit", Keys: []widgets.KeyBinding{
		{Key: "h/l", Desc: "nudge coarse"},
		{Key: "[/]", Desc: "nudge fine"},
		{Key: "space", Desc: "toggle"},
		{Key: "r", Desc: "reset to default"},
	}},
	{Title: "Bindings", Keys: []widgets.KeyBinding{
		{Key: "m", Desc: "re-detect CC mode"},
		{Key: "n", Desc: "learn from this surface"},
		{Key: "N", Desc: "learn from any surface"},
		{Key: "u", Desc: "remove bindings"},
		{Key: "x", Desc: "lock / unlock"},
		{Key: "w", Desc: "write bindings to config"},
	}},
	{Title: "Snapshots", Keys: []widgets.KeyBinding{
		{Key: "s", Desc: "save"},
		{Key: "o", Desc: "load latest"},
	}},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
