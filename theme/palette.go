package theme

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

type RGB [3]uint8

// Palette is an ordered list of color stops for the 0-1 value scale.
type Palette struct {
	Name   string
	Colors []RGB
}

var plasma = []RGB{
	{13, 8, 135},
	{84, 2, 163},
	{139, 10, 165},
	{185, 50, 137},
	{219, 92, 104},
	{244, 136, 73},
	{254, 188, 43},
	{240, 249, 33},
}

// Plasma is the built-in palette, used when no GPL file is configured
func Plasma() *Palette {
	return &Palette{Name: "plasma", Colors: append([]RGB(nil), plasma...)}
}

// LoadGPL reads a GIMP palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// ParseGPL reads GIMP palette text: a "GIMP Palette" header, optional
// Name and Columns lines, # comments, then one "R G B [label]" stop per
// line.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "GIMP"), strings.HasPrefix(line, "Columns:"):
			continue
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(line[len("Name:"):])
			continue
		}

		var c [3]int
		if _, err := fmt.Sscan(line, &c[0], &c[1], &c[2]); err != nil {
			return nil, fmt.Errorf("line %d: want R G B, got %q", n, line)
		}
		var stop RGB
		for i, v := range c {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("line %d: channel %d out of range", n, v)
			}
			stop[i] = uint8(v)
		}
		p.Colors = append(p.Colors, stop)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors")
	}
	return p, nil
}

// Lookup blends the two stops around norm, clamped to the ends.
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	if last == 0 {
		return p.Colors[0]
	}
	pos := math.Max(0, math.Min(1, norm)) * float64(last)
	i := min(int(pos), last-1)

	t := pos - float64(i)
	a, b := p.Colors[i], p.Colors[i+1]
	var out RGB
	for ch := range out {
		out[ch] = uint8(math.Round(float64(a[ch]) + (float64(b[ch])-float64(a[ch]))*t))
	}
	return out
}
