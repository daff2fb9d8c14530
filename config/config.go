package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-zctrl/ccmode"
	"go-zctrl/param"
)

// ParamConfig defines one engine parameter. Labels without Ticks spread
// evenly over Min..Max; Labels with Ticks pair up one to one.
type ParamConfig struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Mid         *float64  `json:"mid,omitempty"`
	Real        bool      `json:"real,omitempty"`
	Toggle      bool      `json:"toggle,omitempty"`
	Logarithmic bool      `json:"logarithmic,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Ticks       []float64 `json:"ticks,omitempty"`
	Default     *float64  `json:"default,omitempty"`
	NudgeFactor float64   `json:"nudgeFactor,omitempty"`
	Momentary   bool      `json:"momentary,omitempty"`
	Readonly    bool      `json:"readonly,omitempty"`

	// engine address
	MIDIChan *int   `json:"midiChan,omitempty"` // 1-16
	MIDICC   *int   `json:"midiCC,omitempty"`
	OSCPath  string `json:"oscPath,omitempty"`
}

// BindingConfig routes a surface CC to a parameter. An empty Device
// matches every surface.
type BindingConfig struct {
	Device  string      `json:"device,omitempty"`
	Channel int         `json:"channel"` // 1-16
	CC      int         `json:"cc"`
	Symbol  string      `json:"symbol"`
	Mode    ccmode.Mode `json:"mode,omitempty"`
	Echo    bool        `json:"echo,omitempty"`
}

// OSCConfig is the OSC engine target. Listen, when set, is the local
// address the engine echoes parameter changes back to.
type OSCConfig struct {
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Listen string `json:"listen,omitempty"`
}

// EngineConfig defines where accepted changes are delivered, in order:
// OSC first, then MIDI out.
type EngineConfig struct {
	OSC     OSCConfig `json:"osc,omitempty"`
	MIDIOut string    `json:"midiOut,omitempty"`
}

// InputConfig filters which MIDI inputs are used as control surfaces
type InputConfig struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Params   []ParamConfig   `json:"params,omitempty"`
	Bindings []BindingConfig `json:"bindings,omitempty"`
	Engine   EngineConfig    `json:"engine,omitempty"`
	Inputs   InputConfig     `json:"inputs,omitempty"`
	Debug    bool            `json:"debug,omitempty"`
	Palette  string          `json:"palette,omitempty"` // GIMP .gpl file for the TUI
}

func intp(v int) *int { return &v }

// DefaultConfig returns a small subtractive voice bound to common CCs
func DefaultConfig() *Config {
	return &Config{
		Params: []ParamConfig{
			{
				Symbol: "cutoff", Name: "Cutoff",
				Min: param.F(20), Max: param.F(20000), Real: true, Logarithmic: true,
				Default: param.F(2000), MIDIChan: intp(1), MIDICC: intp(74), OSCPath: "/filter/cutoff",
			},
			{
				Symbol: "resonance", Name: "Resonance",
				Max: param.F(1), Real: true, Default: param.F(0.2),
				MIDIChan: intp(1), MIDICC: intp(71), OSCPath: "/filter/resonance",
			},
			{
				Symbol: "wave", Name: "Waveform",
				Labels:   []string{"sine", "triangle", "saw", "square"},
				MIDIChan: intp(1), MIDICC: intp(70), OSCPath: "/osc/wave",
			},
			{
				Symbol: "octave", Name: "Octave",
				Labels:   []string{"-2", "-1", "0", "+1", "+2"},
				Ticks:    []float64{-2, -1, 0, 1, 2},
				Default:  param.F(0),
				MIDIChan: intp(1), MIDICC: intp(72),
			},
			{
				Symbol: "chorus", Name: "Chorus",
				Labels:   []string{"off", "on"},
				MIDIChan: intp(1), MIDICC: intp(93), OSCPath: "/fx/chorus",
			},
		},
		Bindings: []BindingConfig{
			{Channel: 1, CC: 74, Symbol: "cutoff", Echo: true},
			{Channel: 1, CC: 71, Symbol: "resonance", Echo: true},
			{Channel: 1, CC: 70, Symbol: "wave"},
			{Channel: 1, CC: 72, Symbol: "octave"},
			{Channel: 1, CC: 93, Symbol: "chorus"},
		},
		Engine: EngineConfig{
			OSC: OSCConfig{Host: "127.0.0.1", Port: 0},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-zctrl"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file, or returns defaults if it does not exist
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks cross references. Range errors surface from Build.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Params))
	for _, p := range c.Params {
		if p.Symbol == "" {
			return fmt.Errorf("parameter without symbol")
		}
		if seen[p.Symbol] {
			return fmt.Errorf("duplicate parameter %q", p.Symbol)
		}
		seen[p.Symbol] = true
	}
	for _, b := range c.Bindings {
		if c.FindParam(b.Symbol) == nil {
			return fmt.Errorf("binding cc%d: unknown parameter %q", b.CC, b.Symbol)
		}
		if b.Channel < 1 || b.Channel > 16 {
			return fmt.Errorf("binding %s: channel %d out of 1-16", b.Symbol, b.Channel)
		}
		if b.CC < 0 || b.CC > 127 {
			return fmt.Errorf("binding %s: cc %d out of 0-127", b.Symbol, b.CC)
		}
	}
	return nil
}

// FindParam finds a parameter config by symbol
func (c *Config) FindParam(symbol string) *ParamConfig {
	for i := range c.Params {
		if c.Params[i].Symbol == symbol {
			return &c.Params[i]
		}
	}
	return nil
}

// AddBinding adds or updates the binding for a source
func (c *Config) AddBinding(b BindingConfig) {
	for i := range c.Bindings {
		x := c.Bindings[i]
		if x.Device == b.Device && x.Channel == b.Channel && x.CC == b.CC && x.Symbol == b.Symbol {
			c.Bindings[i] = b
			return
		}
	}
	c.Bindings = append(c.Bindings, b)
}

// BindingsFor returns the bindings of one parameter
func (c *Config) BindingsFor(symbol string) []BindingConfig {
	var result []BindingConfig
	for _, b := range c.Bindings {
		if b.Symbol == symbol {
			result = append(result, b)
		}
	}
	return result
}

// Spec converts the parameter's range fields into a RangeSpec
func (p ParamConfig) Spec() param.RangeSpec {
	kind := param.Integer
	if p.Real {
		kind = param.Real
	}
	switch {
	case len(p.Ticks) > 0:
		return param.LabeledTicks{Labels: p.Labels, Ticks: p.Ticks, Mid: p.Mid, Kind: kind}
	case len(p.Labels) > 0:
		return param.Labels{Labels: p.Labels, Min: p.Min, Max: p.Max, Mid: p.Mid, Kind: kind}
	}
	return param.Bounds{Min: p.Min, Max: p.Max, Mid: p.Mid, Kind: kind, Toggle: p.Toggle, Logarithmic: p.Logarithmic}
}

// Build creates the controller for this parameter
func (p ParamConfig) Build() (*param.Controller, error) {
	r, err := param.NewRange(p.Spec())
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Symbol, err)
	}

	opts := []param.Option{
		param.WithName(p.Name),
		param.WithMomentary(p.Momentary),
		param.WithReadonly(p.Readonly),
	}
	if p.Default != nil {
		opts = append(opts, param.WithDefault(*p.Default))
	}
	if p.NudgeFactor != 0 {
		opts = append(opts, param.WithNudgeFactor(p.NudgeFactor))
	}
	if p.MIDIChan != nil && p.MIDICC != nil {
		opts = append(opts, param.WithMIDI(*p.MIDIChan-1, *p.MIDICC))
	}
	if p.OSCPath != "" {
		opts = append(opts, param.WithOSCPath(p.OSCPath))
	}

	c, err := param.NewController(p.Symbol, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Symbol, err)
	}
	return c, nil
}
