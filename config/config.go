package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"go-metronome/sequencer"
)

// EnvPrefix prefixes every environment override, e.g. METRONOME_TEMPO
const EnvPrefix = "METRONOME_"

// TransportConfig holds the persisted engine settings
type TransportConfig struct {
	Tempo          int  `json:"tempo" env:"TEMPO"`
	Numerator      int  `json:"numerator" env:"NUMERATOR"`
	Denominator    int  `json:"denominator" env:"DENOMINATOR"`
	Channel        int  `json:"channel" env:"CHANNEL"`
	WeakNote       int  `json:"weakNote" env:"WEAK_NOTE"`
	StrongNote     int  `json:"strongNote" env:"STRONG_NOTE"`
	WeakVelocity   int  `json:"weakVelocity" env:"WEAK_VELOCITY"`
	StrongVelocity int  `json:"strongVelocity" env:"STRONG_VELOCITY"`
	Volume         int  `json:"volume" env:"VOLUME"`
	Balance        int  `json:"balance" env:"BALANCE"`
	Resolution     int  `json:"resolution" env:"RESOLUTION"`
	Duration       int  `json:"duration" env:"DURATION"`
	SendNoteOff    bool `json:"sendNoteOff" env:"SEND_NOTE_OFF"`
}

// ConnectionConfig holds the MIDI endpoint addresses
type ConnectionConfig struct {
	AutoConnect bool   `json:"autoConnect" env:"AUTOCONNECT"`
	Output      string `json:"outputConn,omitempty" env:"OUTPUT"`
	Input       string `json:"inputConn,omitempty" env:"INPUT"`
}

// InstrumentConfig names the drum kit by instrument, bank and program
type InstrumentConfig struct {
	Instrument string `json:"instrument,omitempty" env:"INSTRUMENT"`
	Bank       string `json:"bank,omitempty" env:"BANK"`
	Program    string `json:"program,omitempty" env:"PROGRAM"`
}

// PatternConfig stores the pattern database location and selection
type PatternConfig struct {
	Database    string `json:"database,omitempty" env:"PATTERN_DB"`
	Selected    string `json:"selected,omitempty" env:"PATTERN"`
	PatternMode bool   `json:"patternMode,omitempty" env:"PATTERN_MODE"`
}

// RemoteConfig holds the listen addresses of the remote control servers
type RemoteConfig struct {
	HTTPAddr string `json:"httpAddr,omitempty" env:"HTTP_ADDR"`
	OSCAddr  string `json:"oscAddr,omitempty" env:"OSC_ADDR"`
}

// Config is the main configuration structure
type Config struct {
	Transport  TransportConfig  `json:"transport"`
	Connection ConnectionConfig `json:"connection"`
	Instrument InstrumentConfig `json:"instrument"`
	Patterns   PatternConfig    `json:"patterns"`
	Remote     RemoteConfig     `json:"remote"`
}

// DefaultConfig returns a config with the engine defaults
func DefaultConfig() *Config {
	d := sequencer.DefaultConfig()
	return &Config{
		Transport: TransportConfig{
			Tempo:          d.Tempo,
			Numerator:      d.Numerator,
			Denominator:    d.Denominator,
			Channel:        d.Channel,
			WeakNote:       d.WeakNote,
			StrongNote:     d.StrongNote,
			WeakVelocity:   d.WeakVelocity,
			StrongVelocity: d.StrongVelocity,
			Volume:         d.Volume,
			Balance:        d.Balance,
			Resolution:     d.Resolution,
			Duration:       d.NoteDuration,
			SendNoteOff:    d.SendNoteOff,
		},
		Connection: ConnectionConfig{AutoConnect: true},
		Instrument: InstrumentConfig{Instrument: sequencer.DefaultInstrument},
		Remote: RemoteConfig{
			HTTPAddr: "127.0.0.1:8765",
			OSCAddr:  "127.0.0.1:8766",
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-metronome"), nil
}

// Path returns the full path to config.json
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from its default location
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := DefaultConfig()
		return cfg, applyEnv(cfg)
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, or defaults when it does not exist,
// then applies environment overrides
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating the directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DatabasePath is the pattern database, by default next to config.json
func (c *Config) DatabasePath() (string, error) {
	if c.Patterns.Database != "" {
		return c.Patterns.Database, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "patterns.db"), nil
}

// Engine converts the persisted settings into an engine configuration.
// Out-of-range values are clamped; the patch is resolved through idx.
func (c *Config) Engine(idx *sequencer.InstrumentIndex) sequencer.Config {
	t := c.Transport
	cfg := sequencer.DefaultConfig()
	cfg.Tempo = t.Tempo
	cfg.Numerator = t.Numerator
	cfg.Denominator = t.Denominator
	cfg.Channel = t.Channel
	cfg.WeakNote = t.WeakNote
	cfg.StrongNote = t.StrongNote
	cfg.WeakVelocity = t.WeakVelocity
	cfg.StrongVelocity = t.StrongVelocity
	cfg.Volume = t.Volume
	cfg.Balance = t.Balance
	cfg.Resolution = t.Resolution
	cfg.NoteDuration = t.Duration
	cfg.SendNoteOff = t.SendNoteOff
	cfg.AutoConnect = c.Connection.AutoConnect
	cfg.OutputConn = c.Connection.Output
	cfg.InputConn = c.Connection.Input

	if idx != nil {
		if p, ok := idx.Resolve(c.Instrument.Instrument, c.Instrument.Bank, c.Instrument.Program); ok {
			cfg.Bank, cfg.Program, cfg.BankSelMethod = p.Bank, p.Program, p.Method
		}
	}
	return cfg.Normalize()
}

// Capture copies the engine's current settings back for saving
func (c *Config) Capture(e *sequencer.Engine) {
	cfg := e.Config()
	c.Transport = TransportConfig{
		Tempo:          cfg.Tempo,
		Numerator:      cfg.Numerator,
		Denominator:    cfg.Denominator,
		Channel:        cfg.Channel,
		WeakNote:       cfg.WeakNote,
		StrongNote:     cfg.StrongNote,
		WeakVelocity:   cfg.WeakVelocity,
		StrongVelocity: cfg.StrongVelocity,
		Volume:         cfg.Volume,
		Balance:        cfg.Balance,
		Resolution:     cfg.Resolution,
		Duration:       cfg.NoteDuration,
		SendNoteOff:    cfg.SendNoteOff,
	}
	c.Connection = ConnectionConfig{
		AutoConnect: cfg.AutoConnect,
		Output:      cfg.OutputConn,
		Input:       cfg.InputConn,
	}
	st := e.State()
	c.Patterns.PatternMode = st.PatternMode
	if st.Pattern != "" {
		c.Patterns.Selected = st.Pattern
	}
}
