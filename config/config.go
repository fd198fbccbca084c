package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SynthOutputConfig defines the synth MIDI output
type SynthOutputConfig struct {
	PortName   string `json:"portName,omitempty"`
	Channels   []int  `json:"channels,omitempty"`   // melodic channels handed to the allocator
	NativeMT32 bool   `json:"nativeMT32,omitempty"` // output is a real MT-32
}

// CueInputConfig defines an optional keyboard that starts and stops sounds
type CueInputConfig struct {
	PortName string `json:"portName,omitempty"`
	BaseNote int    `json:"baseNote,omitempty"` // key that cues sound 1
}

// EngineConfig holds the engine's startup properties
type EngineConfig struct {
	TempoFactor    int    `json:"tempoFactor,omitempty"`
	PlayerLimit    int    `json:"playerLimit,omitempty"`
	RecyclePlayers bool   `json:"recyclePlayers,omitempty"`
	Dialect        string `json:"dialect,omitempty"` // "scumm" or "samnmax"
	MasterVolume   int    `json:"masterVolume,omitempty"`
	MusicVolume    int    `json:"musicVolume,omitempty"`
	SfxVolume      int    `json:"sfxVolume,omitempty"`
	TimerPeriodMs  int    `json:"timerPeriodMs,omitempty"`
}

// ServerConfig configures the HTTP control API
type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	SoundDir    string            `json:"soundDir,omitempty"`
	StatePath   string            `json:"statePath,omitempty"`
	PalettePath string            `json:"palettePath,omitempty"` // GIMP .gpl file for the monitor
	Debug       bool              `json:"debug,omitempty"`
	SynthOutput SynthOutputConfig `json:"synthOutput,omitempty"`
	CueInput    CueInputConfig    `json:"cueInput,omitempty"`
	Engine      EngineConfig      `json:"engine,omitempty"`
	Server      ServerConfig      `json:"server,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SoundDir: "sounds",
		SynthOutput: SynthOutputConfig{
			Channels: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13, 14, 15},
		},
		CueInput: CueInputConfig{
			BaseNote: 36,
		},
		Engine: EngineConfig{
			TempoFactor:   100,
			PlayerLimit:   8,
			Dialect:       "scumm",
			MasterVolume:  255,
			MusicVolume:   255,
			SfxVolume:     255,
			TimerPeriodMs: 10,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-imuse"), nil
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
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges the engine would otherwise reject
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.TempoFactor < 50 || e.TempoFactor > 200:
		return fmt.Errorf("engine.tempoFactor %d out of range 50-200", e.TempoFactor)
	case e.PlayerLimit < 1 || e.PlayerLimit > 8:
		return fmt.Errorf("engine.playerLimit %d out of range 1-8", e.PlayerLimit)
	case e.Dialect != "scumm" && e.Dialect != "samnmax":
		return fmt.Errorf("engine.dialect %q must be scumm or samnmax", e.Dialect)
	case e.MasterVolume < 0 || e.MasterVolume > 255:
		return fmt.Errorf("engine.masterVolume %d out of range 0-255", e.MasterVolume)
	case e.MusicVolume < 0 || e.MusicVolume > 255:
		return fmt.Errorf("engine.musicVolume %d out of range 0-255", e.MusicVolume)
	case e.SfxVolume < 0 || e.SfxVolume > 255:
		return fmt.Errorf("engine.sfxVolume %d out of range 0-255", e.SfxVolume)
	case e.TimerPeriodMs < 1:
		return fmt.Errorf("engine.timerPeriodMs must be positive")
	}
	if c.CueInput.BaseNote < 0 || c.CueInput.BaseNote > 127 {
		return fmt.Errorf("cueInput.baseNote %d is not a MIDI note", c.CueInput.BaseNote)
	}
	for _, ch := range c.SynthOutput.Channels {
		if ch < 0 || ch > 15 {
			return fmt.Errorf("synthOutput.channels: %d is not a MIDI channel", ch)
		}
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
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
