package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TransportConfig holds the settings the engine reads once at launch and
// writes back at shutdown.
type TransportConfig struct {
	PPQN          int     `json:"ppqn"`
	BPM           float64 `json:"bpm"`
	MinBPM        float64 `json:"minBpm"`
	MaxBPM        float64 `json:"maxBpm"`
	BeatsPerBar   int     `json:"beatsPerBar"`
	BeatWidth     int     `json:"beatWidth"`
	UseMIDIClock  bool    `json:"useMidiClock"`
	ResumeNoteOns bool    `json:"resumeNoteOns"`
	SongMode      bool    `json:"songMode"`
	Looping       bool    `json:"looping"`
	LeftTick      int64   `json:"leftTick"`
	RightTick     int64   `json:"rightTick"`
}

// PortsConfig names the MIDI ports to use.
type PortsConfig struct {
	Output     string `json:"output,omitempty"`
	ControlBus int    `json:"controlBus"` // input bus treated as control surface, -1 = none
	ClockOut   bool   `json:"clockOut"`
	PassSysEx  bool   `json:"passSysEx"`
}

// RecordConfig selects how incoming musical events find a recording pattern.
type RecordConfig struct {
	ByBus     bool `json:"byBus"`
	ByChannel bool `json:"byChannel"`
}

// Config is the main configuration structure.
type Config struct {
	Transport TransportConfig `json:"transport"`
	Ports     PortsConfig     `json:"ports"`
	Record    RecordConfig    `json:"record"`
	Debug     bool            `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			PPQN:        192,
			BPM:         120,
			MinBPM:      2,
			MaxBPM:      600,
			BeatsPerBar: 4,
			BeatWidth:   4,
			LeftTick:    0,
			RightTick:   4 * 192 * 4, // four 4/4 bars
		},
		Ports: PortsConfig{ControlBus: -1},
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	t := c.Transport
	if t.PPQN < 32 || t.PPQN > 19200 {
		return fmt.Errorf("ppqn %d out of range [32, 19200]", t.PPQN)
	}
	if t.MinBPM <= 0 || t.MaxBPM <= t.MinBPM {
		return fmt.Errorf("bpm range [%g, %g] is invalid", t.MinBPM, t.MaxBPM)
	}
	if t.BPM < t.MinBPM || t.BPM > t.MaxBPM {
		return fmt.Errorf("bpm %g outside [%g, %g]", t.BPM, t.MinBPM, t.MaxBPM)
	}
	if t.BeatsPerBar < 1 || t.BeatWidth < 1 {
		return fmt.Errorf("invalid time signature %d/%d", t.BeatsPerBar, t.BeatWidth)
	}
	if t.RightTick <= t.LeftTick {
		return fmt.Errorf("loop right %d must be past left %d", t.RightTick, t.LeftTick)
	}
	return nil
}

// Dir returns the config directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-perform"), nil
}

// Path returns the full path to config.json.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
