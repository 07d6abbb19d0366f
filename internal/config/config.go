// Package config provides configuration management for nesprobe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nesprobe/internal/input"
)

// Config holds all application configuration
type Config struct {
	Probe  ProbeConfig  `json:"probe"`
	Window WindowConfig `json:"window"`
	Audio  AudioConfig  `json:"audio"`
	Server ServerConfig `json:"server"`
	Debug  DebugConfig  `json:"debug"`

	// Internal state
	configPath string
	loaded     bool
}

// ProbeConfig contains the defaults for a probe run
type ProbeConfig struct {
	Frames     int    `json:"frames"`
	StatePath  string `json:"state_path"`
	Buttons    string `json:"buttons"` // "A,Start"
	Detail     bool   `json:"detail"`
	Palette    bool   `json:"palette"`
	Screenshot string `json:"screenshot"`
	WAV        string `json:"wav"`
}

// WindowConfig contains viewer window configuration
type WindowConfig struct {
	Scale int    `json:"scale"` // NES resolution multiplier
	Title string `json:"title"`
}

// AudioConfig contains audio capture configuration
type AudioConfig struct {
	SampleRate     int `json:"sample_rate"`
	HistogramBins  int `json:"histogram_bins"`
	HistogramWidth int `json:"histogram_width"`
}

// ServerConfig contains the JSON command server settings
type ServerConfig struct {
	Listen string `json:"listen"` // WebSocket address, e.g. "localhost:8080"; empty disables the server
}

// DebugConfig contains diagnostic options
type DebugConfig struct {
	Verbosity int `json:"verbosity"` // 0 off, 1 info, 2 debug
}

// DefaultStatePath is where the probe writes its snapshot.
func DefaultStatePath() string {
	return filepath.Join(os.TempDir(), "nesprobe_state.bin")
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Probe: ProbeConfig{
			Frames:    1,
			StatePath: DefaultStatePath(),
		},
		Window: WindowConfig{
			Scale: 2, // 512x480 (256x240 * 2)
			Title: "nesprobe",
		},
		Audio: AudioConfig{
			SampleRate:     44100,
			HistogramBins:  12,
			HistogramWidth: 50,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. A missing file is
// created with the current values.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	c.configPath = path
	return nil
}

// Validate rejects unusable values and clamps the rest to defaults.
func (c *Config) Validate() error {
	if c.Probe.Frames < 1 {
		return &ConfigError{Field: "probe.frames", Value: c.Probe.Frames, Err: errors.New("must be at least 1")}
	}
	if _, err := input.ParseButtons(c.Probe.Buttons); err != nil {
		return &ConfigError{Field: "probe.buttons", Value: c.Probe.Buttons, Err: err}
	}
	if c.Probe.StatePath == "" {
		c.Probe.StatePath = DefaultStatePath()
	}

	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.HistogramBins <= 0 {
		c.Audio.HistogramBins = 12
	}
	if c.Audio.HistogramWidth <= 0 {
		c.Audio.HistogramWidth = 50
	}

	if c.Debug.Verbosity < 0 {
		c.Debug.Verbosity = 0
	}
	if c.Debug.Verbosity > 2 {
		c.Debug.Verbosity = 2
	}
	return nil
}

// GetWindowResolution returns the window resolution based on scale
func (c *Config) GetWindowResolution() (int, int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}

// IsLoaded returns whether the configuration was loaded from file
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// GetConfigPath returns the path to the config file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s' with value '%v': %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
