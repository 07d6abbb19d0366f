package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	if c.Probe.Frames != 1 {
		t.Errorf("Expected 1 frame, got %d", c.Probe.Frames)
	}
	if c.Probe.StatePath != filepath.Join(os.TempDir(), "nesprobe_state.bin") {
		t.Errorf("Expected temp dir state path, got %s", c.Probe.StatePath)
	}
	if c.Audio.SampleRate != 44100 {
		t.Errorf("Expected 44100 Hz, got %d", c.Audio.SampleRate)
	}
	if w, h := c.GetWindowResolution(); w != 512 || h != 480 {
		t.Errorf("Expected 512x480, got %dx%d", w, h)
	}
	if c.Server.Listen != "" {
		t.Errorf("Expected server disabled by default, got %q", c.Server.Listen)
	}
}

func TestLoadFromFile_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "nesprobe.json")
	c := NewConfig()
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected default config written, got %v", err)
	}
	if c.GetConfigPath() != path {
		t.Errorf("Expected config path %s, got %s", path, c.GetConfigPath())
	}
	if c.IsLoaded() {
		t.Error("Expected IsLoaded false for a freshly written file")
	}
}

func TestLoadFromFile_OverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nesprobe.json")
	data := `{"probe":{"frames":5,"buttons":"a,start"},"window":{"scale":0},"audio":{"sample_rate":-1},"debug":{"verbosity":9}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewConfig()
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if !c.IsLoaded() {
		t.Error("Expected IsLoaded true")
	}

	tests := []struct {
		name      string
		got, want interface{}
	}{
		{"frames", c.Probe.Frames, 5},
		{"buttons", c.Probe.Buttons, "a,start"},
		{"scale", c.Window.Scale, 1},
		{"sample rate", c.Audio.SampleRate, 44100},
		{"verbosity", c.Debug.Verbosity, 2},
		{"state path kept", c.Probe.StatePath, DefaultStatePath()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"bad json", `{"probe":`, ""},
		{"zero frames", `{"probe":{"frames":0}}`, "probe.frames"},
		{"unknown button", `{"probe":{"buttons":"A,Turbo"}}`, "probe.buttons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nesprobe.json")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			err := NewConfig().LoadFromFile(path)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.field == "" {
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nesprobe.json")
	c := NewConfig()
	c.Probe.Frames = 3
	c.Server.Listen = ":9000"
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	other := NewConfig()
	if err := other.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if other.Probe.Frames != 3 || other.Server.Listen != ":9000" {
		t.Errorf("Expected frames 3 and :9000, got %d and %s", other.Probe.Frames, other.Server.Listen)
	}
}
