package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/luminance.report/internal/gamma"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "cal.json", `{"steps": 17, "method": 3, "settle": "250ms"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GetSteps() != 17 {
		t.Errorf("GetSteps() = %d, want 17", cfg.GetSteps())
	}
	if cfg.GetMethod() != gamma.MaxNormalizeOffset {
		t.Errorf("GetMethod() = %v, want method 3", cfg.GetMethod())
	}
	if cfg.GetSettle() != 250*time.Millisecond {
		t.Errorf("GetSettle() = %v, want 250ms", cfg.GetSettle())
	}

	// Unset fields fall back to defaults.
	if cfg.GetRepeats() != 3 {
		t.Errorf("GetRepeats() = %d, want default 3", cfg.GetRepeats())
	}
	if cfg.GetChannels() != 1 {
		t.Errorf("GetChannels() = %d, want default 1", cfg.GetChannels())
	}
	if cfg.GetReadTimeout() != 2*time.Second {
		t.Errorf("GetReadTimeout() = %v, want default 2s", cfg.GetReadTimeout())
	}
}

func TestEmptyDefaults(t *testing.T) {
	cfg := Empty()
	if cfg.GetMethod() != gamma.RangeNormalize {
		t.Errorf("GetMethod() = %v, want range-normalize default", cfg.GetMethod())
	}
	if cfg.GetSteps() != 9 {
		t.Errorf("GetSteps() = %d, want 9", cfg.GetSteps())
	}
	opts, err := cfg.PortOptions().Normalize()
	if err != nil {
		t.Fatalf("PortOptions().Normalize() error = %v", err)
	}
	if opts.BaudRate != 9600 {
		t.Errorf("default baud rate = %d, want 9600", opts.BaudRate)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		contents string
	}{
		{"bad extension", "cal.yaml", `{}`},
		{"bad json", "cal.json", `{steps: 9}`},
		{"one step", "cal.json", `{"steps": 1}`},
		{"zero repeats", "cal.json", `{"repeats": 0}`},
		{"two channels", "cal.json", `{"channels": 2}`},
		{"unknown method", "cal.json", `{"method": 9}`},
		{"bad settle", "cal.json", `{"settle": "soon"}`},
		{"bad parity", "cal.json", `{"parity": "Q"}`},
		{"unknown units", "cal.json", `{"units": "lux"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.filename, tt.contents)
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestSessionOptions(t *testing.T) {
	path := writeConfig(t, "cal.json", `{"steps": 5, "repeats": 2, "channels": 3, "read_timeout": "5s"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts := cfg.SessionOptions()
	if opts.Steps != 5 || opts.Repeats != 2 || opts.Channels != 3 || opts.ReadTimeout != 5*time.Second {
		t.Errorf("SessionOptions() = %+v", opts)
	}
}
